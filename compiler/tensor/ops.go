package tensor

import (
	"tlog.app/go/errors"

	"github.com/whchung/triton/compiler/ir"
)

type (
	// Load reads a tensor of values through a tensor of pointers.
	// Lanes with a false mask lane produce the matching Other lane.
	Load struct {
		Ptr   ir.Expr
		Mask  ir.Expr
		Other ir.Expr
	}

	Store struct {
		Ptr  ir.Expr
		Val  ir.Expr
		Mask ir.Expr
	}
)

// NewLoad builds a load with the default operands: an all-true mask and a
// zero-valued other matching the pointee element type and shape.
func NewLoad(m *ir.Module, ptr ir.Expr) (ir.Expr, error) {
	shape, elem, err := ptrShape(m, ptr)
	if err != nil {
		return ir.Nil, errors.Wrap(err, "load")
	}

	mask := defaultMask(m, shape)
	other := defaultOther(m, shape, elem)

	return NewLoadMasked(m, ptr, mask, other), nil
}

func NewLoadMasked(m *ir.Module, ptr, mask, other ir.Expr) ir.Expr {
	return m.Add(Load{Ptr: ptr, Mask: mask, Other: other}, m.TypeOf(other))
}

// NewStore builds a store with the default all-true mask.
func NewStore(m *ir.Module, ptr, val ir.Expr) (ir.Expr, error) {
	shape, _, err := ptrShape(m, ptr)
	if err != nil {
		return ir.Nil, errors.Wrap(err, "store")
	}

	return NewStoreMasked(m, ptr, val, defaultMask(m, shape)), nil
}

func NewStoreMasked(m *ir.Module, ptr, val, mask ir.Expr) ir.Expr {
	return m.Add(Store{Ptr: ptr, Val: val, Mask: mask}, m.AddType(ir.Void{}))
}

func defaultMask(m *ir.Module, shape []int) ir.Expr {
	i1 := m.AddType(ir.Int{Bits: 1})
	one := m.Add(ir.Imm(1), i1)

	tp := m.AddType(ir.Tensor{Shape: shape, Elem: i1})

	return m.Add(ir.Splat{Of: one}, tp)
}

func defaultOther(m *ir.Module, shape []int, elem ir.Type) ir.Expr {
	var zero ir.Expr

	switch m.Exprs[elem].(type) {
	case ir.Float:
		zero = m.Add(ir.FImm(0), elem)
	default:
		zero = m.Add(ir.Imm(0), elem)
	}

	tp := m.AddType(ir.Tensor{Shape: shape, Elem: elem})

	return m.Add(ir.Splat{Of: zero}, tp)
}

func ptrShape(m *ir.Module, ptr ir.Expr) ([]int, ir.Type, error) {
	tp := m.TypeOf(ptr)
	if tp == ir.Type(ir.Nil) {
		return nil, ir.Type(ir.Nil), errors.New("untyped pointer operand")
	}

	t, ok := m.Exprs[tp].(ir.Tensor)
	if !ok {
		return nil, ir.Type(ir.Nil), errors.New("pointer operand is not a tensor: %T", m.Exprs[tp])
	}

	p, ok := m.Exprs[t.Elem].(ir.Ptr)
	if !ok {
		return nil, ir.Type(ir.Nil), errors.New("tensor element is not a pointer: %T", m.Exprs[t.Elem])
	}

	return t.Shape, p.To, nil
}
