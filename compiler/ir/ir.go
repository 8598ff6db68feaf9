package ir

import (
	"tlog.app/go/tlog/tlwire"
)

type (
	Expr int
	Type Expr

	Module struct {
		Name   string
		Triple string
		Layout string

		Funcs []Expr

		Exprs []any
		EType []Type
	}

	Func struct {
		Name string

		In  []Expr
		Out Type

		Code []Expr

		AlwaysInline bool
	}

	Param struct {
		Num int
	}

	Imm  int64
	FImm float64

	// Splat broadcasts a scalar expr to every element of a tensor.
	Splat struct {
		Of Expr
	}

	Add struct {
		L, R Expr
	}

	Ret struct {
		Value Expr
	}

	// InlineAsm is an opaque embedded instruction block. Consumers must
	// honor only its declared type and side effect flag.
	InlineAsm struct {
		Asm         string
		Constraints string

		SideEffect bool
		AlignStack bool
		Attrs      []string

		In []Expr
	}

	Int struct {
		Bits int
	}

	Float struct {
		Bits int
	}

	Ptr struct {
		To Type
	}

	Tensor struct {
		Shape []int
		Elem  Type
	}

	Void struct{}
)

const Nil Expr = -1

func New(name string) *Module {
	return &Module{Name: name}
}

func (m *Module) Add(x any, tp Type) Expr {
	id := Expr(len(m.Exprs))

	m.Exprs = append(m.Exprs, x)
	m.EType = append(m.EType, tp)

	return id
}

func (m *Module) AddType(x any) Type {
	return Type(m.Add(x, Type(Nil)))
}

func (m *Module) TypeOf(id Expr) Type {
	return m.EType[id]
}

func (m *Module) NewFunc(name string, in []Type, out Type) (Expr, *Func) {
	f := &Func{
		Name: name,
		Out:  out,
	}

	for num, tp := range in {
		f.In = append(f.In, m.Add(Param{Num: num}, tp))
	}

	fid := m.Add(f, Type(Nil))
	m.Funcs = append(m.Funcs, fid)

	return fid, f
}

// Clone deep copies the module so that destructive consumers (such as a
// single use codegen pipeline) can't observe each other.
func (m *Module) Clone() *Module {
	c := &Module{
		Name:   m.Name,
		Triple: m.Triple,
		Layout: m.Layout,

		Funcs: append([]Expr{}, m.Funcs...),

		Exprs: make([]any, len(m.Exprs)),
		EType: append([]Type{}, m.EType...),
	}

	for id, x := range m.Exprs {
		switch x := x.(type) {
		case *Func:
			f := *x
			f.In = append([]Expr{}, x.In...)
			f.Code = append([]Expr{}, x.Code...)

			c.Exprs[id] = &f
		case InlineAsm:
			x.In = append([]Expr{}, x.In...)
			x.Attrs = append([]string{}, x.Attrs...)

			c.Exprs[id] = x
		case Tensor:
			x.Shape = append([]int{}, x.Shape...)

			c.Exprs[id] = x
		default:
			c.Exprs[id] = x
		}
	}

	return c
}

// TypeEq compares type nodes structurally. Types are not interned, so two
// distinct handles may name the same type.
func (m *Module) TypeEq(a, b Type) bool {
	if a == b {
		return true
	}
	if a == Type(Nil) || b == Type(Nil) {
		return false
	}

	switch x := m.Exprs[a].(type) {
	case Int:
		y, ok := m.Exprs[b].(Int)
		return ok && x == y
	case Float:
		y, ok := m.Exprs[b].(Float)
		return ok && x == y
	case Void:
		_, ok := m.Exprs[b].(Void)
		return ok
	case Ptr:
		y, ok := m.Exprs[b].(Ptr)
		return ok && m.TypeEq(x.To, y.To)
	case Tensor:
		y, ok := m.Exprs[b].(Tensor)
		if !ok || !m.TypeEq(x.Elem, y.Elem) || len(x.Shape) != len(y.Shape) {
			return false
		}

		for i := range x.Shape {
			if x.Shape[i] != y.Shape[i] {
				return false
			}
		}

		return true
	}

	return false
}

func (x InlineAsm) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)
	b = e.AppendKeyString(b, "asm", x.Asm)
	b = e.AppendKeyString(b, "cons", x.Constraints)
	b = e.AppendKeyInt(b, "in", len(x.In))

	return b
}
