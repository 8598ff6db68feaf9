package gcn

import (
	"strconv"
	"strings"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/whchung/triton/compiler/ir"
)

type (
	// Builder owns every operand, modifier, instruction and execution
	// created while one embedded instruction block is assembled.
	// One builder per construction site, finished by Launch.
	Builder struct {
		args   []*Operand
		mods   []*Modifier
		instrs []*instrCommon
		execs  []*InstrExecution

		oprCounter int
		launched   bool
	}

	// Operand is one positional slot of an embedded instruction: a bound
	// value under a constraint, or an ordered list of sub operands.
	Operand struct {
		Value      ir.Expr
		Constraint string

		// Idx is the position in the constraint string. Assigned when an
		// execution first binds the operand, -1 before that.
		Idx int

		Sub  []*Operand
		Repr ReprFunc
	}

	// Modifier is an addressing or behavior qualifier, rendered as
	// "mod" or "mod:arg".
	Modifier struct {
		Value ir.Expr
		Mod   string
		Arg   string

		Sub []*Modifier
	}

	// Item is a (value, constraint) pair for NewListOperand.
	Item struct {
		Value      ir.Expr
		Constraint string
	}

	ReprFunc func(idx int) string
)

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) newOperand() *Operand {
	op := &Operand{Value: ir.Nil, Idx: -1}
	b.args = append(b.args, op)

	return op
}

func (b *Builder) newModifier() *Modifier {
	mod := &Modifier{Value: ir.Nil}
	b.mods = append(b.mods, mod)

	return mod
}

// NewOperand creates an operand bound to v under an asm constraint,
// e.g. "v" or "s". repr overrides the default "%<idx>" rendering.
func (b *Builder) NewOperand(v ir.Expr, constraint string, repr ...ReprFunc) *Operand {
	op := b.newOperand()
	op.Value = v
	op.Constraint = constraint

	if len(repr) != 0 {
		op.Repr = repr[0]
	}

	return op
}

// NewOutOperand creates a write-only operand with no value bound yet.
// The constraint is expected to carry the output marker, e.g. "=v".
func (b *Builder) NewOutOperand(constraint string) *Operand {
	op := b.newOperand()
	op.Constraint = constraint

	return op
}

// NewConstantOperand creates an operand rendered as a literal.
// It never consumes a position index.
func (b *Builder) NewConstantOperand(v any) *Operand {
	op := b.newOperand()

	switch v := v.(type) {
	case int:
		op.Repr = func(int) string { return strconv.Itoa(v) }
	case string:
		op.Repr = func(int) string { return v }
	default:
		panic("gcn: unsupported constant operand")
	}

	return op
}

func (b *Builder) NewAddrOperand(addr ir.Expr, constraint string) *Operand {
	return b.NewOperand(addr, constraint)
}

// NewListOperand aggregates explicit (value, constraint) pairs.
func (b *Builder) NewListOperand(items ...Item) *Operand {
	list := b.newOperand()

	for _, it := range items {
		list.ListAppend(b.NewOperand(it.Value, it.Constraint))
	}

	return list
}

// NewRepeatOperand binds the same value under the same constraint count times.
func (b *Builder) NewRepeatOperand(count int, v ir.Expr, constraint string) *Operand {
	list := b.newOperand()

	for i := 0; i < count; i++ {
		list.ListAppend(b.NewOperand(v, constraint))
	}

	return list
}

// NewRepeatOutOperand declares count write-only destination slots,
// e.g. for multi-register results.
func (b *Builder) NewRepeatOutOperand(count int, constraint string) *Operand {
	list := b.newOperand()

	for i := 0; i < count; i++ {
		list.ListAppend(b.NewOutOperand(constraint))
	}

	return list
}

func (b *Builder) NewModifier(mod, arg string) *Modifier {
	m := b.newModifier()
	m.Mod = mod
	m.Arg = arg

	return m
}

func (b *Builder) NewListModifier() *Modifier {
	return b.newModifier()
}

// IsList distinguishes aggregates: no value and no constraint.
// Constant operands satisfy it too, which is what keeps them out of the
// positional operand sequence.
func (o *Operand) IsList() bool {
	return o.Value == ir.Nil && o.Constraint == ""
}

func (o *Operand) ListAppend(args ...*Operand) *Operand {
	o.Sub = append(o.Sub, args...)

	return o
}

func (o *Operand) ListGet(n int) *Operand {
	if n < 0 || n >= len(o.Sub) {
		panic("gcn: operand list index out of range")
	}

	return o.Sub[n]
}

func (o *Operand) Dump() string {
	if o.Repr != nil {
		return o.Repr(o.Idx)
	}

	if !o.IsList() {
		return "%" + strconv.Itoa(o.Idx)
	}

	var sb strings.Builder

	sb.WriteByte('{')

	for i, s := range o.Sub {
		if i != 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(s.Dump())
	}

	sb.WriteByte('}')

	return sb.String()
}

func (o *Operand) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)
	b = e.AppendKeyString(b, "cons", o.Constraint)
	b = e.AppendKeyInt(b, "idx", o.Idx)
	b = e.AppendKeyInt(b, "sub", len(o.Sub))

	return b
}

func (m *Modifier) IsList() bool {
	return m.Value == ir.Nil && m.Mod == ""
}

func (m *Modifier) ListAppend(mods ...*Modifier) *Modifier {
	m.Sub = append(m.Sub, mods...)

	return m
}

func (m *Modifier) ListGet(n int) *Modifier {
	if n < 0 || n >= len(m.Sub) {
		panic("gcn: modifier list index out of range")
	}

	return m.Sub[n]
}

func (m *Modifier) String() string {
	if m.Arg == "" {
		return m.Mod
	}

	return m.Mod + ":" + m.Arg
}

func (m *Modifier) Dump() string {
	if !m.IsList() {
		return m.String()
	}

	var sb strings.Builder

	for i, s := range m.Sub {
		if i != 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(s.Dump())
	}

	return sb.String()
}

// AllArgs returns the distinct non-list operands referenced by all
// executions so far, lists flattened, in first-bound order.
func (b *Builder) AllArgs() []*Operand {
	var res []*Operand

	seen := map[*Operand]struct{}{}

	for _, ex := range b.execs {
		for _, op := range ex.ArgList() {
			if _, ok := seen[op]; ok {
				continue
			}

			seen[op] = struct{}{}
			res = append(res, op)
		}
	}

	return res
}

// AllIRArgs returns the bound values of AllArgs in the same order.
// Write-only operands have no value and contribute nothing.
func (b *Builder) AllIRArgs() []ir.Expr {
	var res []ir.Expr

	for _, op := range b.AllArgs() {
		if op.Value != ir.Nil {
			res = append(res, op.Value)
		}
	}

	return res
}

// Constraints renders the comma-joined constraint string the downstream
// inline asm encoding binds values by. Entry count and order match AllArgs.
func (b *Builder) Constraints() string {
	var sb strings.Builder

	for i, op := range b.AllArgs() {
		if i != 0 {
			sb.WriteByte(',')
		}

		sb.WriteString(op.Constraint)
	}

	return sb.String()
}

// Dump renders the whole block, one execution per line, creation order.
func (b *Builder) Dump() string {
	var sb strings.Builder

	for i, ex := range b.execs {
		if i != 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(ex.Dump())
	}

	return sb.String()
}

// Launch materializes the accumulated block as one opaque inline asm value.
// At most one launch per builder.
func (b *Builder) Launch(m *ir.Module, res ir.Type, sideEffect, alignStack bool, attrs ...string) ir.Expr {
	if b.launched {
		panic("gcn: builder launched twice")
	}

	b.launched = true

	asm := ir.InlineAsm{
		Asm:         b.Dump(),
		Constraints: b.Constraints(),
		SideEffect:  sideEffect,
		AlignStack:  alignStack,
		Attrs:       attrs,
		In:          b.AllIRArgs(),
	}

	id := m.Add(asm, res)

	tlog.V("gcn").Printw("launch embedded block", "id", id, "block", asm, "from", loc.Callers(1, 2))

	return id
}
