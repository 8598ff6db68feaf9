package gcn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whchung/triton/compiler/ir"
)

func testValues(t *testing.T, n int) (*ir.Module, []ir.Expr) {
	t.Helper()

	m := ir.New("test")
	i32 := m.AddType(ir.Int{Bits: 32})

	vals := make([]ir.Expr, n)
	for i := range vals {
		vals[i] = m.Add(ir.Imm(i), i32)
	}

	return m, vals
}

func TestRepeatOutOperand(t *testing.T) {
	b := NewBuilder()

	list := b.NewRepeatOutOperand(3, "=v")
	require.True(t, list.IsList())

	for i := 0; i < 3; i++ {
		assert.Equal(t, "=v", list.ListGet(i).Constraint)
	}

	assert.Panics(t, func() { list.ListGet(3) })
	assert.Panics(t, func() { list.ListGet(-1) })
}

func TestListInvariant(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 1)

	assert.False(t, b.NewOperand(vals[0], "v").IsList())
	assert.False(t, b.NewOutOperand("=v").IsList())
	assert.True(t, b.NewListOperand().IsList())
	assert.True(t, b.NewRepeatOperand(2, vals[0], "v").IsList())
	assert.False(t, b.NewModifier("offset", "0").IsList())
	assert.True(t, b.NewListModifier().IsList())
}

func TestConstantOperandTakesNoIndex(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 1)

	cnt := b.NewConstantOperand("vmcnt(0)")
	a := b.NewOperand(vals[0], "v")

	b.Create("s_waitcnt").Exec(cnt)
	b.Create("v_mov_b32").Exec(b.NewOutOperand("=v"), a)

	assert.Equal(t, -1, cnt.Idx)
	assert.Equal(t, 1, a.Idx)
	assert.Equal(t, "42", b.NewConstantOperand(42).Dump())

	assert.Panics(t, func() { b.NewConstantOperand(4.2) })
}

func TestConstraintsMatchArgs(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 3)

	dst := b.NewOutOperand("=v")
	a := b.NewOperand(vals[0], "v")
	c := b.NewOperand(vals[1], "v")
	addr := b.NewAddrOperand(vals[2], "v")

	add := b.Create("v_add").FloatOpType(Dword)
	add.Exec(dst, a, c)

	st := b.CreateMem("global_store").StoreType(Dword)
	st.Exec(addr, a) // a is shared, must not get a second slot

	args := b.AllArgs()
	cons := strings.Split(b.Constraints(), ",")

	require.Len(t, cons, len(args))
	assert.Equal(t, []string{"=v", "v", "v", "v"}, cons)

	for i, op := range args {
		assert.Equal(t, i, op.Idx)
	}

	// dst is write-only, it binds no value
	assert.Equal(t, []ir.Expr{vals[0], vals[1], vals[2]}, b.AllIRArgs())
}

func TestListOperandFlattening(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 2)

	list := b.NewListOperand(
		Item{Value: vals[0], Constraint: "v"},
		Item{Value: vals[1], Constraint: "s"},
	)

	b.Create("v_pk_add_f16").Exec(b.NewOutOperand("=v"), list)

	cons := b.Constraints()
	assert.Equal(t, "=v,v,s", cons)

	// the list itself carries no index, only its children do
	assert.Equal(t, -1, list.Idx)
	assert.Equal(t, 1, list.ListGet(0).Idx)
	assert.Equal(t, 2, list.ListGet(1).Idx)
}

func TestListModifier(t *testing.T) {
	b := NewBuilder()

	list := b.NewListModifier()
	list.ListAppend(b.NewModifier("offset", "0"), b.NewModifier("glc", ""))

	require.True(t, list.IsList())
	assert.Equal(t, "offset", list.ListGet(0).Mod)
	assert.Equal(t, "glc", list.ListGet(1).Mod)
	assert.Equal(t, "offset:0 glc", list.Dump())

	assert.Panics(t, func() { list.ListGet(2) })
	assert.Panics(t, func() { list.ListGet(-1) })
}

func TestListOperandDump(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 3)

	dst := b.NewOutOperand("=v")
	addr := b.NewAddrOperand(vals[0], "v")
	srcs := b.NewListOperand(
		Item{Value: vals[1], Constraint: "s"},
		Item{Value: vals[2], Constraint: "s"},
	)

	ex := b.CreateMem("global_load").LoadType(Short).Exec(dst, addr, srcs)

	assert.Equal(t, "global_load_ushort %0, %1, {%2, %3}", ex.Dump())
	assert.Equal(t, "=v,v,s,s", b.Constraints())
}

func TestFloatOpType(t *testing.T) {
	b := NewBuilder()

	assert.Equal(t, "v_add_f16", b.Create("v_add").FloatOpType(Short).Exec().Mnemonic())
	assert.Equal(t, "v_add_f32", b.Create("v_add").FloatOpType(Dword).Exec().Mnemonic())
	assert.Equal(t, "v_add_f64", b.Create("v_add").FloatOpType(Qword).Exec().Mnemonic())

	assert.Panics(t, func() { b.Create("v_add").FloatOpType(Byte) })
}

func TestLoadStoreTypeAsymmetry(t *testing.T) {
	b := NewBuilder()

	loads := map[int]string{Byte: "ubyte", Short: "ushort", Dword: "dword", Qword: "dwordx2"}
	stores := map[int]string{Byte: "byte", Short: "short", Dword: "dword", Qword: "dwordx2"}

	for w, suffix := range loads {
		assert.Equal(t, "global_load_"+suffix, b.CreateMem("global_load").LoadType(w).Exec().Mnemonic())
	}

	for w, suffix := range stores {
		assert.Equal(t, "global_store_"+suffix, b.CreateMem("global_store").StoreType(w).Exec().Mnemonic())
	}
}

func TestConditionalSuffix(t *testing.T) {
	b := NewBuilder()

	ex := b.Create("v_cmp").O("lt", false).O("ge", true).O("f32").Exec()
	assert.Equal(t, "v_cmp_ge_f32", ex.Mnemonic())
}

func TestExecutionDump(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 1)

	dst := b.NewOutOperand("=v")
	src := b.NewOperand(vals[0], "v")

	ex := b.Create("v_mov_b32").Exec(dst, src)
	assert.Equal(t, "v_mov_b32 %0, %1", ex.Dump())

	off := b.NewModifier("offset", "16")
	ld := b.CreateMem("global_load").LoadType(Dword)
	ex = ld.Call([]*Operand{dst, src}, []*Modifier{off})
	assert.Equal(t, "global_load_dword %0, %1 offset:16", ex.Dump())

	assert.Equal(t, "glc", b.NewModifier("glc", "").Dump())
}

func TestBuilderDump(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 1)

	dst := b.NewOutOperand("=v")
	addr := b.NewAddrOperand(vals[0], "v")

	b.CreateMem("global_load").LoadType(Dword).Exec(dst, addr)
	b.Create("s_waitcnt").Exec(b.NewConstantOperand("vmcnt(0)"))

	assert.Equal(t, "global_load_dword %0, %1\ns_waitcnt vmcnt(0)", b.Dump())
}

func TestExecArity(t *testing.T) {
	b := NewBuilder()
	_, vals := testValues(t, 1)

	oprs := make([]*Operand, 8)
	for i := range oprs {
		oprs[i] = b.NewOperand(vals[0], "v")
	}

	in := b.Create("v_nop")

	assert.NotPanics(t, func() { in.Exec(oprs[:7]...) })
	assert.Panics(t, func() { in.Exec(oprs...) })
}

func TestLaunch(t *testing.T) {
	b := NewBuilder()
	m, vals := testValues(t, 2)

	dst := b.NewOutOperand("=v")
	addr := b.NewAddrOperand(vals[0], "v")
	data := b.NewOperand(vals[1], "v")

	b.CreateMem("global_load").LoadType(Dword).Exec(dst, addr)
	b.CreateMem("global_store").StoreType(Dword).Exec(addr, data)

	i32 := m.AddType(ir.Int{Bits: 32})
	id := b.Launch(m, i32, true, false)

	asm, ok := m.Exprs[id].(ir.InlineAsm)
	require.True(t, ok)

	assert.Equal(t, b.Dump(), asm.Asm)
	assert.Equal(t, "=v,v,v", asm.Constraints)
	assert.True(t, asm.SideEffect)
	assert.False(t, asm.AlignStack)
	assert.Equal(t, []ir.Expr{vals[0], vals[1]}, asm.In)
	assert.Equal(t, i32, m.TypeOf(id))

	assert.Panics(t, func() { b.Launch(m, i32, true, false) })
}
