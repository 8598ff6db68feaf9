package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kernelModule(t *testing.T) (*Module, *Func) {
	t.Helper()

	m := New("test")
	void := m.AddType(Void{})

	_, f := m.NewFunc("kernel", nil, void)
	f.Code = append(f.Code, m.Add(Ret{Value: Nil}, void))

	return m, f
}

func TestVerifySmoke(t *testing.T) {
	m, _ := kernelModule(t)

	require.NoError(t, m.Verify())
}

func TestVerifyNotTerminated(t *testing.T) {
	m := New("test")
	void := m.AddType(Void{})
	i32 := m.AddType(Int{Bits: 32})

	_, f := m.NewFunc("kernel", nil, void)
	f.Code = append(f.Code, m.Add(Imm(1), i32))

	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminated")
}

func TestVerifyRetTypeMismatch(t *testing.T) {
	m := New("test")
	i32 := m.AddType(Int{Bits: 32})
	i64 := m.AddType(Int{Bits: 64})

	_, f := m.NewFunc("f", nil, i32)
	v := m.Add(Imm(1), i64)
	f.Code = append(f.Code, v, m.Add(Ret{Value: v}, i64))

	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestVerifyInlineAsmOperandCount(t *testing.T) {
	m, f := kernelModule(t)
	i32 := m.AddType(Int{Bits: 32})
	v := m.Add(Imm(1), i32)

	asm := m.Add(InlineAsm{
		Asm:         "v_mov_b32 %0, %1",
		Constraints: "=v,v,v", // two inputs declared, one bound
		SideEffect:  true,
		In:          []Expr{v},
	}, i32)

	f.Code = append([]Expr{v, asm}, f.Code...)

	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inline asm")
}

func TestTypeEq(t *testing.T) {
	m := New("test")

	a := m.AddType(Tensor{Shape: []int{4, 2}, Elem: m.AddType(Float{Bits: 32})})
	b := m.AddType(Tensor{Shape: []int{4, 2}, Elem: m.AddType(Float{Bits: 32})})
	c := m.AddType(Tensor{Shape: []int{4}, Elem: m.AddType(Float{Bits: 32})})

	assert.True(t, m.TypeEq(a, b))
	assert.False(t, m.TypeEq(a, c))
	assert.False(t, m.TypeEq(a, Type(Nil)))
}

func TestCloneIsolation(t *testing.T) {
	m, f := kernelModule(t)

	c := m.Clone()

	cf := c.Exprs[c.Funcs[0]].(*Func)
	cf.Name = "mutated"
	cf.AlwaysInline = true
	cf.Code = append(cf.Code, 0)
	c.Triple = "other-triple"

	assert.Equal(t, "kernel", f.Name)
	assert.False(t, f.AlwaysInline)
	assert.Len(t, f.Code, 1)
	assert.Equal(t, "", m.Triple)
}

func TestCloneDeepCopiesSlices(t *testing.T) {
	m := New("test")

	tt := m.AddType(Tensor{Shape: []int{8}, Elem: m.AddType(Int{Bits: 32})})

	c := m.Clone()
	c.Exprs[tt].(Tensor).Shape[0] = 99

	assert.Equal(t, 8, m.Exprs[tt].(Tensor).Shape[0])
}
