package gcn

import (
	"strings"
)

type (
	instrCommon struct {
		b *Builder

		parts []string
	}

	// Instr is an arithmetic style instruction: base mnemonic plus
	// conditionally appended suffixes.
	Instr struct {
		instrCommon
	}

	// MemInstr is a memory style instruction. Load and store width
	// suffixes are asymmetric at byte and short widths.
	MemInstr struct {
		instrCommon
	}

	// InstrExecution is one concrete invocation of an instruction
	// against an ordered operand and modifier list.
	InstrExecution struct {
		instr *instrCommon

		argsInOrder []*Operand
		mods        []*Modifier
	}
)

// Vector widths in bits.
const (
	Byte  = 8
	Short = 16
	Dword = 32
	Qword = 64
)

// Exec accepts at most this many positional operands.
const maxOperands = 7

func (b *Builder) Create(name string) *Instr {
	in := &Instr{instrCommon{b: b}}
	b.instrs = append(b.instrs, &in.instrCommon)

	in.o(name, true)

	return in
}

func (b *Builder) CreateMem(name string) *MemInstr {
	in := &MemInstr{instrCommon{b: b}}
	b.instrs = append(b.instrs, &in.instrCommon)

	in.o(name, true)

	return in
}

func (c *instrCommon) o(suffix string, pred bool) {
	if pred {
		c.parts = append(c.parts, suffix)
	}
}

// O appends suffix to the mnemonic if pred holds (default true).
func (i *Instr) O(suffix string, pred ...bool) *Instr {
	i.o(suffix, len(pred) == 0 || pred[0])

	return i
}

func (i *MemInstr) O(suffix string, pred ...bool) *MemInstr {
	i.o(suffix, len(pred) == 0 || pred[0])

	return i
}

// FloatOpType appends the float width suffix. There is no 8-bit float,
// asking for one is a caller bug.
func (i *Instr) FloatOpType(width int) *Instr {
	switch width {
	case Byte:
		panic("gcn: no 8-bit float op suffix")
	case Short:
		i.o("f16", true)
	case Dword:
		i.o("f32", true)
	case Qword:
		i.o("f64", true)
	}

	return i
}

func (i *MemInstr) LoadType(width int) *MemInstr {
	switch width {
	case Byte:
		i.o("ubyte", true)
	case Short:
		i.o("ushort", true)
	case Dword:
		i.o("dword", true)
	case Qword:
		i.o("dwordx2", true)
	}

	return i
}

func (i *MemInstr) StoreType(width int) *MemInstr {
	switch width {
	case Byte:
		i.o("byte", true)
	case Short:
		i.o("short", true)
	case Dword:
		i.o("dword", true)
	case Qword:
		i.o("dwordx2", true)
	}

	return i
}

// Exec binds up to seven positional operands with no modifiers.
func (c *instrCommon) Exec(oprs ...*Operand) *InstrExecution {
	if len(oprs) > maxOperands {
		panic("gcn: too many positional operands")
	}

	return c.call(oprs, nil)
}

// Call is the general form: an arbitrary operand list plus modifiers.
func (c *instrCommon) Call(oprs []*Operand, mods []*Modifier) *InstrExecution {
	return c.call(oprs, mods)
}

func (c *instrCommon) call(oprs []*Operand, mods []*Modifier) *InstrExecution {
	ex := &InstrExecution{
		instr: c,

		argsInOrder: append([]*Operand{}, oprs...),
		mods:        append([]*Modifier{}, mods...),
	}

	for _, op := range ex.ArgList() {
		if op.Idx < 0 {
			op.Idx = c.b.oprCounter
			c.b.oprCounter++
		}
	}

	c.b.execs = append(c.b.execs, ex)

	return ex
}

// ArgList expands list operands to their children. Constant operands
// carry no constraint and are left out.
func (ex *InstrExecution) ArgList() []*Operand {
	var res []*Operand

	for _, op := range ex.argsInOrder {
		if op.IsList() {
			res = append(res, op.Sub...)
		} else {
			res = append(res, op)
		}
	}

	return res
}

func (ex *InstrExecution) Mnemonic() string {
	return strings.Join(ex.instr.parts, "_")
}

func (ex *InstrExecution) Dump() string {
	var sb strings.Builder

	sb.WriteString(ex.Mnemonic())

	for i, op := range ex.argsInOrder {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}

		sb.WriteString(op.Dump())
	}

	for _, mod := range ex.mods {
		sb.WriteByte(' ')
		sb.WriteString(mod.Dump())
	}

	return sb.String()
}
