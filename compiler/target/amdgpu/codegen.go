package amdgpu

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/whchung/triton/compiler/ir"
)

// funcCode is one lowered function: plain instruction lines, no directives.
type funcCode struct {
	name  string
	lines []string
}

var placeholder = regexp.MustCompile(`%(\d+)`)

func (mach *machine) EmitAssembly(ctx context.Context, m *ir.Module) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "amdgcn: emit assembly", "module", m.Name, "proc", mach.proc)
	defer tr.Finish("err", &err)

	if err = mach.consume(); err != nil {
		return nil, err
	}

	code, err := mach.lowerModule(m)
	if err != nil {
		return nil, err
	}

	var b []byte

	b = hfmt.Appendf(b, "\t.text\n")
	b = hfmt.Appendf(b, "\t.amdgcn_target \"%s\"\n", mach.targetID())

	for _, f := range code {
		b = hfmt.Appendf(b, "\n\t.globl\t%s\n", f.name)
		b = hfmt.Appendf(b, "\t.p2align\t8\n")
		b = hfmt.Appendf(b, "\t.type\t%s,@function\n", f.name)
		b = hfmt.Appendf(b, "%s:\n", f.name)

		for _, l := range f.lines {
			b = hfmt.Appendf(b, "\t%s\n", l)
		}
	}

	return b, nil
}

func (mach *machine) EmitObject(ctx context.Context, m *ir.Module, w io.Writer) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "amdgcn: emit object", "module", m.Name, "proc", mach.proc)
	defer tr.Finish("err", &err)

	if err = mach.consume(); err != nil {
		return err
	}

	code, err := mach.lowerModule(m)
	if err != nil {
		return err
	}

	return writeELF(w, mach.proc, code)
}

func (mach *machine) lowerModule(m *ir.Module) ([]funcCode, error) {
	var code []funcCode

	for _, fid := range m.Funcs {
		f, ok := m.Exprs[fid].(*ir.Func)
		if !ok {
			return nil, errors.New("expr %d: expected func, got %T", fid, m.Exprs[fid])
		}

		lines, err := mach.lowerFunc(m, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}

		code = append(code, funcCode{name: f.Name, lines: lines})
	}

	return code, nil
}

// lowerFunc lowers one function with fixed register slots. Scheduling and
// register allocation stay out of scope, every value gets its own slot.
func (mach *machine) lowerFunc(m *ir.Module, f *ir.Func) (lines []string, err error) {
	regs := map[ir.Expr]int{}
	next := 0

	reg := func(id ir.Expr) int {
		r, ok := regs[id]
		if !ok {
			r = next
			next++
			regs[id] = r
		}

		return r
	}

	emit := func(format string, args ...any) {
		lines = append(lines, string(hfmt.Appendf(nil, format, args...)))
	}

	for num, id := range f.In {
		emit("s_load_dword s%d, s[4:5], 0x%x", reg(id), num*4)
	}

	if len(f.In) != 0 {
		emit("s_waitcnt lgkmcnt(0)")
	}

	for _, id := range f.Code {
		switch x := m.Exprs[id].(type) {
		case ir.Param:
		case ir.Imm:
			emit("s_mov_b32 s%d, %d", reg(id), int64(x))
		case ir.FImm:
			emit("v_mov_b32 v%d, %g", reg(id), float64(x))
		case ir.Splat:
			emit("v_mov_b32 v%d, s%d", reg(id), reg(x.Of))
		case ir.Add:
			emit("s_add_i32 s%d, s%d, s%d", reg(id), reg(x.L), reg(x.R))
		case ir.InlineAsm:
			lines = append(lines, ";;#ASMSTART")

			for _, l := range strings.Split(x.Asm, "\n") {
				if l == "" {
					continue
				}

				lines = append(lines, placeholder.ReplaceAllString(l, "v$1"))
			}

			lines = append(lines, ";;#ASMEND")
		case ir.Ret:
			if x.Value == ir.Nil {
				emit("s_endpgm")
			} else {
				emit("v_mov_b32 v0, s%d", reg(x.Value))
				emit("s_setpc_b64 s[30:31]")
			}
		default:
			return nil, errors.New("unsupported expr %d: %T", id, x)
		}
	}

	return lines, nil
}
