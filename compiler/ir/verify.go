package ir

import (
	"strings"

	"tlog.app/go/errors"
)

// Verify checks module structure before it's handed to a code generator.
// It doesn't typecheck arbitrary programs, only what the lowering is allowed
// to produce.
func (m *Module) Verify() error {
	if len(m.Exprs) != len(m.EType) {
		return errors.New("expr and type tables diverged: %d != %d", len(m.Exprs), len(m.EType))
	}

	for _, fid := range m.Funcs {
		if fid < 0 || int(fid) >= len(m.Exprs) {
			return errors.New("func id out of range: %d", fid)
		}

		f, ok := m.Exprs[fid].(*Func)
		if !ok {
			return errors.New("expr %d: expected func, got %T", fid, m.Exprs[fid])
		}

		err := m.verifyFunc(f)
		if err != nil {
			return errors.Wrap(err, "func %v", f.Name)
		}
	}

	return nil
}

func (m *Module) verifyFunc(f *Func) error {
	if f.Name == "" {
		return errors.New("unnamed function")
	}
	if len(f.Code) == 0 {
		return errors.New("empty body")
	}

	for _, id := range f.Code {
		if id < 0 || int(id) >= len(m.Exprs) {
			return errors.New("expr out of range: %d", id)
		}

		switch x := m.Exprs[id].(type) {
		case Imm, FImm, Param:
		case Splat:
			if err := m.checkRef(x.Of); err != nil {
				return errors.Wrap(err, "splat %d", id)
			}
		case Add:
			if err := m.checkRef(x.L); err != nil {
				return errors.Wrap(err, "add %d lhs", id)
			}
			if err := m.checkRef(x.R); err != nil {
				return errors.Wrap(err, "add %d rhs", id)
			}
		case InlineAsm:
			ins := 0

			for _, c := range splitConstraints(x.Constraints) {
				if !strings.HasPrefix(c, "=") {
					ins++
				}
			}

			if ins != len(x.In) {
				return errors.New("inline asm %d: %d operands bound, %d input constraints", id, len(x.In), ins)
			}

			for _, in := range x.In {
				if err := m.checkRef(in); err != nil {
					return errors.Wrap(err, "inline asm %d", id)
				}
			}
		case Ret:
			if m.isVoid(f.Out) {
				if x.Value != Nil {
					return errors.New("ret %d: value returned from void function", id)
				}

				break
			}

			if x.Value == Nil {
				return errors.New("ret %d: missing value", id)
			}
			if err := m.checkRef(x.Value); err != nil {
				return errors.Wrap(err, "ret %d", id)
			}
			if !m.TypeEq(m.TypeOf(x.Value), f.Out) {
				return errors.New("ret %d: value type mismatch", id)
			}
		default:
			return errors.New("unsupported expr: %T", x)
		}
	}

	last := f.Code[len(f.Code)-1]
	if _, ok := m.Exprs[last].(Ret); !ok {
		return errors.New("not terminated")
	}

	return nil
}

func (m *Module) checkRef(id Expr) error {
	if id < 0 || int(id) >= len(m.Exprs) {
		return errors.New("expr out of range: %d", id)
	}

	return nil
}

func (m *Module) isVoid(tp Type) bool {
	if tp == Type(Nil) {
		return true
	}

	_, ok := m.Exprs[tp].(Void)

	return ok
}

func splitConstraints(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, ",")
}
