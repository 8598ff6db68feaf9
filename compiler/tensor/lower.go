package tensor

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/whchung/triton/compiler/gcn"
	"github.com/whchung/triton/compiler/ir"
)

// Lower rewrites every dialect Load and Store into an embedded gcn
// instruction block, leaving a module the translation pipeline accepts.
// Each op gets its own builder, one builder per construction site.
func Lower(ctx context.Context, m *ir.Module) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lower tensor ops", "module", m.Name)
	defer tr.Finish("err", &err)

	for _, fid := range m.Funcs {
		f, ok := m.Exprs[fid].(*ir.Func)
		if !ok {
			return errors.New("expr %d: expected func, got %T", fid, m.Exprs[fid])
		}

		for _, id := range f.Code {
			switch x := m.Exprs[id].(type) {
			case Load:
				err = lowerLoad(m, id, x)
			case Store:
				err = lowerStore(m, id, x)
			default:
				continue
			}

			if err != nil {
				return errors.Wrap(err, "func %v: expr %d", f.Name, id)
			}

			if tr.If("lower") {
				tr.Printw("lowered", "func", f.Name, "id", id)
			}
		}
	}

	return nil
}

func lowerLoad(m *ir.Module, id ir.Expr, x Load) error {
	_, elem, err := ptrShape(m, x.Ptr)
	if err != nil {
		return err
	}

	width, err := elemWidth(m, elem)
	if err != nil {
		return err
	}

	b := gcn.NewBuilder()

	dst := b.NewOutOperand("=v")
	addr := b.NewAddrOperand(x.Ptr, "v")
	off := b.NewModifier("offset", "0")

	ld := b.CreateMem("global_load").LoadType(width)
	ld.Call([]*gcn.Operand{dst, addr}, []*gcn.Modifier{off})

	wait := b.Create("s_waitcnt")
	wait.Exec(b.NewConstantOperand("vmcnt(0)"))

	alias(m, id, b.Launch(m, m.TypeOf(id), true, false))

	return nil
}

func lowerStore(m *ir.Module, id ir.Expr, x Store) error {
	_, elem, err := ptrShape(m, x.Ptr)
	if err != nil {
		return err
	}

	width, err := elemWidth(m, elem)
	if err != nil {
		return err
	}

	b := gcn.NewBuilder()

	addr := b.NewAddrOperand(x.Ptr, "v")
	val := b.NewOperand(x.Val, "v")

	st := b.CreateMem("global_store").StoreType(width)
	st.Exec(addr, val)

	alias(m, id, b.Launch(m, m.TypeOf(id), true, false))

	return nil
}

// alias moves the launched block over the dialect op so existing uses of
// the expr keep their handle.
func alias(m *ir.Module, id, nid ir.Expr) {
	m.Exprs[id] = m.Exprs[nid]
	m.EType[id] = m.EType[nid]
}

func elemWidth(m *ir.Module, elem ir.Type) (int, error) {
	switch e := m.Exprs[elem].(type) {
	case ir.Int:
		return e.Bits, nil
	case ir.Float:
		return e.Bits, nil
	case ir.Ptr:
		return 64, nil
	}

	return 0, errors.New("unsupported element type: %T", m.Exprs[elem])
}
