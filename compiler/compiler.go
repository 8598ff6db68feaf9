package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/whchung/triton/compiler/hsaco"
	"github.com/whchung/triton/compiler/ir"
	"github.com/whchung/triton/compiler/tensor"
)

// Translate lowers remaining tensor dialect ops in m and runs the hsaco
// pipeline, returning amdgcn assembly text and the path to the loadable
// device binary.
func Translate(ctx context.Context, m *ir.Module, arch string) (asm []byte, path string, err error) {
	err = tensor.Lower(ctx, m)
	if err != nil {
		return nil, "", errors.Wrap(err, "lower")
	}

	tlog.SpanFromContext(ctx).Printw("lowered module", "name", m.Name, "exprs", len(m.Exprs))

	asm, path, err = hsaco.Translate(ctx, m, arch)
	if err != nil {
		return nil, "", errors.Wrap(err, "translate")
	}

	return asm, path, nil
}
