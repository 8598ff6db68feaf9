package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/whchung/triton/compiler"
	"github.com/whchung/triton/compiler/hsaco"
	"github.com/whchung/triton/compiler/ir"
	"github.com/whchung/triton/compiler/tensor"
)

func main() {
	asmCmd := &cli.Command{
		Name:        "asm",
		Description: "print amdgcn assembly for the built-in smoke kernel",
		Action:      asmAct,
		Flags: []*cli.Flag{
			cli.NewFlag("arch", "gfx90a", "device architecture"),
		},
	}

	hsacoCmd := &cli.Command{
		Name:        "hsaco",
		Description: "translate the built-in smoke kernel to a loadable hsaco binary",
		Action:      hsacoAct,
		Flags: []*cli.Flag{
			cli.NewFlag("arch", "gfx90a", "device architecture"),
		},
	}

	app := &cli.Command{
		Name:        "triton",
		Description: "triton is a tool for lowering tensor kernels to amd gpu binaries",
		Commands: []*cli.Command{
			asmCmd,
			hsacoCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func asmAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	m := smokeModule()

	err = tensor.Lower(ctx, m)
	if err != nil {
		return errors.Wrap(err, "lower")
	}

	asm, err := hsaco.Assembly(ctx, m, c.String("arch"))
	if err != nil {
		return errors.Wrap(err, "emit assembly")
	}

	fmt.Printf("%s", asm)

	return nil
}

func hsacoAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	m := smokeModule()

	asm, path, err := compiler.Translate(ctx, m, c.String("arch"))
	if err != nil {
		return errors.Wrap(err, "translate")
	}

	fmt.Printf("%s", asm)
	fmt.Printf("hsaco: %v\n", path)

	return nil
}

// smokeModule is a trivial copy kernel: load a f32 tensor through one
// pointer tensor, store it through the other. Parsing an IR text format is
// out of scope, so the tool carries its own input.
func smokeModule() *ir.Module {
	m := ir.New("smoke")

	f32 := m.AddType(ir.Float{Bits: 32})
	pt := m.AddType(ir.Ptr{To: f32})
	tt := m.AddType(ir.Tensor{Shape: []int{64}, Elem: pt})
	void := m.AddType(ir.Void{})

	_, f := m.NewFunc("smoke_kernel", []ir.Type{tt, tt}, void)

	ld, err := tensor.NewLoad(m, f.In[0])
	if err != nil {
		panic(err)
	}

	st, err := tensor.NewStore(m, f.In[1], ld)
	if err != nil {
		panic(err)
	}

	ret := m.Add(ir.Ret{Value: ir.Nil}, void)

	f.Code = append(f.Code, ld, st, ret)

	return m
}
