package hsaco

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/whchung/triton/compiler/ir"
	"github.com/whchung/triton/compiler/target"
	"github.com/whchung/triton/compiler/target/amdgpu"
)

const (
	// Feature string every supported device arch is compiled with.
	features = "+sramecc,-xnack"

	dumpEnv = "AMDGCN_ENABLE_DUMP"
	lldEnv  = "TRITON_HIP_LLD_PATH"

	defaultLLD = "/opt/rocm/llvm/bin/ld.lld"
)

// LinkError is a linker subprocess failure: nonzero exit or inability to
// launch (ExitCode -1), with whatever the linker printed.
type LinkError struct {
	LLD      string
	ExitCode int
	Output   []byte
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%v: exit code %d", e.LLD, e.ExitCode)
}

// Translate produces amdgcn assembly text and a loadable hsaco binary from
// a lowered module. On success the returned path exists and is loadable;
// any stage failure aborts the pipeline with no artifact path.
func Translate(ctx context.Context, m *ir.Module, arch string) (asm []byte, path string, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "translate to hsaco", "module", m.Name, "arch", arch)
	defer tr.Finish("err", &err)

	amdgpu.Register()

	// Object emission works on a clone: each emission pipeline is
	// destructive and must not observe the other.
	objm := m.Clone()

	asm, err = emitAssembly(ctx, m, arch)
	if err != nil {
		return nil, "", errors.Wrap(err, "assembly")
	}

	base, err := tmpBase(m.Name)
	if err != nil {
		return nil, "", errors.Wrap(err, "temp dir")
	}

	objPath := base + ".o"

	err = emitObject(ctx, objm, arch, objPath)
	if err != nil {
		return nil, "", errors.Wrap(err, "object")
	}

	path = base + ".hsaco"

	err = link(ctx, objPath, path)
	if err != nil {
		return nil, "", errors.Wrap(err, "link")
	}

	tr.Printw("translated", "asm_size", len(asm), "hsaco", path)

	return asm, path, nil
}

// Assembly runs the pipeline through assembly emission only, no object
// or link stage.
func Assembly(ctx context.Context, m *ir.Module, arch string) ([]byte, error) {
	amdgpu.Register()

	return emitAssembly(ctx, m, arch)
}

// configure verifies the module and builds a machine for it: fixed triple,
// fast fp fusion, no unsafe math, NaNs assumed absent, PIC, aggressive
// optimization. Every function is forced always-inline, downstream relies
// on a single flattened kernel.
func configure(m *ir.Module, arch string) (target.Machine, error) {
	err := m.Verify()
	if err != nil {
		return nil, errors.Wrap(err, "verify module")
	}

	m.Triple = amdgpu.Triple

	tg, err := target.Lookup(m.Triple)
	if err != nil {
		return nil, errors.Wrap(err, "resolve target")
	}

	opt := target.Options{
		FPFusion: target.FusionFast,

		UnsafeFPMath: false,
		NoInfsFPMath: false,
		NoNaNsFPMath: true,
	}

	mach, err := tg.CreateMachine(arch, features, opt, target.RelocPIC, target.OptAggressive)
	if err != nil {
		return nil, errors.Wrap(err, "create machine")
	}

	m.Layout = mach.DataLayout()

	for _, fid := range m.Funcs {
		if f, ok := m.Exprs[fid].(*ir.Func); ok {
			f.AlwaysInline = true
		}
	}

	return mach, nil
}

func emitAssembly(ctx context.Context, m *ir.Module, arch string) ([]byte, error) {
	mach, err := configure(m, arch)
	if err != nil {
		return nil, err
	}

	asm, err := mach.EmitAssembly(ctx, m)
	if err != nil {
		return nil, err
	}

	if boolEnv(dumpEnv) {
		fmt.Fprintf(os.Stderr, "// -----// AMDGCN Dump //----- //\n%s\n", asm)
	}

	return asm, nil
}

func emitObject(ctx context.Context, m *ir.Module, arch, path string) (err error) {
	mach, err := configure(m, arch)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create object file")
	}

	err = mach.EmitObject(ctx, m, f)
	if err != nil {
		_ = f.Close()
		return err
	}

	err = f.Close()
	if err != nil {
		return errors.Wrap(err, "close object file")
	}

	return nil
}

func link(ctx context.Context, obj, out string) error {
	lld := lldPath()

	cmd := exec.Command(lld, "-flavor", "gnu", "-shared", "-o", out, obj)

	output, err := cmd.CombinedOutput()
	if err != nil {
		le := &LinkError{LLD: lld, ExitCode: -1, Output: output}

		if xe, ok := err.(*exec.ExitError); ok {
			le.ExitCode = xe.ExitCode()
		}

		return le
	}

	tlog.SpanFromContext(ctx).Printw("linked", "hsaco", out, "lld", lld)

	return nil
}

func lldPath() string {
	if p := os.Getenv(lldEnv); p != "" {
		return p
	}

	if p, err := exec.LookPath("ld.lld"); err == nil {
		return p
	}

	return defaultLLD
}

// tmpBase returns a process-unique base name so concurrent compilations
// never collide on intermediate artifacts.
func tmpBase(name string) (string, error) {
	dir, err := os.MkdirTemp("", "triton-hsaco-")
	if err != nil {
		return "", err
	}

	if name == "" {
		name = "kernel"
	}

	return filepath.Join(dir, name), nil
}

func boolEnv(name string) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "on", "yes":
		return true
	}

	return false
}
