package amdgpu

import (
	"strings"
	"sync"

	"tlog.app/go/errors"

	"github.com/whchung/triton/compiler/target"
)

const (
	Triple = "amdgcn-amd-amdhsa"

	// amdgcn data layout: 64-bit flat pointers, 32-bit scratch and lds,
	// wavefront-friendly vector alignment.
	DataLayout = "e-p:64:64-p1:64:64-p2:32:32-p3:32:32-p4:64:64-p5:32:32" +
		"-p6:32:32-i64:64-v16:16-v24:32-v32:32-v48:64-v96:128-v192:256" +
		"-v256:256-v512:512-v1024:1024-v2048:2048-n32:64-S32-A5"
)

type (
	gcnTarget struct{}

	// machine is one configured codegen pipeline. Emission is
	// destructive, so a machine serves exactly one Emit call.
	machine struct {
		proc     string
		features map[string]bool

		opt   target.Options
		reloc target.RelocModel
		level target.OptLevel

		ran bool
	}
)

var initOnce sync.Once

// Register installs the amdgcn codegen, assembler and disassembler
// components. Idempotent, safe to call from multiple sites.
func Register() {
	initOnce.Do(func() {
		target.Register(gcnTarget{})
	})
}

func (gcnTarget) Name() string   { return "amdgcn" }
func (gcnTarget) Triple() string { return Triple }

func (gcnTarget) CreateMachine(proc, features string, opt target.Options, reloc target.RelocModel, level target.OptLevel) (target.Machine, error) {
	if !validProc(proc) {
		return nil, errors.New("unsupported device arch: %v", proc)
	}

	fs, err := parseFeatures(features)
	if err != nil {
		return nil, errors.Wrap(err, "features")
	}

	return &machine{
		proc:     proc,
		features: fs,

		opt:   opt,
		reloc: reloc,
		level: level,
	}, nil
}

func (mach *machine) DataLayout() string { return DataLayout }

func (mach *machine) consume() error {
	if mach.ran {
		return errors.New("codegen pass pipeline already consumed")
	}

	mach.ran = true

	return nil
}

func validProc(proc string) bool {
	if !strings.HasPrefix(proc, "gfx") || len(proc) == len("gfx") {
		return false
	}

	for _, c := range proc[3:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

func parseFeatures(s string) (map[string]bool, error) {
	fs := map[string]bool{}

	if s == "" {
		return fs, nil
	}

	for _, f := range strings.Split(s, ",") {
		if len(f) < 2 || (f[0] != '+' && f[0] != '-') {
			return nil, errors.New("malformed feature: %q", f)
		}

		fs[f[1:]] = f[0] == '+'
	}

	return fs, nil
}

// targetID renders the feature-qualified target id used in asm directives,
// e.g. amdgcn-amd-amdhsa--gfx90a:sramecc+:xnack-.
func (mach *machine) targetID() string {
	var sb strings.Builder

	sb.WriteString(Triple)
	sb.WriteString("--")
	sb.WriteString(mach.proc)

	for _, f := range []string{"sramecc", "xnack"} {
		on, ok := mach.features[f]
		if !ok {
			continue
		}

		sb.WriteByte(':')
		sb.WriteString(f)

		if on {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
	}

	return sb.String()
}
