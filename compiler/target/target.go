package target

import (
	"context"
	"io"
	"sync"

	"tlog.app/go/errors"

	"github.com/whchung/triton/compiler/ir"
)

type (
	// Target is a registered code generation backend: codegen plus its
	// assembler and disassembler components.
	Target interface {
		Name() string
		Triple() string

		CreateMachine(proc, features string, opt Options, reloc RelocModel, level OptLevel) (Machine, error)
	}

	// Machine is a target configured for one device architecture and
	// feature set. Each emission pipeline is destructive and single use.
	Machine interface {
		DataLayout() string

		EmitAssembly(ctx context.Context, m *ir.Module) ([]byte, error)
		EmitObject(ctx context.Context, m *ir.Module, w io.Writer) error
	}

	Options struct {
		FPFusion FPFusion

		UnsafeFPMath bool
		NoInfsFPMath bool
		NoNaNsFPMath bool
	}

	FPFusion   int
	RelocModel int
	OptLevel   int
)

const (
	FusionStandard FPFusion = iota
	FusionFast
)

const (
	RelocStatic RelocModel = iota
	RelocPIC
)

const (
	OptNone OptLevel = iota
	OptDefault
	OptAggressive
)

var (
	mu       sync.Mutex
	registry = map[string]Target{}
)

// Register installs a backend for its triple. Registering the same triple
// again is a no-op, so redundant init calls are safe.
func Register(t Target) {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := registry[t.Triple()]; ok {
		return
	}

	registry[t.Triple()] = t
}

// Lookup resolves a triple to a registered backend.
func Lookup(triple string) (Target, error) {
	mu.Lock()
	defer mu.Unlock()

	t, ok := registry[triple]
	if !ok {
		return nil, errors.New("no target registered for triple %v", triple)
	}

	return t, nil
}
