// Package backend chooses the compute backend the model runtime executes on.
// The choice is made once per process and injected into the session.
package backend

import (
	"fmt"
	"strings"
)

// ComputeBackend is the execution context used for model arithmetic.
type ComputeBackend int

const (
	// Accelerated runs on a GPU-capable execution context.
	Accelerated ComputeBackend = iota
	// CPUFallback runs on the host CPU.
	CPUFallback
)

func (b ComputeBackend) String() string {
	switch b {
	case Accelerated:
		return "accelerated"
	case CPUFallback:
		return "cpu"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Device returns the runtime device name passed to the inference runtime.
func (b ComputeBackend) Device() string {
	if b == Accelerated {
		return "gpu"
	}
	return "cpu"
}

// Probe reports whether an accelerated execution context is available.
type Probe func() (bool, error)

// Select returns Accelerated when probe reports a usable accelerator and
// CPUFallback otherwise. A nil probe, a probe error and a probe panic all
// select CPUFallback.
func Select(probe Probe) (b ComputeBackend) {
	if probe == nil {
		return CPUFallback
	}
	defer func() {
		if r := recover(); r != nil {
			b = CPUFallback
		}
	}()
	ok, err := probe()
	if err != nil || !ok {
		return CPUFallback
	}
	return Accelerated
}

// ParseMode maps a configured device mode to a probe. "auto" (or empty)
// uses detect; "accelerated"/"gpu" and "cpu" force the outcome.
func ParseMode(mode string, detect Probe) (Probe, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return detect, nil
	case "accelerated", "gpu", "webgpu":
		return func() (bool, error) { return true, nil }, nil
	case "cpu", "wasm":
		return func() (bool, error) { return false, nil }, nil
	default:
		return nil, fmt.Errorf("unknown device mode %q (want auto|accelerated|cpu)", mode)
	}
}
