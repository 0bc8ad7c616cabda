package gpumon

import "fmt"

// errNoVendorTool means neither nvidia-smi nor rocm-smi is on PATH. The
// whole subsystem is unusable without a working probe, so this aborts
// startup.
type errNoVendorTool struct{}

func (errNoVendorTool) Error() string {
	return "no supported GPU tool found on PATH (tried nvidia-smi, rocm-smi)"
}

// IsNoVendorTool reports whether err indicates a missing vendor tool-chain.
func IsNoVendorTool(err error) bool {
	_, ok := err.(errNoVendorTool)
	return ok
}

// probeFailedError wraps a single failed probe (timeout, non-zero exit,
// unparsable output). It is surfaced to the caller and never cached.
type probeFailedError struct {
	vendor Vendor
	cause  error
}

func (e probeFailedError) Error() string {
	return fmt.Sprintf("%s probe failed: %v", e.vendor, e.cause)
}

func (e probeFailedError) Unwrap() error { return e.cause }

// IsProbeFailed reports whether err came from a failed vendor probe.
func IsProbeFailed(err error) bool {
	_, ok := err.(probeFailedError)
	return ok
}
