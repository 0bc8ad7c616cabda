package service

import "fmt"

// insufficientVRAMError signals that the arbiter could not grant the load
// request; the service was queued for a future release. Maps to 503.
type insufficientVRAMError struct {
	service  string
	neededGB float64
}

func (e insufficientVRAMError) Error() string {
	return fmt.Sprintf("insufficient VRAM for %s: %.1f GB requested, queued for next release", e.service, e.neededGB)
}

// NewInsufficientVRAM builds the contention error for a named service.
func NewInsufficientVRAM(service string, neededGB float64) error {
	return insufficientVRAMError{service: service, neededGB: neededGB}
}

// IsInsufficientVRAM reports whether err indicates VRAM contention.
func IsInsufficientVRAM(err error) bool {
	_, ok := err.(insufficientVRAMError)
	return ok
}

// requestNotFoundError signals an unknown request id. Maps to 404.
type requestNotFoundError struct{ id string }

func (e requestNotFoundError) Error() string { return "request not found: " + e.id }

// NewRequestNotFound builds the missing-id error.
func NewRequestNotFound(id string) error { return requestNotFoundError{id: id} }

// IsRequestNotFound reports whether err indicates a missing request id.
func IsRequestNotFound(err error) bool {
	_, ok := err.(requestNotFoundError)
	return ok
}

// invalidRequestError signals rejected input at construction time. Maps to
// 400.
type invalidRequestError struct{ reason string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.reason }

// IsInvalidRequest reports whether err indicates rejected caller input.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}
