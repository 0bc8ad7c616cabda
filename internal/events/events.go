// Package events carries lifecycle notifications from the VRAM arbiter and
// the generation services to observers (logs, metrics, UI). The event set is
// closed: every event is one of the tagged structs below.
package events

// Kind identifies an event variant.
type Kind string

const (
	KindModelLoaded          Kind = "model_loaded"
	KindModelUnloaded        Kind = "model_unloaded"
	KindGenerationComplete   Kind = "generation_complete"
	KindGenerationError      Kind = "generation_error"
	KindVRAMAllocated        Kind = "vram_allocated"
	KindVRAMReleased         Kind = "vram_released"
	KindVRAMAllocationFailed Kind = "vram_allocation_failed"
	KindVRAMUnloadRequested  Kind = "vram_unload_requested"
)

// Event is one notification on the bus.
type Event interface {
	Kind() Kind
}

// ModelLoaded is emitted after a backend finished loading.
type ModelLoaded struct {
	Service  string
	AmountGB float64
}

func (ModelLoaded) Kind() Kind { return KindModelLoaded }

// ModelUnloaded is emitted after a backend was unloaded and its memory
// released.
type ModelUnloaded struct {
	Service string
}

func (ModelUnloaded) Kind() Kind { return KindModelUnloaded }

// GenerationComplete is emitted when a work request finished successfully.
type GenerationComplete struct {
	RequestID string
	Result    string
}

func (GenerationComplete) Kind() Kind { return KindGenerationComplete }

// GenerationError is emitted when a work request failed.
type GenerationError struct {
	RequestID string
	Message   string
}

func (GenerationError) Kind() Kind { return KindGenerationError }

// VRAMAllocated is emitted when the arbiter grants memory to a service.
type VRAMAllocated struct {
	Service  string
	AmountGB float64
	Priority int
}

func (VRAMAllocated) Kind() Kind { return KindVRAMAllocated }

// VRAMReleased is emitted when a resident allocation is removed, whether
// voluntarily or by eviction.
type VRAMReleased struct {
	Service  string
	AmountGB float64
}

func (VRAMReleased) Kind() Kind { return KindVRAMReleased }

// VRAMAllocationFailed is emitted when a request could not be satisfied.
// Queued reports whether the service was placed on the pending queue.
type VRAMAllocationFailed struct {
	Service     string
	RequestedGB float64
	Queued      bool
}

func (VRAMAllocationFailed) Kind() Kind { return KindVRAMAllocationFailed }

// VRAMUnloadRequested is emitted when the arbiter evicts a service and its
// owner must unload the backing model.
type VRAMUnloadRequested struct {
	Service string
}

func (VRAMUnloadRequested) Kind() Kind { return KindVRAMUnloadRequested }

// Publisher receives events. Implementations must be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// NopPublisher is the default; it drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// MultiPublisher fans one event out to several publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}
