package types

// GenerationParams is the payload of one unit of generation work. It is
// opaque to the VRAM arbiter; only the backend interprets it.
type GenerationParams struct {
	// Required prompt text to generate from.
	// example: a watercolor painting of a lighthouse
	Prompt string `json:"prompt" example:"a watercolor painting of a lighthouse"`
	// Maximum number of output tokens/steps.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Random seed for reproducibility; 0 lets the backend choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// RequestSnapshot is an immutable view of a work request, safe to hand
// across goroutines and to serialize.
type RequestSnapshot struct {
	// Unique request identifier assigned at submission.
	// example: image-7
	ID string `json:"id" example:"image-7"`
	// Parameters as submitted.
	Params GenerationParams `json:"params"`
	// Lifecycle state: pending, processing, complete, failed or cancelled.
	// example: complete
	State string `json:"state" example:"complete"`
	// Result reference; set only when state is complete.
	Result string `json:"result,omitempty"`
	// Error message; set only when state is failed.
	Error string `json:"error,omitempty"`
	// Submission time in unix seconds.
	// example: 1700000000
	CreatedAt int64 `json:"created_at_unix" example:"1700000000"`
}

// ResidentStatus describes one service currently holding VRAM.
type ResidentStatus struct {
	// Service name holding the allocation.
	// example: image
	Service string `json:"service" example:"image"`
	// Allocated amount in GB as declared by the service.
	// example: 4.0
	AmountGB float64 `json:"amount_gb" example:"4.0"`
	// Priority the allocation was granted at.
	// example: 8
	Priority int `json:"priority" example:"8"`
	// Time the allocation was granted (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
}

// VRAMStatus is a read-only snapshot of the arbiter state.
type VRAMStatus struct {
	// Total device memory in GB (detected or configured).
	// example: 8.0
	TotalGB float64 `json:"total_gb" example:"8.0"`
	// Safety buffer in GB never offered to requesters.
	// example: 0.5
	BufferGB float64 `json:"buffer_gb" example:"0.5"`
	// Sum of resident allocations in GB.
	// example: 4.0
	UsedGB float64 `json:"used_gb" example:"4.0"`
	// Currently resident services.
	Residents []ResidentStatus `json:"residents"`
	// Number of services waiting for memory.
	// example: 1
	PendingCount int `json:"pending_count" example:"1"`
	// Total allocations granted since start.
	AllocationsTotal uint64 `json:"allocations_total"`
	// Total evictions performed to free memory.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Total releases (voluntary or forced).
	ReleasesTotal uint64 `json:"releases_total"`
}

// ServiceStatus summarizes one generation service.
type ServiceStatus struct {
	// Service name used for VRAM accounting.
	// example: image
	Service string `json:"service" example:"image"`
	// Whether the model is currently loaded.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Last time the model served a request (unix seconds, 0 when unloaded).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Idle timeout in seconds before automatic unload.
	// example: 300
	IdleTimeoutSecs int `json:"idle_timeout_secs" example:"300"`
	// Requests still waiting for the worker.
	// example: 2
	QueueLen int `json:"queue_len" example:"2"`
	// Total requests submitted since start.
	RequestsTotal uint64 `json:"requests_total"`
}
