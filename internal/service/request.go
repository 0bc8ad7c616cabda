package service

import (
	"sync"
	"time"

	"vramd/pkg/types"
)

// State is the lifecycle state of a work request.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// Request is one unit of asynchronous generation work. It guards its own
// fields with its own lock, independent of the arbiter's and the service's;
// mutation happens only through the transition methods below.
//
// Invariant: result is set iff state is complete; error is set iff state is
// failed; both are cleared on any transition into processing.
type Request struct {
	mu        sync.Mutex
	id        string
	params    types.GenerationParams
	createdAt time.Time
	state     State
	result    string
	err       string
}

// NewRequest rejects an empty identifier or an empty prompt.
func NewRequest(id string, params types.GenerationParams) (*Request, error) {
	if id == "" {
		return nil, invalidRequestError{reason: "empty request id"}
	}
	if params.Prompt == "" {
		return nil, invalidRequestError{reason: "empty prompt"}
	}
	return &Request{
		id:        id,
		params:    params,
		createdAt: time.Now(),
		state:     StatePending,
	}, nil
}

func (r *Request) ID() string { return r.id }

func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartProcessing moves pending -> processing; any other state is a no-op.
func (r *Request) StartProcessing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePending {
		return
	}
	r.state = StateProcessing
	r.result = ""
	r.err = ""
}

// MarkComplete records the result. A no-op from terminal states.
func (r *Request) MarkComplete(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = StateComplete
	r.result = result
	r.err = ""
}

// MarkFailed records the failure message. A no-op from terminal states.
func (r *Request) MarkFailed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = StateFailed
	r.err = msg
	r.result = ""
}

// Cancel succeeds only from pending or processing. Cancellation is logical:
// it never interrupts a generation already running in the worker.
func (r *Request) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.state = StateCancelled
	return true
}

// Snapshot returns an immutable view of all fields for cross-goroutine
// inspection.
func (r *Request) Snapshot() types.RequestSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.RequestSnapshot{
		ID:        r.id,
		Params:    r.params,
		State:     string(r.state),
		Result:    r.result,
		Error:     r.err,
		CreatedAt: r.createdAt.Unix(),
	}
}
