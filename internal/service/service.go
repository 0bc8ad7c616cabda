// Package service runs the asynchronous generation pipeline on top of the
// VRAM arbiter: submit -> queued -> processing -> complete/failed/cancelled,
// with on-demand model loading and idle-based reclamation.
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vramd/internal/events"
	"vramd/internal/vram"
	"vramd/pkg/types"
)

// Backend is the injected generation runtime. All methods are synchronous
// and may be slow; the service never calls them while holding its own lock.
type Backend interface {
	// EstimateMemoryGB declares how much device memory a load will need.
	EstimateMemoryGB() float64
	// Load brings the model into device memory.
	Load() error
	// Unload frees the model's device memory.
	Unload() error
	// Generate runs one unit of work and returns a result reference.
	Generate(p types.GenerationParams) (string, error)
}

// Allocator is the slice of the arbiter the service needs.
type Allocator interface {
	Request(service string, amountGB float64, priority vram.Priority) (bool, error)
	Release(service string) bool
	CancelPending(service string) bool
}

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultIdleTimeout  = 5 * time.Minute
	defaultPollInterval = 25 * time.Millisecond
)

// Config holds Service construction parameters.
type Config struct {
	// Name keys the arbiter's accounting for this service.
	Name      string
	Backend   Backend
	Arbiter   Allocator
	Publisher events.Publisher
	Logger    zerolog.Logger
	// IdleTimeout is the inactivity window before automatic unload.
	IdleTimeout time.Duration
	// PollInterval is the worker's sleep when the queue is empty.
	PollInterval time.Duration
}

// Service orchestrates one backend: it asks the arbiter for memory, loads
// and unloads the injected backend, and drains submitted requests on a
// single background worker.
type Service struct {
	name        string
	backend     Backend
	arbiter     Allocator
	publisher   events.Publisher
	log         zerolog.Logger
	idleTimeout time.Duration
	poll        time.Duration

	// mu guards loaded/lastUsed and the request registry. It is released
	// before any call into the arbiter or the backend.
	mu        sync.Mutex
	loaded    bool
	lastUsed  time.Time
	requests  map[string]*Request
	order     []*Request
	submitted uint64
	nextID    uint64

	// opMu serializes load/unload so concurrent idle checks and explicit
	// calls cannot interleave backend transitions.
	opMu sync.Mutex

	workerMu sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Service. Name, Backend and Arbiter are required.
func New(cfg Config) (*Service, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("service: name is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("service: backend is required")
	}
	if cfg.Arbiter == nil {
		return nil, fmt.Errorf("service: arbiter is required")
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Service{
		name:        cfg.Name,
		backend:     cfg.Backend,
		arbiter:     cfg.Arbiter,
		publisher:   pub,
		log:         cfg.Logger.With().Str("service", cfg.Name).Logger(),
		idleTimeout: idle,
		poll:        poll,
		requests:    make(map[string]*Request),
	}, nil
}

// Name returns the arbiter accounting key.
func (s *Service) Name() string { return s.name }

// Loaded reports whether the model currently holds device memory.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LoadModel brings the model into memory, asking the arbiter for the
// backend's estimate at user-requested priority. Already loaded is a no-op.
// Contention returns an error satisfying IsInsufficientVRAM; the service is
// then queued by the arbiter and a later Release may admit it.
func (s *Service) LoadModel() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	need := s.backend.EstimateMemoryGB()
	ok, err := s.arbiter.Request(s.name, need, vram.PriorityUserRequested)
	if err != nil {
		return err
	}
	if !ok {
		return insufficientVRAMError{service: s.name, neededGB: need}
	}
	if err := s.backend.Load(); err != nil {
		// Give the grant back so a waiter can have it.
		s.arbiter.Release(s.name)
		return fmt.Errorf("load %s backend: %w", s.name, err)
	}

	s.mu.Lock()
	s.loaded = true
	s.lastUsed = time.Now()
	s.mu.Unlock()

	s.log.Info().Float64("amount_gb", need).Msg("model loaded")
	s.publisher.Publish(events.ModelLoaded{Service: s.name, AmountGB: need})
	return nil
}

// UnloadModel frees the model and releases its allocation. Idempotent and
// always succeeds; a backend unload error is logged, not propagated, so the
// arbiter accounting can never leak.
func (s *Service) UnloadModel() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		// Nothing resident, but a denied load may have left us queued.
		s.arbiter.CancelPending(s.name)
		return nil
	}
	s.mu.Unlock()

	if err := s.backend.Unload(); err != nil {
		s.log.Warn().Err(err).Msg("backend unload failed")
	}
	s.arbiter.Release(s.name)

	s.mu.Lock()
	s.loaded = false
	s.lastUsed = time.Time{}
	s.mu.Unlock()

	s.log.Info().Msg("model unloaded")
	s.publisher.Publish(events.ModelUnloaded{Service: s.name})
	return nil
}

// CheckIdleUnload unloads the model once it has been idle for the
// configured timeout. The idle decision is made under the service lock; the
// unload itself runs outside it.
func (s *Service) CheckIdleUnload() {
	s.mu.Lock()
	idle := s.loaded && !s.lastUsed.IsZero() && time.Since(s.lastUsed) >= s.idleTimeout
	s.mu.Unlock()
	if !idle {
		return
	}
	s.log.Info().Dur("idle_timeout", s.idleTimeout).Msg("idle timeout reached")
	_ = s.UnloadModel()
}

// Submit registers a new pending request and returns it immediately. The
// background worker picks it up in submission order.
func (s *Service) Submit(params types.GenerationParams) (*Request, error) {
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("%s-%d", s.name, s.nextID)
	s.mu.Unlock()

	req, err := NewRequest(id, params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.requests[id] = req
	s.order = append(s.order, req)
	s.submitted++
	s.mu.Unlock()

	s.log.Debug().Str("request_id", id).Msg("request submitted")
	return req, nil
}

// Get returns a snapshot of the request with the given id.
func (s *Service) Get(id string) (types.RequestSnapshot, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return types.RequestSnapshot{}, requestNotFoundError{id: id}
	}
	return req.Snapshot(), nil
}

// Cancel cancels the request with the given id. It returns false without
// error when the request is already terminal.
func (s *Service) Cancel(id string) (bool, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return false, requestNotFoundError{id: id}
	}
	return req.Cancel(), nil
}

// List returns snapshots of all known requests in submission order.
func (s *Service) List() []types.RequestSnapshot {
	s.mu.Lock()
	reqs := make([]*Request, len(s.order))
	copy(reqs, s.order)
	s.mu.Unlock()
	out := make([]types.RequestSnapshot, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Snapshot())
	}
	return out
}

// Status returns a read-only view for diagnostics.
func (s *Service) Status() types.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastUsed int64
	if !s.lastUsed.IsZero() {
		lastUsed = s.lastUsed.Unix()
	}
	queue := 0
	for _, r := range s.order {
		if r.State() == StatePending {
			queue++
		}
	}
	return types.ServiceStatus{
		Service:         s.name,
		Loaded:          s.loaded,
		LastUsed:        lastUsed,
		IdleTimeoutSecs: int(s.idleTimeout / time.Second),
		QueueLen:        queue,
		RequestsTotal:   s.submitted,
	}
}

func (s *Service) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}
