// Package backend provides a stand-in generation backend. Real backends
// (diffusion, LLM, speech runtimes) live out of process and are injected via
// the service.Backend interface; the stub keeps the daemon and the tests
// runnable without one.
package backend

import (
	"fmt"
	"sync"
	"time"

	"vramd/pkg/types"
)

// Stub simulates a backend with a fixed memory estimate and configurable
// delays and failures.
type Stub struct {
	EstimateGB    float64
	LoadDelay     time.Duration
	GenerateDelay time.Duration
	LoadErr       error
	GenerateErr   error

	mu          sync.Mutex
	loaded      bool
	generations int
}

func (s *Stub) EstimateMemoryGB() float64 { return s.EstimateGB }

func (s *Stub) Load() error {
	if s.LoadDelay > 0 {
		time.Sleep(s.LoadDelay)
	}
	if s.LoadErr != nil {
		return s.LoadErr
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Stub) Unload() error {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return nil
}

func (s *Stub) Generate(p types.GenerationParams) (string, error) {
	if s.GenerateDelay > 0 {
		time.Sleep(s.GenerateDelay)
	}
	if s.GenerateErr != nil {
		return "", s.GenerateErr
	}
	s.mu.Lock()
	s.generations++
	n := s.generations
	s.mu.Unlock()
	return fmt.Sprintf("stub-result-%d (%d prompt chars)", n, len(p.Prompt)), nil
}

// Loaded reports whether Load has been called without a matching Unload.
func (s *Stub) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Generations returns how many Generate calls completed.
func (s *Stub) Generations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations
}
