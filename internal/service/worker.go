package service

import (
	"fmt"
	"time"

	"vramd/internal/events"
)

// Start launches the background worker. Calling Start on a running service
// is a no-op.
func (s *Service) Start() {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)
	s.log.Debug().Msg("worker started")
}

// Stop signals the worker to exit and waits up to timeout for it to finish.
// Safe to call on a never-started service.
func (s *Service) Stop(timeout time.Duration) error {
	s.workerMu.Lock()
	if !s.running {
		s.workerMu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.workerMu.Unlock()

	select {
	case <-done:
		s.log.Debug().Msg("worker stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker for %s did not stop within %v", s.name, timeout)
	}
}

// run drains pending requests strictly FIFO by submission order. Priorities
// govern VRAM contention only, never the order of generation work.
func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		req := s.takePending()
		if req == nil {
			select {
			case <-stop:
				return
			case <-time.After(s.poll):
			}
			continue
		}

		s.process(req)
		s.CheckIdleUnload()
	}
}

// takePending returns the oldest request still pending, or nil. Terminal
// requests at the head of the submission order are pruned from the scan
// list; they stay reachable through the registry.
func (s *Service) takePending() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.order) > 0 {
		head := s.order[0]
		st := head.State()
		if st == StatePending {
			return head
		}
		if !st.Terminal() {
			// Head is processing: nothing older to do.
			return nil
		}
		s.order = s.order[1:]
	}
	return nil
}

// process runs one request to a terminal state. Failures are captured on
// the request and reported via notification; they never escape into the
// worker loop, so one bad generation cannot halt the queue.
func (s *Service) process(req *Request) {
	req.StartProcessing()
	if req.State() != StateProcessing {
		// Lost a race with Cancel between take and start.
		return
	}

	result, err := s.generate(req)
	if err != nil {
		req.MarkFailed(err.Error())
		s.log.Warn().Str("request_id", req.ID()).Err(err).Msg("generation failed")
		s.publisher.Publish(events.GenerationError{RequestID: req.ID(), Message: err.Error()})
		return
	}
	req.MarkComplete(result)
	s.touch()
	s.log.Info().Str("request_id", req.ID()).Msg("generation complete")
	s.publisher.Publish(events.GenerationComplete{RequestID: req.ID(), Result: result})
}

// generate loads the model on demand and invokes the backend, converting
// panics into plain errors. A load denied for lack of memory fails the
// request; there is no automatic retry.
func (s *Service) generate(req *Request) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	if !s.Loaded() {
		if lerr := s.LoadModel(); lerr != nil {
			return "", lerr
		}
	}
	snap := req.Snapshot()
	return s.backend.Generate(snap.Params)
}
