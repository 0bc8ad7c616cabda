// Package vram arbitrates device memory among independent services sharing
// one GPU. It owns the registry of resident allocations and the pending
// queue, and decides who gets memory, who is evicted and who waits.
package vram

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vramd/internal/events"
)

// DefaultBufferGB is reserved from every free reading to absorb driver/OS
// overhead; it is never offered to any requester.
const DefaultBufferGB = 0.5

// MemoryProvider supplies ground-truth device memory readings. Satisfied by
// *gpumon.Monitor; tests inject a fake.
type MemoryProvider interface {
	FreeGB(ctx context.Context) (float64, error)
	TotalGB(ctx context.Context) (float64, error)
	InvalidateCache()
}

// Resident is one currently-loaded service. Owned exclusively by the
// arbiter.
type Resident struct {
	Service  string
	AmountGB float64
	Priority Priority
	LoadedAt time.Time
}

// pendingEntry is one service waiting for memory. A service has at most one
// pending entry, mutually exclusive with residency.
type pendingEntry struct {
	service    string
	amountGB   float64
	priority   Priority
	enqueuedAt time.Time
}

// Config holds Arbiter construction parameters. TotalGB 0 means
// auto-detect from the monitor; BufferGB 0 selects DefaultBufferGB.
type Config struct {
	Monitor   MemoryProvider
	TotalGB   float64
	BufferGB  float64
	Publisher events.Publisher
}

// Arbiter is the resource arbiter. One exclusive lock guards the resident
// map, the pending queue and the derived available computation for the full
// duration of every public operation.
type Arbiter struct {
	mu        sync.Mutex
	monitor   MemoryProvider
	totalGB   float64
	bufferGB  float64
	resident  map[string]*Resident
	pending   []pendingEntry
	publisher events.Publisher

	allocations uint64
	evictions   uint64
	releases    uint64
}

// New constructs an Arbiter. When cfg.TotalGB is zero the total is detected
// through the monitor; a probe failure then aborts construction.
func New(cfg Config) (*Arbiter, error) {
	if cfg.Monitor == nil {
		return nil, fmt.Errorf("vram: monitor is required")
	}
	total := cfg.TotalGB
	if total <= 0 {
		detected, err := cfg.Monitor.TotalGB(context.Background())
		if err != nil {
			return nil, fmt.Errorf("vram: detect total memory: %w", err)
		}
		total = detected
	}
	buffer := cfg.BufferGB
	if buffer <= 0 {
		buffer = DefaultBufferGB
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Arbiter{
		monitor:   cfg.Monitor,
		totalGB:   total,
		bufferGB:  buffer,
		resident:  make(map[string]*Resident),
		publisher: pub,
	}, nil
}

// TotalGB reports the fixed total used for accounting.
func (a *Arbiter) TotalGB() float64 { return a.totalGB }

// Available returns memory currently offerable to a new requester:
// max(0, free - buffer), where free is a fresh reading through the
// monitor's own cache, capped by the arbiter's own accounting.
func (a *Arbiter) Available() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availableLocked()
}

func (a *Arbiter) availableLocked() (float64, error) {
	return a.availableExtraLocked(0)
}

// availableExtraLocked probes the monitor and caps the reading by declared
// residency. The cap keeps the sum of resident allocations within
// total-buffer even while allocations are granted faster than the backends
// physically occupy memory. freedGB credits memory freed by evictions in the
// current operation that the probe cannot see yet: evicted owners unload
// asynchronously after the notification.
func (a *Arbiter) availableExtraLocked(freedGB float64) (float64, error) {
	free, err := a.monitor.FreeGB(context.Background())
	if err != nil {
		return 0, err
	}
	free += freedGB
	if declared := a.totalGB - a.residentSumLocked(); declared < free {
		free = declared
	}
	avail := free - a.bufferGB
	if avail < 0 {
		avail = 0
	}
	return avail, nil
}

func (a *Arbiter) residentSumLocked() float64 {
	var sum float64
	for _, r := range a.resident {
		sum += r.AmountGB
	}
	return sum
}

// Request asks for amountGB on behalf of service. It returns (true, nil)
// once the allocation is granted, evicting strictly-lower-priority residents
// if needed. When memory cannot be found the service is enqueued and
// (false, nil) is returned; insufficient memory is a normal outcome, not an
// error. Only probe failures return a non-nil error.
//
// A request from an already-resident service is a resize: its current
// allocation is counted as available to itself.
func (a *Arbiter) Request(service string, amountGB float64, priority Priority) (bool, error) {
	if service == "" || amountGB <= 0 {
		return false, fmt.Errorf("vram: invalid request service=%q amount=%v", service, amountGB)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	avail, err := a.availableLocked()
	if err != nil {
		return false, err
	}
	var own float64
	if r, ok := a.resident[service]; ok {
		own = r.AmountGB
	}

	if amountGB <= avail+own {
		a.allocateLocked(service, amountGB, priority)
		return true, nil
	}

	if freed := a.evictLocked(service, amountGB, priority, avail+own); freed > 0 {
		avail, err = a.availableExtraLocked(freed)
		if err != nil {
			return false, err
		}
	}
	if amountGB <= avail+own {
		a.allocateLocked(service, amountGB, priority)
		return true, nil
	}

	if _, resident := a.resident[service]; resident {
		// A failed resize keeps the current residency. Resident and
		// pending entries are mutually exclusive, so the service is not
		// enqueued on top of what it already holds.
		a.publisher.Publish(events.VRAMAllocationFailed{Service: service, RequestedGB: amountGB, Queued: false})
		return false, nil
	}
	a.enqueueLocked(service, amountGB, priority)
	a.publisher.Publish(events.VRAMAllocationFailed{Service: service, RequestedGB: amountGB, Queued: true})
	return false, nil
}

// evictLocked removes residents with priority strictly below the
// requester's, lowest priority first, until the request would fit or the
// candidates run out. Returns the total GB freed.
func (a *Arbiter) evictLocked(requester string, amountGB float64, priority Priority, avail float64) float64 {
	cands := make([]*Resident, 0, len(a.resident))
	for name, r := range a.resident {
		if name == requester {
			continue
		}
		if r.Priority < priority {
			cands = append(cands, r)
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Priority != cands[j].Priority {
			return cands[i].Priority < cands[j].Priority
		}
		return cands[i].LoadedAt.Before(cands[j].LoadedAt)
	})

	var freed float64
	for _, victim := range cands {
		if amountGB <= avail+freed {
			break
		}
		delete(a.resident, victim.Service)
		freed += victim.AmountGB
		a.evictions++
		a.releases++
		a.monitor.InvalidateCache()
		a.publisher.Publish(events.VRAMUnloadRequested{Service: victim.Service})
		a.publisher.Publish(events.VRAMReleased{Service: victim.Service, AmountGB: victim.AmountGB})
	}
	return freed
}

// allocateLocked upserts the resident entry and drops any stale pending
// entry for the same service.
func (a *Arbiter) allocateLocked(service string, amountGB float64, priority Priority) {
	if r, ok := a.resident[service]; ok {
		r.AmountGB = amountGB
		r.Priority = priority
	} else {
		a.resident[service] = &Resident{
			Service:  service,
			AmountGB: amountGB,
			Priority: priority,
			LoadedAt: time.Now(),
		}
	}
	a.removePendingLocked(service)
	a.allocations++
	a.publisher.Publish(events.VRAMAllocated{Service: service, AmountGB: amountGB, Priority: int(priority)})
}

// enqueueLocked inserts or refreshes the pending entry for service. The
// queue stays sorted by (-priority, enqueue time): higher priority first,
// FIFO within a priority band.
func (a *Arbiter) enqueueLocked(service string, amountGB float64, priority Priority) {
	a.removePendingLocked(service)
	entry := pendingEntry{
		service:    service,
		amountGB:   amountGB,
		priority:   priority,
		enqueuedAt: time.Now(),
	}
	idx := sort.Search(len(a.pending), func(i int) bool {
		if a.pending[i].priority != entry.priority {
			return a.pending[i].priority < entry.priority
		}
		return a.pending[i].enqueuedAt.After(entry.enqueuedAt)
	})
	a.pending = append(a.pending, pendingEntry{})
	copy(a.pending[idx+1:], a.pending[idx:])
	a.pending[idx] = entry
}

func (a *Arbiter) removePendingLocked(service string) bool {
	for i, p := range a.pending {
		if p.service == service {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Release removes the service's resident entry, then serves the pending
// queue. Releasing a never-allocated service is a no-op returning false.
func (a *Arbiter) Release(service string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.resident[service]
	if !ok {
		return false
	}
	delete(a.resident, service)
	a.releases++
	a.monitor.InvalidateCache()
	a.publisher.Publish(events.VRAMReleased{Service: service, AmountGB: r.AmountGB})
	a.drainPendingLocked()
	return true
}

// CancelPending drops the service's pending entry if it has one.
func (a *Arbiter) CancelPending(service string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removePendingLocked(service)
}

// drainPendingLocked serves waiters from the head of the queue until one
// does not fit. The head blocks everything behind it on purpose: skipping
// ahead to a smaller waiter would let a stream of small requests starve a
// large one indefinitely.
func (a *Arbiter) drainPendingLocked() {
	for len(a.pending) > 0 {
		head := a.pending[0]
		avail, err := a.availableLocked()
		if err != nil {
			return
		}
		if head.amountGB > avail {
			return
		}
		a.pending = a.pending[1:]
		a.allocateLocked(head.service, head.amountGB, head.priority)
	}
}
