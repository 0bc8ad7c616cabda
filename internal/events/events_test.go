package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemoryPublisherRecordsInOrder(t *testing.T) {
	p := NewMemoryPublisher()
	p.Publish(VRAMAllocated{Service: "image", AmountGB: 4})
	p.Publish(ModelLoaded{Service: "image", AmountGB: 4})
	p.Publish(VRAMReleased{Service: "image", AmountGB: 4})

	all := p.Events()
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].Kind() != KindVRAMAllocated || all[2].Kind() != KindVRAMReleased {
		t.Fatalf("events out of order: %v %v", all[0].Kind(), all[2].Kind())
	}
	if got := p.ByKind(KindModelLoaded); len(got) != 1 {
		t.Fatalf("ByKind: expected 1, got %d", len(got))
	}
	if got := p.ByKind(KindGenerationError); len(got) != 0 {
		t.Fatalf("ByKind on absent kind must be empty, got %d", len(got))
	}
}

func TestMultiPublisherFansOut(t *testing.T) {
	a := NewMemoryPublisher()
	b := NewMemoryPublisher()
	m := MultiPublisher{a, b, NopPublisher{}}
	m.Publish(ModelUnloaded{Service: "image"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both sinks to receive the event: %d/%d", len(a.Events()), len(b.Events()))
	}
}

func TestKindsAreDistinct(t *testing.T) {
	evts := []Event{
		ModelLoaded{},
		ModelUnloaded{},
		GenerationComplete{},
		GenerationError{},
		VRAMAllocated{},
		VRAMReleased{},
		VRAMAllocationFailed{},
		VRAMUnloadRequested{},
	}
	seen := make(map[Kind]bool)
	for _, e := range evts {
		k := e.Kind()
		if k == "" {
			t.Fatalf("empty kind for %T", e)
		}
		if seen[k] {
			t.Fatalf("duplicate kind %q", k)
		}
		seen[k] = true
	}
}

func TestMetricsPublisherCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewMetricsPublisher(reg)

	p.Publish(VRAMAllocated{Service: "image", AmountGB: 4})
	p.Publish(VRAMAllocated{Service: "llm", AmountGB: 6})
	p.Publish(VRAMReleased{Service: "llm", AmountGB: 6})
	p.Publish(VRAMAllocationFailed{Service: "video", RequestedGB: 9, Queued: true})
	p.Publish(VRAMAllocationFailed{Service: "image", RequestedGB: 5, Queued: false})

	if got := testutil.ToFloat64(p.allocatedGBTotal); got != 10 {
		t.Fatalf("allocated_gb_total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(p.evictedGBTotal); got != 6 {
		t.Fatalf("released_gb_total = %v, want 6", got)
	}
	// Non-queued failures are not deferred work and must not count.
	if got := testutil.ToFloat64(p.queuedTotal); got != 1 {
		t.Fatalf("queued_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.eventsTotal.WithLabelValues(string(KindVRAMAllocated))); got != 2 {
		t.Fatalf("published_total{kind=vram_allocated} = %v, want 2", got)
	}
}
