package events

import "github.com/rs/zerolog"

// LogPublisher writes every event as a structured log line.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Info().Str("event", string(e.Kind()))
	switch t := e.(type) {
	case ModelLoaded:
		ev = ev.Str("service", t.Service).Float64("amount_gb", t.AmountGB)
	case ModelUnloaded:
		ev = ev.Str("service", t.Service)
	case GenerationComplete:
		ev = ev.Str("request_id", t.RequestID).Str("result", t.Result)
	case GenerationError:
		ev = ev.Str("request_id", t.RequestID).Str("error", t.Message)
	case VRAMAllocated:
		ev = ev.Str("service", t.Service).Float64("amount_gb", t.AmountGB).Int("priority", t.Priority)
	case VRAMReleased:
		ev = ev.Str("service", t.Service).Float64("amount_gb", t.AmountGB)
	case VRAMAllocationFailed:
		ev = ev.Str("service", t.Service).Float64("requested_gb", t.RequestedGB).Bool("queued", t.Queued)
	case VRAMUnloadRequested:
		ev = ev.Str("service", t.Service)
	}
	ev.Msg("event")
}
