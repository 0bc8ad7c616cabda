package vram

import (
	"sort"

	"vramd/pkg/types"
)

// Status returns a read-only snapshot for diagnostics. It takes the arbiter
// lock but never probes the device, so it is cheap and safe from any
// goroutine.
func (a *Arbiter) Status() types.VRAMStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := types.VRAMStatus{
		TotalGB:          a.totalGB,
		BufferGB:         a.bufferGB,
		UsedGB:           a.residentSumLocked(),
		PendingCount:     len(a.pending),
		AllocationsTotal: a.allocations,
		EvictionsTotal:   a.evictions,
		ReleasesTotal:    a.releases,
	}
	st.Residents = make([]types.ResidentStatus, 0, len(a.resident))
	for _, r := range a.resident {
		st.Residents = append(st.Residents, types.ResidentStatus{
			Service:  r.Service,
			AmountGB: r.AmountGB,
			Priority: int(r.Priority),
			LoadedAt: r.LoadedAt.Unix(),
		})
	}
	sort.Slice(st.Residents, func(i, j int) bool {
		return st.Residents[i].Service < st.Residents[j].Service
	})
	return st
}
