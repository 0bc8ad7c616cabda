// Package gpumon reads free/total accelerator memory by shelling out to the
// vendor inspection tool (nvidia-smi or rocm-smi). Readings are cached for a
// short TTL so callers can poll without spawning a subprocess per call.
package gpumon

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Vendor identifies the detected GPU tool-chain.
type Vendor string

const (
	VendorNVIDIA Vendor = "nvidia"
	VendorAMD    Vendor = "amd"
)

const (
	// probeTimeout bounds every subprocess invocation.
	probeTimeout = 5 * time.Second
	// DefaultCacheTTL is how long a free-memory reading stays fresh.
	DefaultCacheTTL = 2 * time.Second
)

// commandRunner executes a probe command and returns its stdout. Injectable
// for tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Config holds Monitor tunables. Zero values select package defaults.
type Config struct {
	CacheTTL time.Duration
	Logger   zerolog.Logger
}

// Monitor probes device memory for exactly one vendor tool-chain.
type Monitor struct {
	vendor Vendor
	ttl    time.Duration
	log    zerolog.Logger
	run    commandRunner

	mu        sync.Mutex
	freeGB    float64
	freeAt    time.Time
	totalGB   float64
	haveTotal bool
}

// New detects the installed vendor tool and constructs a Monitor. NVIDIA is
// checked first and wins when both tool-chains are present. With neither
// tool on PATH the monitor is unusable and construction fails.
func New(cfg Config) (*Monitor, error) {
	vendor, err := detectVendor(exec.LookPath)
	if err != nil {
		return nil, err
	}
	return newWithVendor(vendor, cfg), nil
}

func newWithVendor(vendor Vendor, cfg Config) *Monitor {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Monitor{
		vendor: vendor,
		ttl:    ttl,
		log:    cfg.Logger,
		run:    runCommand,
	}
}

func detectVendor(lookPath func(string) (string, error)) (Vendor, error) {
	if _, err := lookPath("nvidia-smi"); err == nil {
		return VendorNVIDIA, nil
	}
	if _, err := lookPath("rocm-smi"); err == nil {
		return VendorAMD, nil
	}
	return "", errNoVendorTool{}
}

// Vendor reports the detected tool-chain.
func (m *Monitor) Vendor() Vendor { return m.vendor }

// FreeGB returns free device memory in GB. Readings are cached for the
// configured TTL; probe failures are returned to the caller and never
// cached.
func (m *Monitor) FreeGB(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.freeAt.IsZero() && time.Since(m.freeAt) < m.ttl {
		return m.freeGB, nil
	}
	free, err := m.probeFree(ctx)
	if err != nil {
		return 0, err
	}
	m.freeGB = free
	m.freeAt = time.Now()
	m.log.Debug().Str("vendor", string(m.vendor)).Float64("free_gb", free).Msg("probed free VRAM")
	return free, nil
}

// TotalGB returns total device memory in GB. The first successful reading is
// cached for the lifetime of the monitor.
func (m *Monitor) TotalGB(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.haveTotal {
		return m.totalGB, nil
	}
	total, err := m.probeTotal(ctx)
	if err != nil {
		return 0, err
	}
	m.totalGB = total
	m.haveTotal = true
	m.log.Debug().Str("vendor", string(m.vendor)).Float64("total_gb", total).Msg("probed total VRAM")
	return total, nil
}

// InvalidateCache forces the next FreeGB call to re-probe regardless of TTL.
// Callers invoke this right after an unload so decisions are not made on a
// stale reading.
func (m *Monitor) InvalidateCache() {
	m.mu.Lock()
	m.freeAt = time.Time{}
	m.mu.Unlock()
}

func (m *Monitor) probeFree(ctx context.Context) (float64, error) {
	switch m.vendor {
	case VendorNVIDIA:
		return m.probeNvidia(ctx, "memory.free")
	case VendorAMD:
		total, used, err := m.probeROCm(ctx)
		if err != nil {
			return 0, err
		}
		return total - used, nil
	}
	return 0, fmt.Errorf("unknown vendor %q", m.vendor)
}

func (m *Monitor) probeTotal(ctx context.Context) (float64, error) {
	switch m.vendor {
	case VendorNVIDIA:
		return m.probeNvidia(ctx, "memory.total")
	case VendorAMD:
		total, _, err := m.probeROCm(ctx)
		return total, err
	}
	return 0, fmt.Errorf("unknown vendor %q", m.vendor)
}
