package gpumon

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// rocm-smi reports VRAM fields under these exact keys, in bytes.
const (
	rocmTotalKey = "VRAM Total Memory (B)"
	rocmUsedKey  = "VRAM Total Used Memory (B)"
)

func (m *Monitor) probeNvidia(ctx context.Context, field string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := m.run(ctx, "nvidia-smi", "--query-gpu="+field, "--format=csv,nounits,noheader")
	if err != nil {
		return 0, probeFailedError{vendor: VendorNVIDIA, cause: err}
	}
	gb, err := parseNvidiaMiB(out)
	if err != nil {
		return 0, probeFailedError{vendor: VendorNVIDIA, cause: err}
	}
	return gb, nil
}

// parseNvidiaMiB reads the first stdout line as a bare MiB integer.
func parseNvidiaMiB(out []byte) (float64, error) {
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	mib, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected nvidia-smi output %q: %w", line, err)
	}
	return mib / 1024, nil
}

func (m *Monitor) probeROCm(ctx context.Context) (totalGB, usedGB float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := m.run(ctx, "rocm-smi", "--showmeminfo", "vram", "--json")
	if err != nil {
		return 0, 0, probeFailedError{vendor: VendorAMD, cause: err}
	}
	totalGB, usedGB, err = parseROCmJSON(out)
	if err != nil {
		return 0, 0, probeFailedError{vendor: VendorAMD, cause: err}
	}
	return totalGB, usedGB, nil
}

// parseROCmJSON extracts total/used VRAM in GB from rocm-smi JSON output.
// The object is keyed by device id; the first device (lowest key) is used.
// Field values arrive as strings or numbers depending on the smi version.
func parseROCmJSON(out []byte) (totalGB, usedGB float64, err error) {
	var devices map[string]map[string]any
	if err := json.Unmarshal(out, &devices); err != nil {
		return 0, 0, fmt.Errorf("unexpected rocm-smi output: %w", err)
	}
	if len(devices) == 0 {
		return 0, 0, fmt.Errorf("rocm-smi reported no devices")
	}
	keys := make([]string, 0, len(devices))
	for k := range devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := devices[keys[0]]

	totalB, err := rocmField(fields, rocmTotalKey)
	if err != nil {
		return 0, 0, err
	}
	usedB, err := rocmField(fields, rocmUsedKey)
	if err != nil {
		return 0, 0, err
	}
	const gib = 1 << 30
	return totalB / gib, usedB / gib, nil
}

func rocmField(fields map[string]any, key string) (float64, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("rocm-smi output missing %q", key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("rocm-smi field %q: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("rocm-smi field %q has unexpected type %T", key, v)
}
