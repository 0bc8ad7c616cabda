package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vramd/internal/common/fsutil"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in main.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// TotalVRAMGB overrides auto-detection when > 0.
	TotalVRAMGB    float64 `json:"total_vram_gb" yaml:"total_vram_gb" toml:"total_vram_gb"`
	SafetyBufferGB float64 `json:"safety_buffer_gb" yaml:"safety_buffer_gb" toml:"safety_buffer_gb"`
	IdleTimeoutSec int     `json:"idle_timeout_secs" yaml:"idle_timeout_secs" toml:"idle_timeout_secs"`
	CacheTTLSec    float64 `json:"cache_ttl_secs" yaml:"cache_ttl_secs" toml:"cache_ttl_secs"`
	ServiceName    string  `json:"service_name" yaml:"service_name" toml:"service_name"`
	ModelVRAMGB    float64 `json:"model_vram_gb" yaml:"model_vram_gb" toml:"model_vram_gb"`
	LogLevel       string  `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
