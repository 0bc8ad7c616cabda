package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vramd/internal/config"
)

// flags shared across subcommands, merged over the config file in
// loadConfig.
type cliFlags struct {
	configPath     string
	addr           string
	totalVRAMGB    float64
	bufferGB       float64
	idleTimeoutSec int
	cacheTTLSec    float64
	serviceName    string
	modelVRAMGB    float64
	logLevel       string
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:           "vramd",
		Short:         "Arbitrates GPU memory among generation services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Optional config file (.yaml/.json/.toml)")
	pf.StringVar(&f.addr, "addr", "", "HTTP listen address (default :8080, env VRAMD_ADDR)")
	pf.Float64Var(&f.totalVRAMGB, "total-vram-gb", 0, "Total VRAM override in GB (0 = auto-detect)")
	pf.Float64Var(&f.bufferGB, "buffer-gb", 0, "Safety buffer in GB never offered to requesters (default 0.5)")
	pf.IntVar(&f.idleTimeoutSec, "idle-timeout-secs", 0, "Idle seconds before automatic model unload (default 300)")
	pf.Float64Var(&f.cacheTTLSec, "cache-ttl-secs", 0, "Free-memory probe cache TTL in seconds (default 2)")
	pf.StringVar(&f.serviceName, "service", "", "Service name for VRAM accounting (default image)")
	pf.Float64Var(&f.modelVRAMGB, "model-vram-gb", 0, "Stub backend memory estimate in GB (default 4)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")

	root.AddCommand(buildServeCmd(f), buildProbeCmd(f), buildStatusCmd(f))
	return root
}

// loadConfig merges the optional config file with flag and env overrides,
// then applies defaults.
func loadConfig(f *cliFlags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.totalVRAMGB > 0 {
		cfg.TotalVRAMGB = f.totalVRAMGB
	}
	if f.bufferGB > 0 {
		cfg.SafetyBufferGB = f.bufferGB
	}
	if f.idleTimeoutSec > 0 {
		cfg.IdleTimeoutSec = f.idleTimeoutSec
	}
	if f.cacheTTLSec > 0 {
		cfg.CacheTTLSec = f.cacheTTLSec
	}
	if f.serviceName != "" {
		cfg.ServiceName = f.serviceName
	}
	if f.modelVRAMGB > 0 {
		cfg.ModelVRAMGB = f.modelVRAMGB
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	if cfg.Addr == "" {
		if v := os.Getenv("VRAMD_ADDR"); v != "" {
			cfg.Addr = v
		} else {
			cfg.Addr = ":8080"
		}
	}
	if cfg.IdleTimeoutSec <= 0 {
		cfg.IdleTimeoutSec = 300
	}
	if cfg.CacheTTLSec <= 0 {
		cfg.CacheTTLSec = 2.0
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "image"
	}
	if cfg.ModelVRAMGB <= 0 {
		cfg.ModelVRAMGB = 4.0
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
