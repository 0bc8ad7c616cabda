package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vramd/internal/gpumon"
)

func buildProbeCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the GPU tool once and print free/total memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			monitor, err := gpumon.New(gpumon.Config{Logger: newLogger(cfg.LogLevel)})
			if err != nil {
				return err
			}
			ctx := context.Background()
			free, err := monitor.FreeGB(ctx)
			if err != nil {
				return err
			}
			total, err := monitor.TotalGB(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vendor=%s free=%.2fGB total=%.2fGB\n", monitor.Vendor(), free, total)
			return nil
		},
	}
}

func buildStatusCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the status of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			addr := cfg.Addr
			if strings.HasPrefix(addr, ":") {
				addr = "localhost" + addr
			}
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + addr + "/status")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon returned %s", resp.Status)
			}
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}
