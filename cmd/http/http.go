package http

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/config"
)

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "HTTP server commands",
	}

	cmd.AddCommand(NewStartCommand(), newProbeCommand())

	return cmd
}

// newProbeCommand asks a running server for its readiness, for container
// health checks. It exits non-zero unless the server answers 200.
func newProbeCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a running server is ready",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
				if err != nil {
					return err
				}
				cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
				if err != nil {
					return err
				}
				addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
			}

			resp, err := client.Get(addr+healthcheck.ReadinessEndpoint, client.Config{Timeout: timeout})
			if err != nil {
				return fmt.Errorf("probe %s: %w", addr, err)
			}
			defer resp.Close()

			if code := resp.StatusCode(); code != 200 {
				return fmt.Errorf("probe %s: status %d", addr, code)
			}
			cmd.Println("ready")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server base URL (default from server.port)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}
