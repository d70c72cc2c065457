package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mudler/xlog"
	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/ingest"
	"github.com/dshills/agriguard/internal/metrics"
	"github.com/dshills/agriguard/internal/server"
)

var (
	flagAddr    string
	flagNATS    bool
	flagNATSURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve advisories over HTTP and, optionally, NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := buildOverrides()
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		if flagNATS {
			overrides["nats.enabled"] = "true"
		}
		if flagNATSURL != "" {
			overrides["nats.url"] = flagNATSURL
		}
		cfg, err := loadConfigWith(overrides)
		if err != nil {
			return err
		}

		m, err := metrics.New()
		if err != nil {
			fail(fmt.Errorf("setting up metrics: %w", err))
			return nil
		}
		defer func() {
			if err := m.Shutdown(context.Background()); err != nil {
				xlog.Warn("metrics shutdown", "error", err)
			}
		}()

		svc, err := buildService(cfg, m)
		if err != nil {
			return setupFailed(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.NATS.Enabled {
			ing, err := ingest.Start(svc, ingest.Options{
				URL:           cfg.NATS.URL,
				Timeout:       cfg.ProviderTimeout() * 2,
				MinConfidence: cfg.MinConfidence,
			})
			if err != nil {
				fail(err)
				return nil
			}
			defer func() {
				if err := ing.Stop(); err != nil {
					xlog.Warn("NATS shutdown", "error", err)
				}
			}()
		}

		srv := server.New(svc, server.Options{
			Addr:          cfg.Server.Addr,
			BodyLimit:     cfg.Server.BodyLimit,
			MinConfidence: cfg.MinConfidence,
			Metrics:       m,
		})
		xlog.Info("agriguard serving", "version", version, "fetcher", svc.FetcherName(), "addr", cfg.Server.Addr)
		if err := srv.Start(ctx); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addProviderFlags(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address")
	serveCmd.Flags().BoolVar(&flagNATS, "nats", false, "Also serve requests over NATS")
	serveCmd.Flags().StringVar(&flagNATSURL, "nats-url", "", "NATS server URL")
	serveCmd.Flags().Float64Var(&flagMinConfidence, "min-confidence", 0, "Ignore detections below this confidence")
}
