package commands

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/systmms/vaultops/internal/config"
	"github.com/systmms/vaultops/internal/graph"
	"github.com/systmms/vaultops/internal/manifest"
	"github.com/systmms/vaultops/internal/metrics"
	"github.com/systmms/vaultops/internal/reconcile"
	"github.com/systmms/vaultops/internal/report"
	"github.com/systmms/vaultops/internal/vault"
)

func NewApplyCommand(cfg *config.Config) *cobra.Command {
	var (
		maxConcurrent int
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "apply [manifests...]",
		Short: "Reconcile manifests against the Vault server",
		Long: `Load the given manifest files or directories, build the dependency
graph, and converge every declared resource against the Vault server.

Resources are reconciled concurrently; a resource only starts after all the
resources it references have succeeded. Interrupting the run (Ctrl-C) lets
in-flight operations finish and fails everything still pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			paths, err := cfg.ManifestPaths(args)
			if err != nil {
				return err
			}
			resources, err := manifest.Load(paths)
			if err != nil {
				return err
			}
			g, err := graph.Build(resources)
			if err != nil {
				return err
			}
			cfg.Logger.Debug("Loaded %d resources from %d manifest paths", g.Len(), len(paths))

			if err := cfg.Definition.Vault.Validate(); err != nil {
				return err
			}

			// Interrupts cancel the run; in-flight calls finish, pending
			// resources fail as cancelled.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			apiClient, err := vault.NewAPIClient(ctx, cfg.Definition.Vault, cfg.Logger)
			if err != nil {
				return err
			}
			gateway := vault.NewGateway(apiClient, cfg.Logger, cfg.Definition.Vault)

			if metricsListen != "" {
				metrics.Init()
				go serveMetrics(cfg, metricsListen)
			}

			limit := cfg.Definition.MaxConcurrent
			if maxConcurrent > 0 {
				limit = maxConcurrent
			}

			events := make(chan reconcile.Event, 64)
			console := report.NewConsole(cfg.Logger)
			streamed := make(chan struct{})
			go func() {
				console.Stream(events)
				close(streamed)
			}()

			reconciler := reconcile.New(gateway, cfg.Logger, reconcile.Options{
				MaxConcurrent: limit,
				Events:        events,
			})
			summary, err := reconciler.Run(ctx, g)
			<-streamed
			if err != nil {
				return err
			}

			metrics.RecordApply(summary.Failed, summary.Elapsed)
			console.Summarize(summary)
			if !summary.OK() {
				return fmt.Errorf("%d of %d resources failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum in-flight Vault operations (overrides config)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func serveMetrics(cfg *config.Config, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	cfg.Logger.Debug("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cfg.Logger.Warn("Metrics listener stopped: %v", err)
	}
}
