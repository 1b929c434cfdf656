// Command reviewrag is the single binary exposing one subcommand per
// pipeline stage (spec.md §6's command surface): collect, enrich,
// backfill, distill, review, and the schema lifecycle utilities.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"review-rag/internal/config"
	"review-rag/internal/logging"
)

var metricsAddr string

func main() {
	root := &cobra.Command{
		Use:           "reviewrag",
		Short:         "Turn historical PR review comments into architectural guidelines, and apply them to new diffs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "optional host:port to expose Prometheus /metrics on for the duration of this invocation")

	root.AddCommand(
		newCollectCmd(),
		newEnrichCmd(),
		newBackfillCmd(),
		newDistillCmd(),
		newReviewCmd(),
		newSchemaCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reviewrag: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, validates it, wires up structured
// logging, and starts an optional ambient metrics server. The returned
// cleanup func must run on every exit path, including failures (spec.md
// §5: "guaranteed release on every exit path").
func bootstrap() (cfg *config.Config, cleanup func(), err error) {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, func() {}, fmt.Errorf("configuration error: %w", err)
	}

	logger, loggerCleanup := logging.Setup(cfg)
	slog.SetDefault(logger)

	var server *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		slog.Info("metrics server started", "addr", metricsAddr)
	}

	cleanup = func() {
		loggerCleanup()
		if server != nil {
			_ = server.Close()
		}
	}
	return cfg, cleanup, nil
}
