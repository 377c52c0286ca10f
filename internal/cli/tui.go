package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"flow-cli/internal/metrics"
	"flow-cli/internal/tui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type tuiFlags struct {
	metricsAddr string
}

func newTUICmd(app *App) *cobra.Command {
	var f tuiFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app, f)
		},
	}
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", envOr("FLOW_METRICS_ADDR", ""), "Serve Prometheus /metrics on this address while the TUI runs")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, f tuiFlags) error {
	var collector *metrics.Collector
	var rec metrics.Recorder
	if f.metricsAddr != "" {
		collector = metrics.NewCollector(prometheus.NewRegistry())
		rec = collector
	}
	e, err := openEnv(app, rec)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	if collector != nil {
		stop, err := serveMetrics(f.metricsAddr, collector, e.logger)
		if err != nil {
			return writeErr(cmd, err)
		}
		defer stop()
	}

	err = tui.Run(tui.Options{
		Pages:         e.pages,
		Auth:          e.auth,
		Session:       e.session,
		Store:         e.store,
		Logger:        e.logger,
		Metrics:       e.metrics,
		AutosaveDelay: e.cfg.AutosaveDelay,
		SavedDisplay:  e.cfg.SavedDisplay,
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

// serveMetrics exposes /metrics in the background. The returned func shuts the server down.
func serveMetrics(addr string, c *metrics.Collector, l *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	l.Info("metrics listening", slog.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
