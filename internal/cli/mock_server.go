package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flow-cli/internal/config"
	"flow-cli/internal/fakeapi"
	"flow-cli/internal/logger"

	"github.com/spf13/cobra"
)

func newMockServerCmd(app *App) *cobra.Command {
	var addr string
	var seed bool

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory backend for local development",
		Long: "Serves the notes REST API under /api from memory. Data is lost on exit.\n" +
			"With --seed, a demo account (demo@example.com / demo1234) with a few pages is created.",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := config.ParseLevel(envOr("FLOW_LOG_LEVEL", app.LogLevel))
			if err != nil {
				return writeErr(cmd, err)
			}
			l := logger.Setup(cmd.ErrOrStderr(), level)
			srv := fakeapi.New(fakeapi.WithLogger(l))
			if seed {
				if err := seedDemo(srv); err != nil {
					return writeErr(cmd, err)
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return writeErr(cmd, err)
			}
			httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- httpSrv.Serve(ln) }()
			l.Info("mock server listening", slog.String("addr", ln.Addr().String()))

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return writeErr(cmd, err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpSrv.Shutdown(shutdownCtx); err != nil {
					return writeErr(cmd, err)
				}
			}
			l.Info("mock server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("FLOW_MOCK_ADDR", ":8080"), "Listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "Create a demo account with sample pages")
	return cmd
}

func seedDemo(srv *fakeapi.Server) error {
	u, err := srv.SeedUser("Demo", "demo@example.com", "demo1234")
	if err != nil {
		return err
	}
	srv.SeedPage(u.ID, "Welcome to Flow", "Pages autosave while you type.\n\n- Press **n** for a new page\n- Press **d** to delete one")
	srv.SeedPage(u.ID, "Groceries", "milk, eggs, coffee")
	srv.SeedPage(u.ID, "Reading list", "")
	return nil
}
