package cli

import (
	"fmt"
	"os"
	"strings"

	"flow-cli/internal/format"

	"github.com/spf13/cobra"
)

type App struct {
	APIURL     string
	ConfigDir  string
	LogLevel   string
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "flow",
		Short:        "Flow notes client (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  flow

  # Sign in, then script against your pages
  flow login --email ada@example.com --password-stdin
  flow pages list
  flow pages new --title "Groceries" --content "milk, eggs"

  # Direct page lookup (shortcut for: flow pages show <id>)
  flow 12

  # Run the in-memory backend for local development
  flow mock-server --addr :8080 --seed
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app, tuiFlags{})
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", envOr("FLOW_API_URL", ""), "Backend origin (default http://localhost:8080)")
	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config-dir", envOr("FLOW_CONFIG_DIR", ""), "Directory for session, TUI state and logs (default ~/.flow)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("FLOW_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("FLOW_FORMAT", format.JSON), "Output format (json|text)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newSignupCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newPagesCmd(app))
	cmd.AddCommand(newDashboardCmd(app))
	cmd.AddCommand(newMockServerCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
