package cli

import (
	"fmt"
	"strings"

	"flow-cli/internal/pages"

	"github.com/spf13/cobra"
)

type dashboardView struct {
	Name string `json:"name"`
	pages.Summary
}

func (d dashboardView) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome back, %s\nYou have %s in your workspace.\n\nRecent Pages\n", d.Name, d.CountLabel())
	if len(d.Recent) == 0 {
		b.WriteString("  No pages yet")
		return b.String()
	}
	for _, p := range d.Recent {
		fmt.Fprintf(&b, "  %d\t%s\t%s\n", p.ID, p.DisplayTitle(), oneLine(pages.Preview(p.Content)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summary of your workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.requireAuth(); err != nil {
				return writeErr(cmd, err)
			}
			ps, err := e.pages.Fetch(cmd.Context())
			if err != nil {
				return writeErr(cmd, fmt.Errorf("fetch pages: %w", err))
			}
			view := dashboardView{Name: e.session.User().Name, Summary: pages.Summarize(ps)}
			return writeOut(cmd, app, map[string]any{"data": view})
		},
	}
}
