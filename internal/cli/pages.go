package cli

import (
	"errors"
	"fmt"
	"strings"

	"flow-cli/internal/model"
	"flow-cli/internal/pages"
	"flow-cli/internal/validate"

	"github.com/spf13/cobra"
)

func newPagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Page commands",
	}
	cmd.AddCommand(newPagesListCmd(app))
	cmd.AddCommand(newPagesShowCmd(app))
	cmd.AddCommand(newPagesNewCmd(app))
	cmd.AddCommand(newPagesEditCmd(app))
	cmd.AddCommand(newPagesRmCmd(app))
	return cmd
}

type pageList []model.Page

func (l pageList) Text() string {
	if len(l) == 0 {
		return "No pages yet"
	}
	var b strings.Builder
	for i, p := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\t%s\t%s", p.ID, p.DisplayTitle(), oneLine(pages.Preview(p.Content)))
	}
	return b.String()
}

type pageView model.Page

func (p pageView) Text() string {
	title := model.Page(p).DisplayTitle()
	content := p.Content
	if content == "" {
		content = "No content yet..."
	}
	return title + "\n" + strings.Repeat("=", len([]rune(title))) + "\n\n" + content
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newPagesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your pages",
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
			return writeOut(cmd, app, map[string]any{"data": pageList(ps)})
		},
	}
}

func newPagesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <page-id>",
		Short: "Show one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.requireAuth(); err != nil {
				return writeErr(cmd, err)
			}
			p, err := e.pages.Lookup(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, errPageNotFound(id))
			}
			return writeOut(cmd, app, map[string]any{"data": pageView(p)})
		},
	}
}

func newPagesNewCmd(app *App) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a page",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			p, err := e.pages.Create(cmd.Context(), title, content)
			if err != nil {
				if msg := validate.PageFailure(err); msg != "" {
					return writeErr(cmd, userErr(msg, nil))
				}
				return writeErr(cmd, userErr("Failed to create page", err))
			}
			return writeOut(cmd, app, map[string]any{"data": pageView(p)})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Page title")
	cmd.Flags().StringVar(&content, "content", "", "Page content")
	return cmd
}

func newPagesEditCmd(app *App) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "edit <page-id>",
		Short: "Update a page's title and/or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			titleSet := cmd.Flags().Changed("title")
			contentSet := cmd.Flags().Changed("content")
			if !titleSet && !contentSet {
				return writeErr(cmd, errors.New("nothing to change (pass --title and/or --content)"))
			}
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.requireAuth(); err != nil {
				return writeErr(cmd, err)
			}
			// The update carries the full record, so unset fields come from the server copy.
			cur, err := e.pages.Lookup(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, errPageNotFound(id))
			}
			if titleSet {
				cur.Title = title
			}
			if contentSet {
				cur.Content = content
			}
			p, err := e.pages.Update(cmd.Context(), id, cur.Title, cur.Content)
			if err != nil {
				return writeErr(cmd, userErr("Failed to update", err))
			}
			return writeOut(cmd, app, map[string]any{"data": pageView(p)})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	return cmd
}

func newPagesRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <page-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a page",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.requireAuth(); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.pages.Delete(cmd.Context(), id); err != nil {
				return writeErr(cmd, userErr("Error deleting page", err))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": id}})
		},
	}
}
