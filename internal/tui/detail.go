package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"flow-cli/internal/autosave"
	"flow-cli/internal/model"
	"flow-cli/internal/pages"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type detailFocus int

const (
	focusTitle detailFocus = iota
	focusContent
)

// pageDetail is the open page: the editor inputs plus the autosave controller that owns the
// draft once the page has loaded.
type pageDetail struct {
	id      int64
	loading bool
	missing bool

	title   textinput.Model
	content textarea.Model
	focus   detailFocus
	preview bool
	saver   *autosave.Controller
}

func loadingDetail(id int64) pageDetail {
	return pageDetail{id: id, loading: true}
}

func (m appModel) loadPageCmd(id int64) tea.Cmd {
	svc := m.opts.Pages
	return func() tea.Msg {
		p, err := svc.Lookup(context.Background(), id)
		return pageLoadedMsg{id: id, page: p, err: err}
	}
}

// openPage leaves the current screen for page id. The current screen becomes the place "back"
// returns to.
func (m *appModel) openPage(id int64) tea.Cmd {
	closeCmd := m.closeDetail()
	if m.view == viewDashboard || m.view == viewPages {
		m.returnView = m.view
	}
	m.detail = loadingDetail(id)
	m.navigate(viewPage)
	return tea.Batch(closeCmd, m.loadPageCmd(id))
}

// closeDetail hands any pending edits to a final background save and drops the editor.
func (m *appModel) closeDetail() tea.Cmd {
	saver := m.detail.saver
	m.detail = pageDetail{}
	if saver == nil {
		return nil
	}
	l := m.logger
	return func() tea.Msg {
		defer saver.Close()
		if err := saver.Flush(context.Background()); err != nil {
			l.Warn("save on close failed", slog.Int64("page_id", saver.ID()), slog.String("error", err.Error()))
		}
		return nil
	}
}

// discardDetail drops the editor without saving, for a page that is being deleted.
func (m *appModel) discardDetail() {
	if m.detail.saver != nil {
		m.detail.saver.Close()
	}
	m.detail = pageDetail{}
}

func (m *appModel) applyLoadedPage(msg pageLoadedMsg) {
	if msg.id != m.detail.id || !m.detail.loading {
		return
	}
	m.detail.loading = false
	if msg.err != nil {
		if !errors.Is(msg.err, pages.ErrNotFound) {
			m.logger.Warn("load page failed", slog.Int64("page_id", msg.id), slog.String("error", msg.err.Error()))
		}
		m.detail.missing = true
		return
	}

	title := textinput.New()
	title.Prompt = ""
	title.Placeholder = "Untitled"
	title.CharLimit = 200
	title.SetValue(msg.page.Title)
	title.Focus()

	content := textarea.New()
	content.Placeholder = "Start writing..."
	content.ShowLineNumbers = false
	content.CharLimit = 0
	content.SetValue(msg.page.Content)
	content.Blur()

	m.detail.title = title
	m.detail.content = content
	m.detail.focus = focusTitle
	m.detail.saver = m.newSaver(msg.page)
	m.resizeDetail()
}

func (m *appModel) newSaver(p model.Page) *autosave.Controller {
	svc := m.opts.Pages
	sig := m.saveSignal
	id := p.ID
	return autosave.New(id, autosave.Draft{Title: p.Title, Content: p.Content},
		func(ctx context.Context, d autosave.Draft) error {
			_, err := svc.Update(ctx, id, d.Title, d.Content)
			return err
		},
		autosave.Options{
			Delay:        m.opts.AutosaveDelay,
			SavedDisplay: m.opts.SavedDisplay,
			Clock:        m.opts.Clock,
			OnStatus:     func(autosave.Status) { signal(sig) },
			Logger:       m.logger,
			Metrics:      m.metrics,
		})
}

func (m *appModel) resizeDetail() {
	w := max(m.width-4, 20)
	h := max(m.height-12, 5)
	m.detail.title.Width = w
	m.detail.content.SetWidth(w)
	m.detail.content.SetHeight(h)
}

func (m *appModel) setDetailFocus(f detailFocus) {
	m.detail.focus = f
	if f == focusTitle {
		m.detail.title.Focus()
		m.detail.content.Blur()
		return
	}
	m.detail.title.Blur()
	m.detail.content.Focus()
}

func (m appModel) explicitSaveCmd() tea.Cmd {
	saver := m.detail.saver
	return func() tea.Msg {
		return pageSavedMsg{id: saver.ID(), err: saver.Flush(context.Background())}
	}
}

func (m appModel) updatePage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &m.detail
	if d.loading || d.missing || d.saver == nil {
		switch msg.String() {
		case "esc", "backspace", "q":
			m.detail = pageDetail{}
			m.navigate(m.returnView)
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		cmd := m.closeDetail()
		m.navigate(m.returnView)
		return m, cmd
	case "tab", "shift+tab":
		if d.focus == focusTitle {
			m.setDetailFocus(focusContent)
		} else {
			m.setDetailFocus(focusTitle)
		}
		return m, nil
	case "ctrl+s":
		return m, m.explicitSaveCmd()
	case "ctrl+d":
		m.openConfirmDelete(d.id, true)
		return m, nil
	case "ctrl+p":
		d.preview = !d.preview
		return m, nil
	}

	var cmd tea.Cmd
	if d.focus == focusTitle {
		if msg.String() == "enter" {
			m.setDetailFocus(focusContent)
			return m, nil
		}
		before := d.title.Value()
		d.title, cmd = d.title.Update(msg)
		if v := d.title.Value(); v != before {
			d.saver.Edit(autosave.FieldTitle, v)
		}
		return m, cmd
	}
	before := d.content.Value()
	d.content, cmd = d.content.Update(msg)
	if v := d.content.Value(); v != before {
		d.saver.Edit(autosave.FieldContent, v)
	}
	return m, cmd
}

func (m appModel) viewPage() string {
	d := m.detail
	switch {
	case d.loading:
		return m.spinner.View() + " Loading page..."
	case d.missing:
		return styleError().Render("Page not found.")
	}

	var b strings.Builder
	b.WriteString(styleMuted().Render("Title") + "\n")
	b.WriteString(d.title.View() + "\n\n")
	if d.preview {
		b.WriteString(styleMuted().Render("Preview") + "\n")
		rendered := renderMarkdown(d.content.Value(), max(m.width-4, 20))
		if rendered == "" {
			rendered = styleMuted().Render("No content yet...")
		}
		b.WriteString(rendered + "\n\n")
	} else {
		b.WriteString(styleMuted().Render("Content") + "\n")
		b.WriteString(d.content.View() + "\n\n")
	}
	b.WriteString(saveStatusView(d.saver.Status()))
	return b.String()
}

func saveStatusView(s autosave.Status) string {
	label := s.Label()
	switch s {
	case autosave.StatusError:
		return styleError().Render(label)
	case autosave.StatusSaved:
		return lipgloss.NewStyle().Foreground(colorSuccessFg).Render(label)
	default:
		return styleMuted().Render(label)
	}
}
