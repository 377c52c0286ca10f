package tui

import (
	"context"
	"strings"

	"flow-cli/internal/validate"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	msgPageCreated   = "Page created successfully!"
	msgPageUpdated   = "Page updated!"
	msgUpdateFailed  = "Failed to update"
	msgDeleteFailed  = "Error deleting page"
	msgCreateFailed  = "Failed to create page"
	deleteModalTitle = "Delete Page?"
	deleteModalBody  = "Are you sure you want to delete this page? This action cannot be undone."
)

type newPageForm struct {
	title   textinput.Model
	content textarea.Model
	focus   detailFocus
	err     string
	busy    bool
}

func newNewPageForm() newPageForm {
	title := textinput.New()
	title.Placeholder = "Page title"
	title.Prompt = "> "
	title.CharLimit = 200
	title.Width = 40
	content := textarea.New()
	content.Placeholder = "Content (optional)"
	content.ShowLineNumbers = false
	content.SetHeight(5)
	content.SetWidth(40)
	f := newPageForm{title: title, content: content}
	f.title.Focus()
	return f
}

func (m *appModel) openNewPage() {
	m.newPage = newNewPageForm()
	m.modal = modalNewPage
}

func (m appModel) createPageCmd(title, content string) tea.Cmd {
	svc := m.opts.Pages
	return func() tea.Msg {
		p, err := svc.Create(context.Background(), title, content)
		return pageCreatedMsg{page: p, err: err}
	}
}

func createErrorText(err error) string {
	if msg := validate.PageFailure(err); msg != "" {
		return msg
	}
	return msgCreateFailed
}

func (m appModel) updateNewPage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.newPage
	if f.busy {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil
	case "tab", "shift+tab":
		if f.focus == focusTitle {
			f.focus = focusContent
			f.title.Blur()
			f.content.Focus()
		} else {
			f.focus = focusTitle
			f.content.Blur()
			f.title.Focus()
		}
		return m, nil
	case "ctrl+s":
		return m.submitNewPage()
	case "enter":
		if f.focus == focusTitle {
			return m.submitNewPage()
		}
	}
	var cmd tea.Cmd
	if f.focus == focusTitle {
		f.title, cmd = f.title.Update(msg)
	} else {
		f.content, cmd = f.content.Update(msg)
	}
	f.err = ""
	return m, cmd
}

func (m appModel) submitNewPage() (tea.Model, tea.Cmd) {
	f := &m.newPage
	// Checked here too so the modal answers without a round trip.
	if strings.TrimSpace(f.title.Value()) == "" {
		f.err = validate.MsgTitleRequired
		return m, nil
	}
	f.busy = true
	f.err = ""
	return m, m.createPageCmd(f.title.Value(), f.content.Value())
}

func (m *appModel) openConfirmDelete(id int64, leaving bool) {
	m.modal = modalConfirmDelete
	m.confirmFocus = confirmFocusCancel
	m.deleteID = id
	m.deleteLeaving = leaving
}

func (m appModel) deletePageCmd(id int64) tea.Cmd {
	svc := m.opts.Pages
	return func() tea.Msg {
		return pageDeletedMsg{id: id, err: svc.Delete(context.Background(), id)}
	}
}

func (m appModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n", "ctrl+g":
		m.modal = modalNone
		return m, nil
	case "tab", "shift+tab", "left", "right", "h", "l":
		if m.confirmFocus == confirmFocusConfirm {
			m.confirmFocus = confirmFocusCancel
		} else {
			m.confirmFocus = confirmFocusConfirm
		}
		return m, nil
	case "y":
		return m.confirmDelete()
	case "enter":
		if m.confirmFocus == confirmFocusConfirm {
			return m.confirmDelete()
		}
		m.modal = modalNone
		return m, nil
	}
	return m, nil
}

// confirmDelete starts the optimistic delete. The page disappears from the collection right
// away; a failure restores it and flashes an error.
func (m appModel) confirmDelete() (tea.Model, tea.Cmd) {
	id := m.deleteID
	m.modal = modalNone
	if m.deleteLeaving {
		m.discardDetail()
		m.navigate(m.returnView)
	}
	return m, m.deletePageCmd(id)
}

func modalBodyWidth(width int) int {
	w := width - 10
	if w > 60 {
		w = 60
	}
	if w < 24 {
		w = 24
	}
	return w
}

func renderModalBox(width int, title string, content string) string {
	bodyW := modalBodyWidth(width)
	header := lipgloss.NewStyle().Bold(true).Width(bodyW).Render(title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1).
		Width(bodyW + 2)
	return box.Render(header + "\n\n" + content)
}

func renderConfirmModal(width int, title string, body string, confirmLabel string, cancelLabel string, focus confirmModalFocus) string {
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	if focus == confirmFocusConfirm {
		confirm = btnActive.Render("[" + confirmLabel + "]")
	} else {
		cancel = btnActive.Render("[" + cancelLabel + "]")
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalBodyWidth(width)
	help := styleMuted().Width(bodyW).Render("tab: focus   enter: select   y/n   esc: cancel")

	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(body),
		"",
		controls,
		"",
		help,
	}, "\n")
	return renderModalBox(width, title, content)
}

func (m appModel) viewNewPageModal() string {
	f := m.newPage
	bodyW := modalBodyWidth(m.width)
	parts := []string{
		"Title",
		f.title.View(),
		"",
		"Content",
		f.content.View(),
	}
	if f.err != "" {
		parts = append(parts, "", styleError().Render(f.err))
	}
	if f.busy {
		parts = append(parts, "", m.spinner.View()+" Creating...")
	}
	parts = append(parts, "", styleMuted().Width(bodyW).Render("tab: field   enter/ctrl+s: create   esc: cancel"))
	return renderModalBox(m.width, "New Page", strings.Join(parts, "\n"))
}
