package tui

import (
	"fmt"
	"strings"

	"flow-cli/internal/pages"
	"flow-cli/internal/query"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func (m appModel) summary() pages.Summary {
	return pages.Summarize(m.pagesEntry.Data)
}

func (m appModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	header := styleHeader().Render("Flow")
	if name := m.userName(); name != "" && m.view != viewLogin && m.view != viewSignup {
		header += " " + styleMuted().Render(name)
	}
	header = ansi.Truncate(header, width, "…")

	var body string
	switch m.view {
	case viewLogin:
		body = m.login.view("Sign in", "Signing in...", m.spinner.View())
	case viewSignup:
		body = m.signup.view("Create account", "Creating account...", m.spinner.View())
	case viewDashboard:
		body = m.viewDashboard(width)
	case viewPages:
		body = m.viewPages()
	case viewPage:
		body = m.viewPage()
	}

	switch m.modal {
	case modalNewPage:
		body = m.placeModal(width, m.viewNewPageModal())
	case modalConfirmDelete:
		body = m.placeModal(width, renderConfirmModal(width, deleteModalTitle, deleteModalBody, "Delete", "Cancel", m.confirmFocus))
	}

	parts := []string{header, body}
	if m.flash != "" {
		parts = append(parts, m.viewFlash())
	}
	parts = append(parts, styleMuted().Render(ansi.Truncate(m.footerHelp(), width, "…")))
	return strings.Join(parts, "\n\n")
}

func (m appModel) placeModal(width int, box string) string {
	h := lipgloss.Height(box)
	if m.height > 0 {
		h = max(h, m.height-8)
	}
	return lipgloss.Place(width, h, lipgloss.Center, lipgloss.Center, box)
}

func (m appModel) viewFlash() string {
	st := lipgloss.NewStyle().Padding(0, 1).Foreground(colorAccentFg).Background(colorFlashInfoBg)
	if m.flashKind == flashError {
		st = st.Background(colorFlashError)
	}
	return st.Render(m.flash)
}

// collectionNotice describes a collection that has nothing to show yet, or "" when it does.
func (m appModel) collectionNotice() string {
	e := m.pagesEntry
	switch {
	case e.Status == query.StatusError:
		return styleError().Render(e.Err.Error()) + "\n" + styleMuted().Render("r: retry")
	case e.Status == query.StatusPending && e.UpdatedAt.IsZero():
		return m.spinner.View() + " Loading pages..."
	case e.Status == query.StatusEmpty:
		return m.spinner.View() + " Loading pages..."
	}
	return ""
}

func (m appModel) viewDashboard(width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styleTitle().Render("Welcome back, "+m.userName()))
	if notice := m.collectionNotice(); notice != "" {
		b.WriteString("\n" + notice)
		return b.String()
	}
	s := m.summary()
	fmt.Fprintf(&b, "You have %s in your workspace.\n\n", s.CountLabel())
	b.WriteString(styleTitle().Render("Recent Pages") + "\n")
	if len(s.Recent) == 0 {
		b.WriteString(styleMuted().Render("No pages yet"))
		return b.String()
	}
	for i, p := range s.Recent {
		line := fmt.Sprintf("%d. %s  %s", i+1, pageLabel(p), styleMuted().Render(previewText(p.Content)))
		b.WriteString(ansi.Truncate(line, width, "…") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m appModel) viewPages() string {
	if notice := m.collectionNotice(); notice != "" {
		return notice
	}
	if len(m.pagesList.Items()) == 0 {
		return styleMuted().Render("No pages yet")
	}
	return m.pagesList.View()
}

func (m appModel) footerHelp() string {
	switch m.modal {
	case modalNewPage, modalConfirmDelete:
		return "esc: cancel"
	}
	switch m.view {
	case viewLogin:
		return "tab: next field  enter: sign in  ctrl+t: create account  ctrl+c: quit"
	case viewSignup:
		return "tab: next field  enter: sign up  ctrl+t: sign in instead  ctrl+c: quit"
	case viewDashboard:
		return "p: pages  1-3: open recent  n: new page  r: reload  L: log out  q: quit"
	case viewPages:
		return "enter: open  n: new  d: delete  /: filter  r: reload  esc: back  q: quit"
	case viewPage:
		if m.detail.saver == nil {
			return "esc: back"
		}
		return "tab: switch field  ctrl+s: save  ctrl+p: preview  ctrl+d: delete  esc: back"
	}
	return ""
}
