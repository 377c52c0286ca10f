package tui

import (
	"context"
	"log/slog"
	"time"

	"flow-cli/internal/validate"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const flashDuration = 3 * time.Second

func flashTimeout(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pagesList.SetSize(max(m.width, 20), max(m.height-6, 5))
		if m.detail.saver != nil {
			m.resizeDetail()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pagesChangedMsg:
		m.refreshPages()
		return m, waitForSignal(m.pagesSignal, pagesChangedMsg{})

	case saveStatusMsg:
		// The status line reads the controller directly; this only triggers a redraw.
		return m, waitForSignal(m.saveSignal, saveStatusMsg{})

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case authDoneMsg:
		return m.applyAuthDone(msg)

	case pageLoadedMsg:
		m.applyLoadedPage(msg)
		return m, nil

	case pageCreatedMsg:
		m.newPage.busy = false
		if msg.err != nil {
			m.newPage.err = createErrorText(msg.err)
			return m, nil
		}
		m.modal = modalNone
		return m, m.showFlash(flashInfo, msgPageCreated)

	case pageDeletedMsg:
		if msg.err != nil {
			m.logger.Warn("delete failed", slog.Int64("page_id", msg.id), slog.String("error", msg.err.Error()))
			return m, m.showFlash(flashError, msgDeleteFailed)
		}
		return m, nil

	case pageSavedMsg:
		if msg.err != nil {
			return m, m.showFlash(flashError, msgUpdateFailed)
		}
		return m, m.showFlash(flashInfo, msgPageUpdated)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.modal {
		case modalNewPage:
			return m.updateNewPage(msg)
		case modalConfirmDelete:
			return m.updateConfirmDelete(msg)
		}
		switch m.view {
		case viewLogin:
			return m.updateAuthForm(msg, false)
		case viewSignup:
			return m.updateAuthForm(msg, true)
		case viewDashboard:
			return m.updateDashboard(msg)
		case viewPages:
			return m.updatePages(msg)
		case viewPage:
			return m.updatePage(msg)
		}
	}

	// Non-key messages (cursor blink and the like) go to whatever is focused.
	return m.forwardToFocused(msg)
}

func (m appModel) forwardToFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.modal == modalNewPage:
		if m.newPage.focus == focusTitle {
			m.newPage.title, cmd = m.newPage.title.Update(msg)
		} else {
			m.newPage.content, cmd = m.newPage.content.Update(msg)
		}
	case m.view == viewLogin:
		cmd = m.login.update(msg)
	case m.view == viewSignup:
		cmd = m.signup.update(msg)
	case m.view == viewPages:
		m.pagesList, cmd = m.pagesList.Update(msg)
	case m.view == viewPage && m.detail.saver != nil:
		if m.detail.focus == focusTitle {
			m.detail.title, cmd = m.detail.title.Update(msg)
		} else {
			m.detail.content, cmd = m.detail.content.Update(msg)
		}
	}
	return m, cmd
}

func (m appModel) updateAuthForm(msg tea.KeyMsg, signup bool) (tea.Model, tea.Cmd) {
	f := &m.login
	if signup {
		f = &m.signup
	}
	if f.busy {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+t":
		if signup {
			m.view = viewLogin
		} else {
			m.view = viewSignup
		}
		return m, nil
	case "tab", "down":
		f.setFocus(f.focus + 1)
		return m, nil
	case "shift+tab", "up":
		f.setFocus(f.focus - 1)
		return m, nil
	case "enter":
		if !f.onLastField() {
			f.setFocus(f.focus + 1)
			return m, nil
		}
		f.busy = true
		return m, m.authCmd(*f, signup)
	}
	return m, f.update(msg)
}

func (m appModel) authCmd(f authForm, signup bool) tea.Cmd {
	svc := m.opts.Auth
	name := f.value(validate.FieldName)
	email := f.value(validate.FieldEmail)
	password := f.value(validate.FieldPassword)
	return func() tea.Msg {
		ctx := context.Background()
		if signup {
			u, err := svc.Signup(ctx, name, email, password)
			return authDoneMsg{user: u, err: err, signup: true}
		}
		u, err := svc.Login(ctx, email, password)
		return authDoneMsg{user: u, err: err}
	}
}

func (m appModel) applyAuthDone(msg authDoneMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	if msg.signup {
		f = &m.signup
	}
	f.busy = false
	if msg.err != nil {
		f.fail(msg.err)
		return m, nil
	}
	m.login = newLoginForm()
	m.signup = newSignupForm()
	m.returnView = viewDashboard
	m.opts.Pages.Prefetch()
	m.navigate(viewDashboard)
	return m, nil
}

func (m appModel) logout() (tea.Model, tea.Cmd) {
	cmd := m.closeDetail()
	if err := m.opts.Auth.Logout(); err != nil {
		m.logger.Warn("logout failed", slog.String("error", err.Error()))
	}
	m.login = newLoginForm()
	m.view = viewLogin
	return m, cmd
}

func (m appModel) refetchCmd() tea.Cmd {
	svc := m.opts.Pages
	return func() tea.Msg {
		// Failures land in the collection entry.
		_, _ = svc.Refetch(context.Background())
		return nil
	}
}

func (m appModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "p", "enter":
		m.navigate(viewPages)
		return m, nil
	case "n":
		m.openNewPage()
		return m, nil
	case "r":
		return m, m.refetchCmd()
	case "L":
		return m.logout()
	case "1", "2", "3":
		recent := m.summary().Recent
		i := int(msg.Runes[0] - '1')
		if i < len(recent) {
			return m, m.openPage(recent[i].ID)
		}
	}
	return m, nil
}

func (m appModel) updatePages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pagesList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.pagesList, cmd = m.pagesList.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		if m.pagesList.FilterState() == list.FilterApplied {
			m.pagesList.ResetFilter()
			return m, nil
		}
		m.navigate(viewDashboard)
		return m, nil
	case "enter":
		if p, ok := selectedPage(m.pagesList); ok {
			return m, m.openPage(p.ID)
		}
		return m, nil
	case "n":
		m.openNewPage()
		return m, nil
	case "d", "delete":
		if p, ok := selectedPage(m.pagesList); ok {
			m.openConfirmDelete(p.ID, false)
		}
		return m, nil
	case "r":
		return m, m.refetchCmd()
	}
	var cmd tea.Cmd
	m.pagesList, cmd = m.pagesList.Update(msg)
	return m, cmd
}
