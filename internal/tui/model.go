package tui

import (
	"context"
	"log/slog"

	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"
	"flow-cli/internal/model"
	"flow-cli/internal/query"
	"flow-cli/internal/store"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type view int

const (
	viewLogin view = iota
	viewSignup
	viewDashboard
	viewPages
	viewPage
)

// stateName is the persisted name of a view, "" for views that are never restored.
func (v view) stateName() string {
	switch v {
	case viewDashboard:
		return "dashboard"
	case viewPages:
		return "pages"
	case viewPage:
		return "page"
	default:
		return ""
	}
}

func viewFromState(s string) view {
	switch s {
	case "pages":
		return viewPages
	case "page":
		return viewPage
	default:
		return viewDashboard
	}
}

type modalKind int

const (
	modalNone modalKind = iota
	modalNewPage
	modalConfirmDelete
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

type flashKind int

const (
	flashInfo flashKind = iota
	flashError
)

type appModel struct {
	opts    Options
	logger  *slog.Logger
	metrics metrics.Recorder

	width  int
	height int

	view       view
	returnView view
	modal      modalKind

	login  authForm
	signup authForm

	pagesList  list.Model
	pagesEntry query.Entry[[]model.Page]

	detail  pageDetail
	newPage newPageForm

	confirmFocus  confirmModalFocus
	deleteID      int64
	deleteLeaving bool

	flash     string
	flashKind flashKind
	flashSeq  int

	spinner spinner.Model

	// Signals from service goroutines. Each carries no payload; the model re-reads state.
	pagesSignal chan struct{}
	saveSignal  chan struct{}
	unsubscribe func()
}

func newAppModel(opts Options) appModel {
	m := appModel{
		opts:        opts,
		logger:      logger.OrDiscard(opts.Logger),
		metrics:     metrics.OrNop(opts.Metrics),
		login:       newLoginForm(),
		signup:      newSignupForm(),
		pagesList:   newList("Pages", nil),
		newPage:     newNewPageForm(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		pagesSignal: make(chan struct{}, 1),
		saveSignal:  make(chan struct{}, 1),
		view:        viewLogin,
		returnView:  viewDashboard,
	}
	sig := m.pagesSignal
	m.unsubscribe = opts.Pages.Subscribe(func(query.Entry[[]model.Page]) { signal(sig) })
	m.refreshPages()

	if !opts.Session.Current().Authenticated() {
		return m
	}
	m.view = viewDashboard
	st, err := opts.Store.LoadTUIState()
	if err != nil {
		m.logger.Warn("load tui state failed", slog.String("error", err.Error()))
		st = &store.TUIState{}
	}
	if v := viewFromState(st.View); v == viewPage && st.OpenPageID > 0 {
		m.returnView = viewFromState(st.ReturnView)
		if m.returnView == viewPage {
			m.returnView = viewDashboard
		}
		m.view = viewPage
		m.detail = loadingDetail(st.OpenPageID)
	} else if v == viewPages {
		m.view = viewPages
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForSignal(m.pagesSignal, pagesChangedMsg{}),
		waitForSignal(m.saveSignal, saveStatusMsg{}),
		m.spinner.Tick,
	}
	if m.view != viewLogin {
		m.opts.Pages.Prefetch()
	}
	if m.view == viewPage && m.detail.loading {
		cmds = append(cmds, m.loadPageCmd(m.detail.id))
	}
	return tea.Batch(cmds...)
}

type pagesChangedMsg struct{}

type saveStatusMsg struct{}

type authDoneMsg struct {
	user   *model.User
	err    error
	signup bool
}

type pageLoadedMsg struct {
	id   int64
	page model.Page
	err  error
}

type pageCreatedMsg struct {
	page model.Page
	err  error
}

type pageDeletedMsg struct {
	id  int64
	err error
}

type pageSavedMsg struct {
	id  int64
	err error
}

type flashDoneMsg struct {
	seq int
}

// signal wakes the waiting command without blocking the sender. A pending wake-up already
// covers the new change.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func waitForSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

// shutdown flushes a pending autosave and detaches from the services.
func (m appModel) shutdown(ctx context.Context) {
	if m.detail.saver != nil {
		if err := m.detail.saver.Flush(ctx); err != nil {
			m.logger.Warn("final save failed", slog.Int64("page_id", m.detail.id), slog.String("error", err.Error()))
		}
		m.detail.saver.Close()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *appModel) refreshPages() {
	m.pagesEntry = m.opts.Pages.Peek()
	cur, hadSel := selectedPage(m.pagesList)
	m.pagesList.SetItems(pageItems(m.pagesEntry.Data))
	if hadSel {
		selectPageByID(&m.pagesList, cur.ID)
	}
}

// navigate switches screens and remembers the screen for the next launch.
func (m *appModel) navigate(v view) {
	m.view = v
	m.saveState()
}

func (m *appModel) saveState() {
	if m.view.stateName() == "" || m.opts.Store.Dir == "" {
		return
	}
	st := &store.TUIState{View: m.view.stateName(), ReturnView: m.returnView.stateName()}
	if m.view == viewPage {
		st.OpenPageID = m.detail.id
	}
	if err := m.opts.Store.SaveTUIState(st); err != nil {
		m.logger.Warn("save tui state failed", slog.String("error", err.Error()))
	}
}

func (m *appModel) showFlash(kind flashKind, text string) tea.Cmd {
	m.flash = text
	m.flashKind = kind
	m.flashSeq++
	return flashTimeout(m.flashSeq)
}

func (m appModel) userName() string {
	if u := m.opts.Session.User(); u != nil {
		return u.Name
	}
	return ""
}
