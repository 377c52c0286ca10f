package tui

import (
	"html"
	"strconv"
	"strings"

	"flow-cli/internal/model"
	"flow-cli/internal/pages"

	"github.com/charmbracelet/bubbles/list"
	"github.com/microcosm-cc/bluemonday"
)

// Content comes from the server verbatim; list rows show it as plain text.
var previewPolicy = bluemonday.StrictPolicy()

type pageItem struct {
	page model.Page
}

func (i pageItem) FilterValue() string { return i.page.Title }
func (i pageItem) Title() string       { return i.page.DisplayTitle() }
func (i pageItem) Description() string { return previewText(i.page.Content) }

func previewText(content string) string {
	plain := html.UnescapeString(previewPolicy.Sanitize(content))
	plain = strings.Join(strings.Fields(plain), " ")
	return pages.Preview(plain)
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	// The app renders its own header and footer, so keep list chrome minimal.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("page", "pages")
	// ESC is "back" here, not quit.
	l.KeyMap.Quit.SetKeys("q")
	l.KeyMap.CursorUp.SetKeys(append(l.KeyMap.CursorUp.Keys(), "ctrl+p")...)
	l.KeyMap.CursorDown.SetKeys(append(l.KeyMap.CursorDown.Keys(), "ctrl+n")...)
	return l
}

func pageItems(ps []model.Page) []list.Item {
	items := make([]list.Item, 0, len(ps))
	for _, p := range ps {
		items = append(items, pageItem{page: p})
	}
	return items
}

func selectedPage(l list.Model) (model.Page, bool) {
	it, ok := l.SelectedItem().(pageItem)
	if !ok {
		return model.Page{}, false
	}
	return it.page, true
}

func selectPageByID(l *list.Model, id int64) {
	for i, it := range l.Items() {
		if pi, ok := it.(pageItem); ok && pi.page.ID == id {
			l.Select(i)
			return
		}
	}
}

func pageLabel(p model.Page) string {
	return "#" + strconv.FormatInt(p.ID, 10) + " " + p.DisplayTitle()
}
