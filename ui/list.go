package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	runewidth "github.com/mattn/go-runewidth"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// headline is a backlog item as shown in the list.
type headline struct {
	tts.ContentItem
	index int
}

func (h headline) FilterValue() string { return h.Title }

func headlines(items []tts.ContentItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = headline{ContentItem: it, index: i}
	}
	return out
}

// headlineDelegate renders one headline per line. CJK titles are truncated
// by cell width, not by rune count.
type headlineDelegate struct {
	common *commonModel
}

func (d headlineDelegate) Height() int                         { return 1 }
func (d headlineDelegate) Spacing() int                        { return 0 }
func (d headlineDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d headlineDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	h, ok := item.(headline)
	if !ok {
		return
	}

	active := h.index == d.common.active
	marker := "  "
	if active {
		marker = "▶ "
	}
	prefix := fmt.Sprintf("%s%2d. ", marker, h.index+1)
	width := max(0, m.Width()-runewidth.StringWidth(prefix)-1)
	line := prefix + runewidth.Truncate(h.Title, width, ellipsis)

	switch {
	case index == m.Index():
		line = selectedItemStyle.Render(line)
	case active:
		line = activeItemStyle.Render(line)
	default:
		line = normalItemStyle.Render(line)
	}
	fmt.Fprint(w, line) //nolint:errcheck
}

func newListModel(common *commonModel) list.Model {
	l := list.New(nil, headlineDelegate{common: common}, 0, 0)
	l.Title = "Headlines"
	l.SetShowHelp(false)
	l.SetStatusBarItemName("headline", "headlines")
	l.DisableQuitKeybindings()
	return l
}

// selectedHeadline returns the headline under the cursor.
func selectedHeadline(l list.Model) (headline, bool) {
	h, ok := l.SelectedItem().(headline)
	return h, ok
}
