// Package ui provides the terminal interface of the news reader.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	te "github.com/muesli/termenv"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"

	statusBarHeight = 1
	captionHeight   = 2
)

// Controller is the playback surface driven by the interface.
type Controller interface {
	LoadBacklog(items []tts.ContentItem)
	SelectIndex(ctx context.Context, i int) error
	Submit(ctx context.Context, identifier string) error
	TogglePause() error
	PauseAtBoundary() error
	Stop() error
	VolumeUp() int
	VolumeDown() int
	Volume() int
	SetAutoContinue(enabled bool)
	AutoContinue() bool
	ActiveIndex() int
	Status() tts.Status
}

// Source provides the headline list and article previews.
type Source interface {
	Headlines(ctx context.Context) ([]tts.ContentItem, error)
	Fetch(ctx context.Context, identifier string) (string, error)
}

// NewProgram returns a new Tea program reading through ctrl. Events are the
// notifications ctrl emits.
func NewProgram(cfg Config, ctrl Controller, source Source, events <-chan tts.Event) *tea.Program {
	log.Debug("Starting wxc-tts", "glamour", cfg.GlamourEnabled, "start", cfg.StartIndex)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, ctrl, source, events), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	headlinesLoadedMsg struct {
		items []tts.ContentItem
		at    time.Time
	}
	articleLoadedMsg struct {
		item tts.ContentItem
		body string
	}
	controlDoneMsg struct {
		op  string
		err error
	}
	eventMsg                tts.Event
	eventsClosedMsg         struct{}
	statusMessageTimeoutMsg struct{}
)

// state is the top-level application state.
type state int

const (
	stateShowList state = iota
	stateShowArticle
)

func (s state) String() string {
	return map[state]string{
		stateShowList:    "showing headlines",
		stateShowArticle: "showing article",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int

	// active is the backlog index being read.
	active int
}

type model struct {
	common *commonModel
	state  state

	ctrl   Controller
	source Source
	events <-chan tts.Event

	list    list.Model
	pager   pagerModel
	spinner spinner.Model
	prompt  textinput.Model

	prompting bool
	showHelp  bool
	loading   bool
	loadedAt  time.Time

	caption    string
	captionErr bool
	position   int
	total      int
	language   string
	volume     int

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, ctrl Controller, source Source, events <-chan tts.Event) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	common := &commonModel{cfg: cfg, active: tts.NotTracked}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = subtleStyle

	ti := textinput.New()
	ti.Prompt = "Open: "
	ti.Placeholder = "URL or file path"
	ti.CharLimit = 1024

	return model{
		common:  common,
		state:   stateShowList,
		ctrl:    ctrl,
		source:  source,
		events:  events,
		list:    newListModel(common),
		pager:   newPagerModel(common),
		spinner: sp,
		prompt:  ti,
		loading: true,
		volume:  ctrl.Volume(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadHeadlines(m.source),
		waitForEvent(m.events),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		if m.state == stateShowList && m.list.SettingFilter() {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend

		case "esc", "h":
			if m.state == stateShowArticle {
				m.state = stateShowList
				return m, nil
			}

		case "enter":
			if m.state == stateShowList {
				if h, ok := selectedHeadline(m.list); ok {
					cmd := m.selectIndex(h.index)
					return m, cmd
				}
				return m, nil
			}

		case "n":
			if next := m.common.active + 1; m.common.active != tts.NotTracked && next < len(m.list.Items()) {
				cmd := m.selectIndex(next)
				return m, cmd
			}
			return m, nil

		case "p":
			if prev := m.common.active - 1; m.common.active != tts.NotTracked && prev >= 0 {
				cmd := m.selectIndex(prev)
				return m, cmd
			}
			return m, nil

		case " ":
			cmd := m.togglePause()
			return m, cmd

		case "P":
			if m.ctrl.Status() == tts.StatusRunning {
				return m, control("pause", m.ctrl.PauseAtBoundary)
			}
			return m, nil

		case "s":
			return m, control("stop", m.ctrl.Stop)

		case "+", "=":
			m.volume = m.ctrl.VolumeUp()
			return m, nil

		case "-", "_":
			m.volume = m.ctrl.VolumeDown()
			return m, nil

		case "a":
			enabled := !m.ctrl.AutoContinue()
			m.ctrl.SetAutoContinue(enabled)
			cmd := m.showStatusMessage(fmt.Sprintf("Auto-continue %s", onOff(enabled)), false)
			return m, cmd

		case "c":
			if item, ok := m.focusedItem(); ok {
				te.Copy(item.URL)
				_ = clipboard.WriteAll(item.URL)
				cmd := m.showStatusMessage("Copied link", false)
				return m, cmd
			}
			return m, nil

		case "o":
			m.prompting = true
			m.prompt.Reset()
			cmd := m.prompt.Focus()
			return m, cmd

		case "r":
			if m.state == stateShowList {
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, loadHeadlines(m.source))
			}

		case "?":
			m.showHelp = !m.showHelp
			m.setSize(m.common.width, m.common.height)
			return m, nil
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.setSize(msg.Width, msg.Height)
		if m.pager.body != "" {
			cmds = append(cmds, renderWithGlamour(m.pager, m.pager.body))
		}

	case headlinesLoadedMsg:
		m.loading = false
		m.loadedAt = msg.at
		m.ctrl.LoadBacklog(msg.items)
		m.common.active = m.ctrl.ActiveIndex()
		cmds = append(cmds, m.list.SetItems(headlines(msg.items)))

		if i := m.common.cfg.StartIndex; i >= 0 {
			m.common.cfg.StartIndex = -1
			if i < len(msg.items) {
				cmds = append(cmds, m.selectIndex(i))
			} else {
				cmds = append(cmds, m.showStatusMessage(
					fmt.Sprintf("There are only %d headlines", len(msg.items)), true))
			}
		}
		return m, tea.Batch(cmds...)

	case articleLoadedMsg:
		if msg.item.URL != m.pager.item.URL {
			return m, nil
		}
		m.pager.body = msg.body
		return m, renderWithGlamour(m.pager, msg.body)

	case controlDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, tts.ErrForcedStop) {
			log.Debug("control failed", "op", msg.op, "error", msg.err)
			cmd := m.showStatusMessage(msg.err.Error(), true)
			return m, cmd
		}
		return m, nil

	case eventMsg:
		cmds = append(cmds, m.handleEvent(tts.Event(msg)), waitForEvent(m.events))
		return m, tea.Batch(cmds...)

	case eventsClosedMsg:
		return m, nil

	case errMsg:
		m.loading = false
		m.pager.loading = false
		cmd := m.showStatusMessage(msg.Error(), true)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil

	case spinner.TickMsg:
		if m.loading || m.pager.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch m.state {
	case stateShowList:
		newList, cmd := m.list.Update(msg)
		m.list = newList
		cmds = append(cmds, cmd)
	case stateShowArticle:
		newPager, cmd := m.pager.update(msg)
		m.pager = newPager
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	case "enter":
		m.prompting = false
		m.prompt.Blur()
		identifier := strings.TrimSpace(m.prompt.Value())
		if identifier == "" {
			return m, nil
		}
		ctrl := m.ctrl
		cmd := tea.Batch(
			m.openArticle(tts.ContentItem{URL: identifier}),
			control("open", func() error {
				return ctrl.Submit(context.Background(), identifier)
			}),
		)
		return m, cmd
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// handleEvent folds a playback notification into the model.
func (m *model) handleEvent(ev tts.Event) tea.Cmd {
	switch ev.Kind {
	case tts.EventProgress:
		m.caption = ev.Text
		m.captionErr = false
		m.position = ev.Position
		m.total = ev.Total
		m.language = ev.Language

	case tts.EventLanguageChanged:
		m.language = ev.Language

	case tts.EventVolumeChanged:
		m.volume = ev.Volume

	case tts.EventError:
		m.caption = ev.String()
		m.captionErr = true

	case tts.EventCue:
		m.caption = ev.Text
		m.captionErr = false

	case tts.EventItemStarted:
		m.common.active = m.ctrl.ActiveIndex()
		m.position, m.total = 0, 0
		if m.common.active != tts.NotTracked {
			m.list.Select(m.common.active)
		}
		if m.state == stateShowArticle && ev.Item.URL != m.pager.item.URL {
			return m.openArticle(ev.Item)
		}

	case tts.EventPaused, tts.EventResumed, tts.EventCompleted,
		tts.EventCancelled, tts.EventForcedStop:
		return m.showStatusMessage(ev.String(), false)
	}
	return nil
}

// selectIndex starts reading the i-th headline and shows its article.
func (m *model) selectIndex(i int) tea.Cmd {
	items := m.list.Items()
	if i < 0 || i >= len(items) {
		return nil
	}
	h := items[i].(headline)
	m.common.active = i

	return tea.Batch(
		control("select", func() error {
			return m.ctrl.SelectIndex(context.Background(), i)
		}),
		m.openArticle(h.ContentItem),
	)
}

func (m *model) openArticle(item tts.ContentItem) tea.Cmd {
	m.state = stateShowArticle
	m.pager.load(item)
	return tea.Batch(m.spinner.Tick, loadArticle(m.source, item))
}

// togglePause pauses or resumes reading; with nothing in progress it starts
// the focused headline.
func (m *model) togglePause() tea.Cmd {
	switch m.ctrl.Status() {
	case tts.StatusRunning, tts.StatusPaused:
		return control("pause", m.ctrl.TogglePause)
	}
	if m.state == stateShowArticle && m.common.active != tts.NotTracked {
		return m.selectIndex(m.common.active)
	}
	if h, ok := selectedHeadline(m.list); ok {
		return m.selectIndex(h.index)
	}
	return nil
}

func (m model) focusedItem() (tts.ContentItem, bool) {
	if m.state == stateShowArticle && m.pager.item.URL != "" {
		return m.pager.item, true
	}
	h, ok := selectedHeadline(m.list)
	return h.ContentItem, ok
}

func (m *model) setSize(w, h int) {
	body := h - statusBarHeight
	if m.common.cfg.ShowCaptions {
		body -= captionHeight
	}
	if m.showHelp {
		body -= strings.Count(m.helpView(), "\n")
	}
	body = max(0, body)

	m.list.SetSize(w, body)
	m.pager.setSize(w, body)
	m.prompt.Width = max(0, w-len(m.prompt.Prompt)-2)
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) View() string {
	var b strings.Builder
	switch m.state {
	case stateShowArticle:
		if m.pager.loading {
			fmt.Fprintf(&b, "\n  %s Loading %s\n", m.spinner.View(), m.pager.item.URL)
			b.WriteString(strings.Repeat("\n", max(0, m.pager.viewport.Height-3)))
		} else {
			b.WriteString(m.pager.View() + "\n")
		}
	default:
		if m.loading && len(m.list.Items()) == 0 {
			fmt.Fprintf(&b, "\n  %s Loading headlines\n", m.spinner.View())
			b.WriteString(strings.Repeat("\n", max(0, m.list.Height()-3)))
		} else {
			b.WriteString(m.list.View() + "\n")
		}
	}

	if m.prompting {
		b.WriteString(m.prompt.View() + "\n\n")
	} else if m.common.cfg.ShowCaptions {
		b.WriteString(m.captionView() + "\n")
	}

	m.statusBarView(&b)

	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

// captionView wraps the segment being spoken to at most captionHeight lines.
func (m model) captionView() string {
	width := max(1, m.common.width-2)
	lines := strings.Split(wordwrap.String(m.caption, width), "\n")
	if len(lines) > captionHeight {
		lines = lines[:captionHeight]
		lines[captionHeight-1] += ellipsis
	}
	for len(lines) < captionHeight {
		lines = append(lines, "")
	}

	s := strings.Join(lines, "\n")
	if m.captionErr {
		return captionErrorStyle.Render(s)
	}
	return captionStyle.Render(s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func loadedNote(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return "updated " + humanize.Time(at)
}

// COMMANDS

func loadHeadlines(src Source) tea.Cmd {
	return func() tea.Msg {
		items, err := src.Headlines(context.Background())
		if err != nil {
			log.Error("unable to load headlines", "error", err)
			return errMsg{err}
		}
		return headlinesLoadedMsg{items: items, at: time.Now()}
	}
}

func loadArticle(src Source, item tts.ContentItem) tea.Cmd {
	return func() tea.Msg {
		body, err := src.Fetch(context.Background(), item.URL)
		if err != nil {
			log.Error("unable to load article", "url", item.URL, "error", err)
			return errMsg{err}
		}
		return articleLoadedMsg{item: item, body: body}
	}
}

func control(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{op: op, err: fn()}
	}
}

func waitForEvent(events <-chan tts.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
