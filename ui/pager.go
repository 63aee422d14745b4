package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

type contentRenderedMsg struct {
	url     string
	content string
}

// pagerModel shows the article being read.
type pagerModel struct {
	common   *commonModel
	viewport viewport.Model

	item    tts.ContentItem
	body    string
	loading bool
}

func newPagerModel(common *commonModel) pagerModel {
	return pagerModel{
		common:   common,
		viewport: viewport.New(0, 0),
	}
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h
}

// load resets the pager for item; the body arrives later.
func (m *pagerModel) load(item tts.ContentItem) {
	m.item = item
	m.body = ""
	m.loading = true
	m.viewport.SetContent("")
	m.viewport.GotoTop()
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "home", "g":
			m.viewport.GotoTop()
		case "end", "G":
			m.viewport.GotoBottom()
		case "d":
			m.viewport.HalfViewDown()
		case "u":
			m.viewport.HalfViewUp()
		}

	case contentRenderedMsg:
		if msg.url != m.item.URL {
			return m, nil
		}
		m.loading = false
		m.viewport.SetContent(msg.content)
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m pagerModel) View() string {
	return m.viewport.View()
}

// articleMarkdown turns extracted article lines into paragraphs.
func articleMarkdown(item tts.ContentItem, body string) string {
	var b strings.Builder
	if item.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", item.Title)
	}
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString(line)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// COMMANDS

func renderWithGlamour(m pagerModel, body string) tea.Cmd {
	item := m.item
	width := m.viewport.Width
	return func() tea.Msg {
		s, err := glamourRender(m.common.cfg, width, articleMarkdown(item, body))
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg{url: item.URL, content: s}
	}
}

func glamourRender(cfg Config, viewWidth int, markdown string) (string, error) {
	if !cfg.GlamourEnabled {
		return markdown, nil
	}

	width := viewWidth
	if cfg.GlamourMaxWidth > 0 {
		width = min(int(cfg.GlamourMaxWidth), viewWidth) //nolint:gosec
	}

	r, err := glamour.NewTermRenderer(
		glamourStyle(cfg.GlamourStyle),
		glamour.WithWordWrap(max(0, width)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(style)
}
