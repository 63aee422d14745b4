package ui

import (
	"fmt"
	"strings"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// playbackNote describes what the controller is doing.
func (m model) playbackNote() string {
	var s string
	switch m.ctrl.Status() {
	case tts.StatusRunning:
		s = "Reading"
	case tts.StatusPaused:
		s = "Paused"
	case tts.StatusCompleted:
		s = "Finished"
	case tts.StatusCancelled:
		s = "Stopped"
	default:
		s = "Idle"
	}
	if m.total > 0 {
		s += fmt.Sprintf(" %d/%d", m.position, m.total)
	}
	if m.language != "" {
		s += " [" + m.language + "]"
	}
	return s
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoView()

	settings := fmt.Sprintf(" vol %d%% ", m.volume)
	if m.ctrl.AutoContinue() {
		settings += "auto "
	}
	settings = statusBarPosStyle(settings)

	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case m.state == stateShowArticle && m.pager.item.Title != "":
		note = m.playbackNote() + " · " + m.pager.item.Title
	case m.state == stateShowList && !m.loadedAt.IsZero():
		note = m.playbackNote() + " · " + loadedNote(m.loadedAt)
	default:
		note = m.playbackNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(settings)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	switch {
	case showStatusMessage && m.statusIsError:
		style = statusBarErrorStyle
	case showStatusMessage:
		style = statusBarMessageStyle
	}
	note = style(note)

	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(settings)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		settings,
		helpNote,
	)
}

func (m model) helpView() (s string) {
	col1 := []string{
		"enter    read headline",
		"space    pause/resume",
		"P        pause after segment",
		"s        stop",
		"n/p      next/previous",
		"+/-      volume",
		"a        auto-continue",
	}
	col2 := []string{
		"/        filter",
		"o        open url or file",
		"c        copy link",
		"r        reload headlines",
		"esc      back to list",
		"?        toggle help",
		"q        quit",
	}

	s += "\n"
	for i := range col1 {
		s += fmt.Sprintf("%-28s%s\n", col1[i], col2[i])
	}
	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
