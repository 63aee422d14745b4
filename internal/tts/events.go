package tts

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/coder6688/wenxuecity-tts/internal/queue"
)

// EventKind identifies a notification.
type EventKind int

const (
	// EventProgress is emitted before a segment is spoken.
	EventProgress EventKind = iota

	// EventLanguageChanged is emitted when reclassification picks a new tag.
	EventLanguageChanged

	// EventError reports a synthesis or fetch failure.
	EventError

	// EventCompleted is emitted once every segment was spoken.
	EventCompleted

	// EventPaused reports the resume position.
	EventPaused

	// EventResumed is emitted when dispatch restarts.
	EventResumed

	// EventCancelled is emitted when a session is stopped for good.
	EventCancelled

	// EventForcedStop reports that a worker had to be hard-killed.
	EventForcedStop

	// EventVolumeChanged reports a new volume level.
	EventVolumeChanged

	// EventItemStarted is emitted by a chain when an item becomes active.
	EventItemStarted

	// EventCue is emitted when a chain announces the next item.
	EventCue
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventLanguageChanged:
		return "language"
	case EventError:
		return "error"
	case EventCompleted:
		return "completed"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventCancelled:
		return "cancelled"
	case EventForcedStop:
		return "forced-stop"
	case EventVolumeChanged:
		return "volume"
	case EventItemStarted:
		return "item"
	case EventCue:
		return "cue"
	default:
		return "unknown"
	}
}

// Event is a notification emitted by a session or chain. Fields that do not
// apply to Kind are zero.
type Event struct {
	Kind      EventKind
	SessionID string

	// Position is 1-based; Total is the number of segments or items.
	Position int
	Total    int

	Text     string
	Language string
	Volume   int
	Item     ContentItem
	Err      error
}

// String renders the event as a status line.
func (e Event) String() string {
	switch e.Kind {
	case EventProgress:
		return fmt.Sprintf("Reading %d/%d [%s]: %s", e.Position, e.Total, e.Language, e.Text)
	case EventLanguageChanged:
		return fmt.Sprintf("Language switched to %s", e.Language)
	case EventError:
		return fmt.Sprintf("Error: %v", e.Err)
	case EventCompleted:
		return "Finished reading"
	case EventPaused:
		return fmt.Sprintf("Paused at position %d", e.Position)
	case EventResumed:
		return fmt.Sprintf("Resumed at position %d", e.Position)
	case EventCancelled:
		return "Stopped"
	case EventForcedStop:
		return "Speech stopped forcefully"
	case EventVolumeChanged:
		return fmt.Sprintf("Volume set to %d%%", e.Volume)
	case EventItemStarted:
		return fmt.Sprintf("Start reading news %d of %d - %s", e.Position, e.Total, e.Item.Title)
	case EventCue:
		return e.Text
	default:
		return e.Kind.String()
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Notify implements Sink.
func (f SinkFunc) Notify(ev Event) {
	f(ev)
}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

// Notify implements Sink.
func (m MultiSink) Notify(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ev)
		}
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *log.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(ev Event) {
	l := s.Logger
	if l == nil {
		l = log.Default()
	}
	l = l.With("event", ev.Kind.String())
	if ev.SessionID != "" {
		l = l.With("session", ev.SessionID)
	}

	switch ev.Kind {
	case EventError:
		l.Error(ev.String(), "err", ev.Err)
	case EventForcedStop:
		l.Warn(ev.String())
	case EventProgress:
		l.Debug("segment", "position", ev.Position, "total", ev.Total, "lang", ev.Language)
	default:
		l.Info(ev.String())
	}
}

// ChannelSink buffers events without bounds and delivers them, in order, on
// a channel. It never blocks the emitter.
type ChannelSink struct {
	q    *queue.Queue[Event]
	out  chan Event
	once sync.Once
}

// NewChannelSink starts a sink that forwards events to Events.
func NewChannelSink() *ChannelSink {
	s := &ChannelSink{
		q:   queue.New[Event](0),
		out: make(chan Event),
	}
	go s.pump()
	return s
}

func (s *ChannelSink) pump() {
	defer close(s.out)
	for {
		ev, err := s.q.Dequeue()
		if err != nil {
			return
		}
		s.out <- ev
	}
}

// Notify implements Sink. Events sent after Close are dropped.
func (s *ChannelSink) Notify(ev Event) {
	_ = s.q.Enqueue(ev)
}

// Events returns the delivery channel. It is closed after Close once every
// buffered event has been received.
func (s *ChannelSink) Events() <-chan Event {
	return s.out
}

// Close stops accepting events.
func (s *ChannelSink) Close() {
	s.once.Do(func() {
		_ = s.q.Close()
	})
}
