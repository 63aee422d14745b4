package tts

// EngineType represents the synthesis engine selection.
type EngineType string

const (
	// EngineGoogle speaks through gTTS, ffmpeg and the local audio device.
	EngineGoogle EngineType = "gtts"

	// EngineEspeak speaks through the espeak-ng binary.
	EngineEspeak EngineType = "espeak"

	// EngineNone represents no engine selected.
	EngineNone EngineType = ""
)

// Status is the lifecycle state of a playback session.
type Status int

const (
	// StatusIdle is the state of a session that was created but never run.
	StatusIdle Status = iota

	// StatusRunning indicates the worker is dispatching segments.
	StatusRunning

	// StatusPaused indicates dispatch is suspended; the cursor is the resume point.
	StatusPaused

	// StatusCompleted indicates every segment was spoken.
	StatusCompleted

	// StatusCancelled indicates the session was stopped for good.
	StatusCancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Segment is one speakable clause of a source document.
type Segment struct {
	// Index is the position in the owning session, 0-based.
	Index int

	// Text is the trimmed, non-empty clause text.
	Text string
}

// ContentItem is a fetchable unit of content, e.g. one news article.
type ContentItem struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// NotTracked is the active index of a chain whose current content is not
// part of the backlog.
const NotTracked = -1
