package tts

import "context"

// Synthesizer speaks one unit of text. Speak blocks until the audio has been
// played or ctx is cancelled. Implementations are not expected to queue; the
// caller serializes calls.
type Synthesizer interface {
	Speak(ctx context.Context, text, language string, volume int) error
}

// Fetcher retrieves the raw text behind an identifier (URL or path).
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (string, error)
}

// Classifier maps a text span to a normalized language tag. It never fails.
type Classifier interface {
	Classify(text string) string
}

// LanguagePolicy constrains a classified tag to the tags playback accepts.
type LanguagePolicy interface {
	Restrict(tag string) string
}

// Sink receives notifications in emission order. Notify must not block for
// long; slow consumers should buffer.
//
// A Session never holds its locks while calling Notify, so Notify may call
// Pause, Resume, Cancel or Kill on the emitting session. Chain operations
// that replace or stop the session (SelectManually, Submit, SelectIndex,
// Stop, Close) wait for its worker and must be handed to another goroutine.
type Sink interface {
	Notify(ev Event)
}
