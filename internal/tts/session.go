package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/coder6688/wenxuecity-tts/internal/lang"
)

// SessionConfig configures a playback session.
type SessionConfig struct {
	// Segments is the fixed sequence to read. It must not be empty.
	Segments []Segment

	// Synthesizer speaks each segment. Required.
	Synthesizer Synthesizer

	// Classifier re-detects the language per segment. Nil disables detection.
	Classifier Classifier

	// Policy restricts detected tags. Nil accepts every tag.
	Policy LanguagePolicy

	// Language is an explicit override; when set, detection is disabled.
	Language string

	// InitialLanguage is the current language before the first segment is
	// classified. Defaults to lang.DefaultFallback.
	InitialLanguage string

	// AutoDetect enables per-segment reclassification.
	AutoDetect bool

	// Volume is read once per segment. Defaults to a private Volume at 80.
	Volume *Volume

	// Cursor is the first segment to speak. A cursor equal to the number of
	// segments starts a session that completes without speaking.
	Cursor int

	Sink   Sink
	Logger *log.Logger
	ID     string
}

// Session reads a fixed segment sequence through a Synthesizer on a single
// background worker.
//
// Status changes made by Pause, Resume and Cancel take effect at the next
// segment boundary. A pause that lands while a segment is being spoken
// leaves the cursor on that segment, so Resume speaks it again.
type Session struct {
	id         string
	segments   []Segment
	synth      Synthesizer
	classifier Classifier
	policy     LanguagePolicy
	override   string
	autoDetect atomic.Bool
	volume     *Volume
	sink       Sink
	logger     *log.Logger

	// emitMu orders notifications against status changes: a status change
	// and the events that follow it are never interleaved with the worker's
	// events for a segment. Events are queued under emitMu and delivered by
	// flush once it is released, so a sink may call back into the session.
	emitMu sync.Mutex

	outMu    sync.Mutex
	pending  []Event
	flushing bool
	ended    bool

	mu          sync.Mutex
	status      Status
	cursor      int
	language    string
	halted      bool
	interrupted bool
	lastErr     error

	parent       context.Context
	running      bool
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	finished   chan struct{}
	finishOnce sync.Once
}

// NewSession validates cfg and returns an idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if len(cfg.Segments) == 0 {
		return nil, ErrEmptyInput
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", ErrInvalidConfig)
	}
	if cfg.Cursor < 0 || cfg.Cursor > len(cfg.Segments) {
		return nil, fmt.Errorf("%w: cursor %d out of range [0, %d]", ErrInvalidConfig, cfg.Cursor, len(cfg.Segments))
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithPrefix("session")
	}

	s := &Session{
		id:         id,
		segments:   cfg.Segments,
		synth:      cfg.Synthesizer,
		classifier: cfg.Classifier,
		policy:     cfg.Policy,
		override:   lang.Normalize(cfg.Language),
		volume:     cfg.Volume,
		sink:       cfg.Sink,
		logger:     logger.With("session", shortID(id)),
		status:     StatusIdle,
		cursor:     cfg.Cursor,
		finished:   make(chan struct{}),
	}
	if s.volume == nil {
		s.volume = NewVolume(80, DefaultVolumeStep)
	}
	s.autoDetect.Store(cfg.AutoDetect)

	switch {
	case s.override != "":
		s.language = s.override
	case cfg.InitialLanguage != "":
		s.language = lang.Normalize(cfg.InitialLanguage)
	default:
		s.language = lang.DefaultFallback
	}

	return s, nil
}

// StartSession creates a session and starts it.
func StartSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Start moves an idle session to Running and launches its worker. Cancelling
// ctx cancels the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return &TransitionError{Op: "start", From: s.status}
	}
	s.parent = ctx
	s.status = StatusRunning
	s.spawnLocked()

	s.logger.Debug("session started", "segments", len(s.segments), "cursor", s.cursor, "lang", s.language)
	return nil
}

// Run starts the session and blocks until its worker stops, either because
// the session finished or because it was paused or halted. It returns the
// synthesis error that halted the session, if any.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.Wait()
	return s.Err()
}

// Pause suspends dispatch. The resume point is the current cursor.
func (s *Session) Pause() error {
	defer s.flush()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.status != StatusRunning {
		from := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "pause", From: from}
	}
	s.status = StatusPaused
	s.interrupted = true
	cursor := s.cursor
	s.mu.Unlock()

	s.logger.Debug("session paused", "cursor", cursor)
	s.emit(Event{Kind: EventPaused, Position: cursor + 1, Total: len(s.segments)})
	return nil
}

// Resume restarts dispatch at the cursor. The segment at the cursor is
// spoken again.
func (s *Session) Resume() error {
	defer s.flush()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.status != StatusPaused {
		from := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "resume", From: from}
	}
	s.status = StatusRunning
	s.halted = false
	s.lastErr = nil
	if !s.running {
		s.spawnLocked()
	}
	cursor := s.cursor
	s.mu.Unlock()

	s.logger.Debug("session resumed", "cursor", cursor)
	s.emit(Event{Kind: EventResumed, Position: cursor + 1, Total: len(s.segments)})
	return nil
}

// Cancel stops the session for good. An in-flight synthesis call is not
// interrupted; use Kill or Shutdown for that.
func (s *Session) Cancel() error {
	defer s.flush()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.status != StatusRunning && s.status != StatusPaused {
		from := s.status
		s.mu.Unlock()
		return &TransitionError{Op: "cancel", From: from}
	}
	s.status = StatusCancelled
	s.interrupted = true
	cursor := s.cursor
	s.mu.Unlock()

	s.logger.Debug("session cancelled", "cursor", cursor)
	s.emit(Event{Kind: EventCancelled, Position: cursor + 1, Total: len(s.segments)})
	s.finish()
	return nil
}

// Kill interrupts the in-flight synthesis call, if any, by cancelling the
// context passed to the Synthesizer. It does not change the status: a
// running session that is killed and not paused or cancelled carries on
// with a fresh worker from the same cursor.
func (s *Session) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && s.workerCancel != nil {
		s.workerCancel()
	}
}

// Wait blocks until no worker is running.
func (s *Session) Wait() {
	for {
		s.mu.Lock()
		done := s.workerDone
		s.mu.Unlock()

		if done == nil {
			return
		}
		<-done

		s.mu.Lock()
		respawned := s.running && s.workerDone != done
		s.mu.Unlock()
		if !respawned {
			return
		}
	}
}

// Shutdown cancels the session and waits up to timeout for the worker to
// finish its current segment. A worker still busy after the timeout is
// killed and ErrForcedStop is returned.
func (s *Session) Shutdown(timeout time.Duration) error {
	if err := s.Cancel(); err != nil && !errors.Is(err, ErrInvalidTransition) {
		return err
	}

	if s.waitTimeout(timeout) {
		return nil
	}

	s.logger.Warn("worker did not stop in time, killing", "timeout", timeout)
	s.Kill()
	s.Wait()
	s.emit(Event{Kind: EventForcedStop})
	s.flush()
	return ErrForcedStop
}

func (s *Session) waitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Len returns the number of segments.
func (s *Session) Len() int { return len(s.segments) }

// Segments returns the segment sequence. It must not be modified.
func (s *Session) Segments() []Segment { return s.segments }

// Volume returns the volume read for each segment.
func (s *Session) Volume() *Volume { return s.volume }

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Cursor returns the index of the next segment to speak.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Language returns the current language tag.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Halted reports whether the session is paused because a synthesis call
// failed.
func (s *Session) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Err returns the error that halted the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Finished is closed when the session completes or is cancelled. It stays
// open while the session is paused or halted.
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

// SetAutoDetect enables or disables reclassification from the next segment
// on. It has no effect when a language override is set.
func (s *Session) SetAutoDetect(enabled bool) {
	s.autoDetect.Store(enabled)
}

// spawnLocked must be called with mu held.
func (s *Session) spawnLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})

	s.running = true
	s.workerCancel = cancel
	s.workerDone = done

	go s.run(ctx, cancel, done)
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		seg, language, ok := s.next(ctx)
		if !ok {
			return
		}

		err := s.synth.Speak(ctx, seg.Text, language, s.volume.Get())
		s.settle(ctx, seg, language, err)
	}
}

// next prepares the segment at the cursor and emits its notifications. It
// returns false when the worker must exit.
func (s *Session) next(ctx context.Context) (Segment, string, bool) {
	defer s.flush()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	switch {
	case s.parent.Err() != nil && !s.status.Terminal():
		s.status = StatusCancelled
		s.running = false
		s.mu.Unlock()

		s.logger.Debug("session context done", "err", s.parent.Err())
		s.emit(Event{Kind: EventCancelled})
		s.finish()
		return Segment{}, "", false

	case s.status != StatusRunning:
		s.running = false
		s.mu.Unlock()
		return Segment{}, "", false

	case ctx.Err() != nil:
		// Killed, then resumed before this worker noticed.
		s.spawnLocked()
		s.mu.Unlock()
		return Segment{}, "", false

	case s.cursor >= len(s.segments):
		s.status = StatusCompleted
		s.running = false
		s.mu.Unlock()

		s.logger.Debug("session completed", "segments", len(s.segments))
		s.emit(Event{Kind: EventCompleted, Position: len(s.segments), Total: len(s.segments)})
		s.finish()
		return Segment{}, "", false
	}

	seg := s.segments[s.cursor]
	s.interrupted = false
	previous := s.language
	s.mu.Unlock()

	language := previous
	if s.detecting() {
		language = s.classify(seg.Text)
	}

	if language != previous {
		s.mu.Lock()
		s.language = language
		s.mu.Unlock()

		s.logger.Debug("language changed", "from", previous, "to", language, "cursor", seg.Index)
		s.emit(Event{Kind: EventLanguageChanged, Language: language, Position: seg.Index + 1, Total: len(s.segments)})
	}

	s.emit(Event{
		Kind:     EventProgress,
		Position: seg.Index + 1,
		Total:    len(s.segments),
		Text:     seg.Text,
		Language: language,
	})
	return seg, language, true
}

// settle records the outcome of a synthesis call.
func (s *Session) settle(ctx context.Context, seg Segment, language string, err error) {
	defer s.flush()
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	interrupted := s.interrupted || ctx.Err() != nil || errors.Is(err, context.Canceled)

	switch {
	case interrupted || s.status != StatusRunning:
		s.mu.Unlock()
		s.logger.Debug("segment interrupted", "cursor", seg.Index, "err", err)

	case err != nil:
		serr := &SynthesisError{Index: seg.Index, Language: language, Err: err}
		s.status = StatusPaused
		s.halted = true
		s.lastErr = serr
		s.mu.Unlock()

		s.logger.Error("synthesis failed, session halted", "cursor", seg.Index, "lang", language, "err", err)
		s.emit(Event{Kind: EventError, Err: serr, Position: seg.Index + 1, Total: len(s.segments), Language: language})

	default:
		s.cursor++
		s.mu.Unlock()
	}
}

func (s *Session) detecting() bool {
	return s.override == "" && s.classifier != nil && s.autoDetect.Load()
}

func (s *Session) classify(text string) string {
	tag := s.classifier.Classify(text)
	if s.policy != nil {
		tag = s.policy.Restrict(tag)
	}
	return tag
}

// emit queues ev for delivery by flush.
func (s *Session) emit(ev Event) {
	if s.sink == nil {
		return
	}
	ev.SessionID = s.id

	s.outMu.Lock()
	s.pending = append(s.pending, ev)
	s.outMu.Unlock()
}

// flush delivers queued events in order. Only one caller delivers at a
// time; a flush issued from inside Notify returns at once and its events
// are delivered by the flush already in progress.
func (s *Session) flush() {
	s.outMu.Lock()
	if s.flushing {
		s.outMu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.outMu.Unlock()

		s.sink.Notify(ev)

		s.outMu.Lock()
	}
	s.flushing = false
	ended := s.ended
	s.outMu.Unlock()

	if ended {
		s.finishOnce.Do(func() { close(s.finished) })
	}
}

// finish closes Finished once every queued event has been delivered.
func (s *Session) finish() {
	s.outMu.Lock()
	s.ended = true
	s.outMu.Unlock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
