package tts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/coder6688/wenxuecity-tts/internal/lang"
)

// ChainConfig contains the dependencies of a Chain.
type ChainConfig struct {
	Config      Config
	Synthesizer Synthesizer
	Fetcher     Fetcher

	// Classifier defaults to a lang.Classifier built from Config.
	Classifier Classifier

	// Segmenter defaults to NewSegmenter().
	Segmenter *Segmenter

	// Policy defaults to Config.Policy().
	Policy LanguagePolicy

	Sink   Sink
	Logger *log.Logger
}

// Chain turns a backlog of content items into successive playback sessions
// and moves on to the next item when a session completes naturally.
//
// At most one session exists per chain; a new one is started only after the
// previous worker has stopped.
type Chain struct {
	synth      Synthesizer
	fetcher    Fetcher
	classifier Classifier
	segmenter  *Segmenter
	policy     LanguagePolicy
	sink       Sink
	logger     *log.Logger

	volume       *Volume
	autoContinue atomic.Bool
	autoDetect   atomic.Bool

	// Fixed at construction.
	language    string
	initialLang string
	charLimit   int
	cuePrefix   string
	cueDelay    time.Duration
	stopTimeout time.Duration

	// opMu serializes operations that replace the session.
	opMu sync.Mutex

	mu      sync.Mutex
	backlog []ContentItem
	active  int
	current ContentItem
	session *Session
	closed  bool

	// gen is bumped by every manual operation; an auto-advance only starts
	// if the completed session was started in the current generation.
	gen        uint64
	sessionGen uint64

	advanceCancel context.CancelFunc
	advanceDone   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats   ChainStats
	statsMu sync.Mutex
}

// ChainStats tracks chain activity.
type ChainStats struct {
	ItemsStarted int64
	AutoAdvances int64
	FetchErrors  int64
	ForcedStops  int64
	LastActivity time.Time
}

// NewChain creates a chain with an empty backlog.
func NewChain(cfg ChainConfig) (*Chain, error) {
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", ErrInvalidConfig)
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidConfig)
	}
	conf := cfg.Config
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	c := &Chain{
		synth:       cfg.Synthesizer,
		fetcher:     cfg.Fetcher,
		classifier:  cfg.Classifier,
		segmenter:   cfg.Segmenter,
		policy:      cfg.Policy,
		sink:        cfg.Sink,
		logger:      cfg.Logger,
		volume:      NewVolume(conf.Volume, conf.VolumeStep),
		language:    conf.Language,
		initialLang: conf.InitialLanguage(),
		charLimit:   conf.CharLimit,
		cuePrefix:   conf.CuePrefix,
		cueDelay:    conf.CueDelay,
		stopTimeout: conf.StopTimeout,
		active:      NotTracked,
		stats:       ChainStats{LastActivity: time.Now()},
	}
	if c.classifier == nil {
		c.classifier = lang.NewClassifier(
			lang.WithThreshold(conf.ConfidenceThreshold),
			lang.WithFallback(conf.FallbackLanguage),
			lang.WithLanguages(conf.Languages...),
		)
	}
	if c.segmenter == nil {
		c.segmenter = NewSegmenter()
	}
	if c.policy == nil {
		c.policy = conf.Policy()
	}
	if c.logger == nil {
		c.logger = log.WithPrefix("chain")
	}
	c.autoContinue.Store(conf.AutoContinue)
	c.autoDetect.Store(conf.AutoDetect)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c, nil
}

// LoadBacklog replaces the backlog and resets the active index. Items with
// a URL already present are dropped. The current session is left alone.
func (c *Chain) LoadBacklog(items []ContentItem) {
	seen := make(map[string]bool, len(items))
	backlog := make([]ContentItem, 0, len(items))
	for _, it := range items {
		if it.URL == "" || seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		backlog = append(backlog, it)
	}

	c.mu.Lock()
	c.backlog = backlog
	c.active = NotTracked
	c.mu.Unlock()

	c.logger.Debug("backlog loaded", "items", len(backlog))
}

// Backlog returns a copy of the backlog.
func (c *Chain) Backlog() []ContentItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.backlog)
}

// SelectManually starts reading item from the beginning, cancelling any
// previous session first. If item is the one already loaded and its session
// is paused before the end, that session is resumed instead.
func (c *Chain) SelectManually(ctx context.Context, item ContentItem) error {
	c.supersede()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	index := c.indexOf(item.URL)
	if item.Title == "" && index != NotTracked {
		item = c.backlog[index]
	}
	s, current := c.session, c.current
	c.mu.Unlock()

	if s != nil && current.URL == item.URL && s.Status() == StatusPaused && s.Cursor() < s.Len() {
		c.mu.Lock()
		c.active = index
		c.sessionGen = c.gen
		c.mu.Unlock()

		c.logger.Info("resuming paused item", "url", item.URL, "cursor", s.Cursor())
		return s.Resume()
	}

	if err := c.stopSessionLocked(); err != nil && !errors.Is(err, ErrForcedStop) {
		return err
	}

	c.mu.Lock()
	c.session = nil
	c.current = ContentItem{}
	c.active = index
	c.mu.Unlock()

	text, err := c.fetch(ctx, item)
	if err != nil {
		return err
	}
	return c.startLocked(item, index, text)
}

// Submit is SelectManually for a bare identifier. Identifiers that are not
// in the backlog are read untracked, which stops auto-continue.
func (c *Chain) Submit(ctx context.Context, identifier string) error {
	c.mu.Lock()
	item := ContentItem{URL: identifier}
	if i := c.indexOf(identifier); i != NotTracked {
		item = c.backlog[i]
	}
	c.mu.Unlock()

	return c.SelectManually(ctx, item)
}

// SelectIndex is SelectManually for the i-th backlog item.
func (c *Chain) SelectIndex(ctx context.Context, i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.backlog) {
		n := len(c.backlog)
		c.mu.Unlock()
		return fmt.Errorf("item %d out of range (backlog has %d)", i+1, n)
	}
	item := c.backlog[i]
	c.mu.Unlock()

	return c.SelectManually(ctx, item)
}

// Pause pauses the current session and interrupts the segment being spoken,
// so the pause is heard at once. This escalates the session's own pause,
// which waits for the segment boundary; use PauseAtBoundary for that.
// Resume repeats the interrupted segment.
func (c *Chain) Pause() error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	if err := s.Pause(); err != nil {
		return err
	}
	s.Kill()
	return nil
}

// PauseAtBoundary pauses the current session without interrupting the
// segment being spoken; dispatch stops once it has finished. As with Pause,
// Resume speaks that segment again.
func (c *Chain) PauseAtBoundary() error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Pause()
}

// Resume resumes the current session, retrying a failed segment if the
// session was halted.
func (c *Chain) Resume() error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Resume()
}

// TogglePause pauses a running session or resumes a paused one.
func (c *Chain) TogglePause() error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	if s.Status() == StatusPaused {
		return c.Resume()
	}
	return c.Pause()
}

// Stop cancels the current session and any pending auto-advance. A worker
// that does not stop within the configured timeout is killed and
// ErrForcedStop is returned.
func (c *Chain) Stop() error {
	c.supersede()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.stopSessionLocked()
}

// SetVolume sets the volume used from the next segment on.
func (c *Chain) SetVolume(level int) int {
	return c.volumeChanged(c.volume.Set(level))
}

// VolumeUp raises the volume by one step.
func (c *Chain) VolumeUp() int {
	return c.volumeChanged(c.volume.Up())
}

// VolumeDown lowers the volume by one step.
func (c *Chain) VolumeDown() int {
	return c.volumeChanged(c.volume.Down())
}

// Volume returns the current volume level.
func (c *Chain) Volume() int {
	return c.volume.Get()
}

func (c *Chain) volumeChanged(level int) int {
	c.logger.Debug("volume changed", "volume", level)
	c.emit(Event{Kind: EventVolumeChanged, Volume: level})
	return level
}

// SetAutoContinue enables or disables moving on to the next backlog item.
func (c *Chain) SetAutoContinue(enabled bool) {
	c.autoContinue.Store(enabled)
}

// AutoContinue reports whether auto-continue is enabled.
func (c *Chain) AutoContinue() bool {
	return c.autoContinue.Load()
}

// SetAutoDetect enables or disables language detection, including for the
// current session.
func (c *Chain) SetAutoDetect(enabled bool) {
	c.autoDetect.Store(enabled)
	if s := c.Session(); s != nil {
		s.SetAutoDetect(enabled)
	}
}

// AutoDetect reports whether language detection is enabled.
func (c *Chain) AutoDetect() bool {
	return c.autoDetect.Load()
}

// ApplyConfig applies the settings that may change while reading.
func (c *Chain) ApplyConfig(cfg Config) {
	c.volume.SetStep(cfg.VolumeStep)
	if cfg.Volume != c.volume.Get() {
		c.SetVolume(cfg.Volume)
	}
	c.SetAutoContinue(cfg.AutoContinue)
	c.SetAutoDetect(cfg.AutoDetect)
}

// ActiveIndex returns the backlog index of the current item, or NotTracked.
func (c *Chain) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Current returns the item being read, if any.
func (c *Chain) Current() (ContentItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.session != nil
}

// Session returns the current session, which may be nil.
func (c *Chain) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Status returns the status of the current session, or StatusIdle.
func (c *Chain) Status() Status {
	if s := c.Session(); s != nil {
		return s.Status()
	}
	return StatusIdle
}

// GetStats returns a snapshot of the chain statistics.
func (c *Chain) GetStats() ChainStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close stops reading and releases the chain. It is safe to call twice.
func (c *Chain) Close() error {
	c.supersede()

	c.opMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.opMu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.stopSessionLocked()
	c.opMu.Unlock()

	c.cancel()
	c.wg.Wait()

	if errors.Is(err, ErrForcedStop) {
		return nil
	}
	return err
}

func (c *Chain) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChainClosed
	}
	return nil
}

// indexOf must be called with mu held.
func (c *Chain) indexOf(url string) int {
	for i, it := range c.backlog {
		if it.URL == url {
			return i
		}
	}
	return NotTracked
}

// stopSessionLocked must be called with opMu held.
func (c *Chain) stopSessionLocked() error {
	s := c.Session()
	if s == nil {
		return nil
	}

	err := s.Shutdown(c.stopTimeout)
	if errors.Is(err, ErrForcedStop) {
		c.updateStats(func(st *ChainStats) { st.ForcedStops++ })
		c.logger.Warn("speech stopped forcefully", "session", shortID(s.ID()))
	}
	return err
}

func (c *Chain) fetch(ctx context.Context, item ContentItem) (string, error) {
	text, err := c.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			ferr = &FetchError{Identifier: item.URL, Err: err}
		}
		c.updateStats(func(st *ChainStats) { st.FetchErrors++ })
		c.logger.Error("fetch failed", "url", item.URL, "err", err)
		c.emit(Event{Kind: EventError, Err: ferr, Item: item})
		return "", ferr
	}
	return text, nil
}

// startLocked must be called with opMu held.
func (c *Chain) startLocked(item ContentItem, index int, text string) error {
	segments := c.segmenter.Segment(Prepare(text, c.charLimit))

	s, err := NewSession(SessionConfig{
		Segments:        segments,
		Synthesizer:     c.synth,
		Classifier:      c.classifier,
		Policy:          c.policy,
		Language:        c.language,
		InitialLanguage: c.initialLang,
		AutoDetect:      c.autoDetect.Load(),
		Volume:          c.volume,
		Sink:            c.sink,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			c.emit(Event{Kind: EventError, Err: err, Item: item})
		}
		return err
	}

	c.mu.Lock()
	c.session = s
	c.current = item
	c.sessionGen = c.gen
	total := len(c.backlog)
	c.mu.Unlock()

	if index != NotTracked {
		c.emit(Event{Kind: EventItemStarted, Position: index + 1, Total: total, Item: item})
	}
	if err := s.Start(c.ctx); err != nil {
		return err
	}

	c.updateStats(func(st *ChainStats) { st.ItemsStarted++ })
	c.logger.Info("reading", "url", item.URL, "index", index, "segments", len(segments))

	c.wg.Add(1)
	go c.watch(s)
	return nil
}

// watch waits for s to finish and advances the chain if it completed.
func (c *Chain) watch(s *Session) {
	defer c.wg.Done()

	select {
	case <-s.Finished():
	case <-c.ctx.Done():
		return
	}

	// Cancelled sessions and halted sessions never advance.
	if s.Status() != StatusCompleted {
		return
	}
	c.onCompleted(s)
}

func (c *Chain) onCompleted(s *Session) {
	if !c.autoContinue.Load() {
		c.logger.Debug("auto-continue disabled, chain stops")
		return
	}

	c.mu.Lock()
	if c.closed || c.session != s || c.sessionGen != c.gen || c.active == NotTracked || c.active+1 >= len(c.backlog) {
		c.mu.Unlock()
		c.logger.Debug("no next item, chain stops")
		return
	}
	index := c.active + 1
	next := c.backlog[index]

	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.advanceCancel = cancel
	c.advanceDone = done
	c.mu.Unlock()

	defer close(done)
	defer cancel()

	if err := c.advance(ctx, s, index, next); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("auto-continue stopped", "url", next.URL, "err", err)
	}
}

// advance fetches next while the transition cue is spoken, then starts its
// session unless a manual operation superseded the advance.
func (c *Chain) advance(ctx context.Context, prev *Session, index int, next ContentItem) error {
	var text string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := c.fetch(gctx, next)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	g.Go(func() error {
		c.speakCue(gctx, next)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if c.cueDelay > 0 {
		timer := time.NewTimer(c.cueDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed || c.session != prev {
		c.mu.Unlock()
		return context.Canceled
	}
	c.active = index
	c.mu.Unlock()

	c.updateStats(func(st *ChainStats) { st.AutoAdvances++ })
	return c.startLocked(next, index, text)
}

// speakCue announces item. Failures are logged and otherwise ignored.
func (c *Chain) speakCue(ctx context.Context, item ContentItem) {
	text := c.cuePrefix + item.Title
	language := c.initialLang
	switch {
	case c.language != "":
		language = c.language
	case c.autoDetect.Load():
		language = c.policy.Restrict(c.classifier.Classify(item.Title))
	}

	c.emit(Event{Kind: EventCue, Text: text, Language: language, Item: item})
	if err := c.synth.Speak(ctx, text, language, c.volume.Get()); err != nil && ctx.Err() == nil {
		c.logger.Warn("transition cue failed", "err", err)
	}
}

// supersede invalidates any auto-advance, pending or not yet scheduled.
func (c *Chain) supersede() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	c.stopAdvance()
}

// stopAdvance cancels a pending auto-advance and waits for it to return.
func (c *Chain) stopAdvance() {
	c.mu.Lock()
	cancel, done := c.advanceCancel, c.advanceDone
	c.advanceCancel, c.advanceDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Chain) emit(ev Event) {
	if c.sink != nil {
		c.sink.Notify(ev)
	}
}

func (c *Chain) updateStats(fn func(*ChainStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(&c.stats)
	c.stats.LastActivity = time.Now()
}
