package tts

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testBacklog = []ContentItem{
	{Title: "First", URL: "https://example.com/news/1.html"},
	{Title: "第二条新闻", URL: "https://example.com/news/2.html"},
	{Title: "Third", URL: "https://example.com/news/3.html"},
}

func testTexts() map[string]string {
	return map[string]string{
		testBacklog[0].URL: "One a. One b.",
		testBacklog[1].URL: "二甲。二乙。",
		testBacklog[2].URL: "Three a.",
	}
}

func newTestChain(t *testing.T, synth Synthesizer, fetcher Fetcher, sink Sink, modify func(*Config)) *Chain {
	t.Helper()

	cfg := DefaultConfig()
	cfg.CueDelay = 0
	cfg.StopTimeout = 100 * time.Millisecond
	if modify != nil {
		modify(&cfg)
	}

	c, err := NewChain(ChainConfig{
		Config:      cfg,
		Synthesizer: synth,
		Fetcher:     fetcher,
		Classifier:  &scriptClassifier{},
		Sink:        sink,
	})
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestChain_AutoContinueThroughBacklog(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if got := c.ActiveIndex(); got != NotTracked {
		t.Fatalf("ActiveIndex() after load = %d", got)
	}

	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatalf("SelectIndex() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		sink.waitKind(t, EventCompleted)
	}
	// The last session has no successor; give a stray advance time to show.
	time.Sleep(50 * time.Millisecond)

	if got := c.ActiveIndex(); got != 2 {
		t.Errorf("ActiveIndex() = %d, want 2", got)
	}
	wantFetched := []string{testBacklog[0].URL, testBacklog[1].URL, testBacklog[2].URL}
	if got := fetcher.fetched(); !reflect.DeepEqual(got, wantFetched) {
		t.Errorf("fetched = %v", got)
	}

	wantSpoken := []string{"One a.", "One b.", "Next: 第二条新闻", "二甲。", "二乙。", "Next: Third", "Three a."}
	if got := synth.texts(); !reflect.DeepEqual(got, wantSpoken) {
		t.Errorf("spoken = %q\nwant %q", got, wantSpoken)
	}

	synth.mu.Lock()
	cueLang := synth.calls[2].Language
	synth.mu.Unlock()
	if cueLang != "zh-cn" {
		t.Errorf("cue language = %q, want zh-cn", cueLang)
	}

	events := sink.all()
	if n := countKind(events, EventItemStarted); n != 3 {
		t.Errorf("item events = %d", n)
	}
	if n := countKind(events, EventCue); n != 2 {
		t.Errorf("cue events = %d", n)
	}
	started := sink.all()[0]
	if started.Kind != EventItemStarted || started.String() != "Start reading news 1 of 3 - First" {
		t.Errorf("first event = %v %q", started.Kind, started.String())
	}
	if st := c.GetStats(); st.ItemsStarted != 3 || st.AutoAdvances != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestChain_NoAutoContinueWhenDisabled(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, func(cfg *Config) { cfg.AutoContinue = false })

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	sink.waitKind(t, EventCompleted)
	time.Sleep(50 * time.Millisecond)

	if got := fetcher.fetched(); len(got) != 1 {
		t.Errorf("fetched = %v", got)
	}
}

func TestChain_NoAutoContinueAfterStop(t *testing.T) {
	synth := newFakeSynth(true)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	synth.next(t)

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if got := c.Status(); got != StatusCancelled {
		t.Errorf("Status() = %v", got)
	}
	if got := fetcher.fetched(); len(got) != 1 {
		t.Errorf("fetched = %v", got)
	}
	if got := c.ActiveIndex(); got != 0 {
		t.Errorf("ActiveIndex() = %d", got)
	}
}

func TestChain_StopForcesStuckSpeech(t *testing.T) {
	synth := newFakeSynth(true)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	synth.next(t)

	if err := c.Stop(); !errors.Is(err, ErrForcedStop) {
		t.Fatalf("Stop() = %v, want ErrForcedStop", err)
	}
	sink.waitKind(t, EventForcedStop)
	if st := c.GetStats(); st.ForcedStops != 1 {
		t.Errorf("ForcedStops = %d", st.ForcedStops)
	}
	if got := fetcher.fetched(); len(got) != 1 {
		t.Errorf("fetched = %v", got)
	}
}

func TestChain_NoAutoContinueAfterHalt(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	synth.failNext("One b.", errors.New("network down"))
	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	sink.waitKind(t, EventError)
	time.Sleep(50 * time.Millisecond)

	if got := fetcher.fetched(); len(got) != 1 {
		t.Fatalf("advanced after halt: fetched = %v", got)
	}
	s := c.Session()
	if s.Status() != StatusPaused || !s.Halted() || s.Cursor() != 1 {
		t.Fatalf("session status=%v halted=%v cursor=%d", s.Status(), s.Halted(), s.Cursor())
	}

	// Retrying completes the item, which then advances.
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	sink.waitFor(t, func(ev Event) bool { return ev.Kind == EventItemStarted && ev.Position == 2 })
	if got := c.ActiveIndex(); got != 1 {
		t.Errorf("ActiveIndex() = %d, want 1", got)
	}
}

func TestChain_FetchErrorStopsChain(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(testTexts())
	fetcher.errs[testBacklog[1].URL] = errors.New("503 service unavailable")
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	ev := sink.waitKind(t, EventError)
	var ferr *FetchError
	if !errors.As(ev.Err, &ferr) || ferr.Identifier != testBacklog[1].URL {
		t.Fatalf("error event = %+v", ev)
	}
	time.Sleep(50 * time.Millisecond)

	if got := c.ActiveIndex(); got != 0 {
		t.Errorf("ActiveIndex() = %d, want 0", got)
	}
	if got := c.Status(); got != StatusCompleted {
		t.Errorf("Status() = %v, want completed (no new session)", got)
	}
	if n := countKind(sink.all(), EventItemStarted); n != 1 {
		t.Errorf("item events = %d", n)
	}
}

func TestChain_ManualFetchError(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(testTexts())
	fetcher.errs["https://example.com/bad"] = errors.New("dns failure")
	c := newTestChain(t, synth, fetcher, newRecordingSink(), nil)

	err := c.Submit(context.Background(), "https://example.com/bad")
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("Submit() = %v, want FetchError", err)
	}
	if c.Session() != nil {
		t.Error("session started after fetch error")
	}
}

func TestChain_EmptyContent(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"blank": "  “”。 \n "})
	c := newTestChain(t, newFakeSynth(false), fetcher, newRecordingSink(), nil)

	if err := c.Submit(context.Background(), "blank"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Submit() = %v, want ErrEmptyInput", err)
	}
	if c.Session() != nil {
		t.Error("session started for empty content")
	}
}

func TestChain_ResubmitResumesPausedItem(t *testing.T) {
	synth := newFakeSynth(true)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, func(cfg *Config) { cfg.AutoContinue = false })

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	synth.next(t)
	synth.release(t)
	if got := synth.next(t); got.Text != "One b." {
		t.Fatalf("in flight = %q", got.Text)
	}

	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	first := c.Session()
	first.Wait()

	if err := c.SelectManually(context.Background(), testBacklog[0]); err != nil {
		t.Fatalf("SelectManually() error = %v", err)
	}
	if c.Session() != first {
		t.Fatal("re-submitting a paused item started a new session")
	}
	if got := fetcher.fetched(); len(got) != 1 {
		t.Errorf("fetched = %v, want one fetch", got)
	}

	if got := synth.next(t); got.Text != "One b." {
		t.Fatalf("resumed at %q, want One b.", got.Text)
	}
	synth.release(t)
	waitClosed(t, first.Finished())
}

func TestChain_PauseAtBoundary(t *testing.T) {
	synth := newFakeSynth(true)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, func(cfg *Config) { cfg.AutoContinue = false })

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if got := synth.next(t); got.Text != "One a." {
		t.Fatalf("in flight = %q", got.Text)
	}

	if err := c.PauseAtBoundary(); err != nil {
		t.Fatalf("PauseAtBoundary() error = %v", err)
	}
	sink.waitKind(t, EventPaused)

	// The segment in flight keeps playing until it ends.
	synth.release(t)
	s := c.Session()
	s.Wait()
	if got := s.Status(); got != StatusPaused {
		t.Fatalf("Status() = %v, want paused", got)
	}
	if got := synth.texts(); !reflect.DeepEqual(got, []string{"One a."}) {
		t.Errorf("spoken = %q", got)
	}

	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"One a.", "One b."} {
		if got := synth.next(t); got.Text != want {
			t.Fatalf("spoke %q, want %q", got.Text, want)
		}
		synth.release(t)
	}
	waitClosed(t, s.Finished())
}

func TestChain_SelectCancelsPrevious(t *testing.T) {
	synth := newFakeSynth(true)
	fetcher := newFakeFetcher(testTexts())
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if err := c.SelectIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	synth.next(t)
	first := c.Session()

	if err := c.SelectIndex(context.Background(), 2); err != nil {
		t.Fatalf("SelectIndex() error = %v", err)
	}
	if got := first.Status(); got != StatusCancelled {
		t.Errorf("previous session status = %v, want cancelled", got)
	}
	if got := c.ActiveIndex(); got != 2 {
		t.Errorf("ActiveIndex() = %d", got)
	}
	if got := synth.next(t); got.Text != "Three a." {
		t.Errorf("new session spoke %q", got.Text)
	}
	synth.release(t)
	waitClosed(t, c.Session().Finished())
}

func TestChain_SubmitUntracked(t *testing.T) {
	synth := newFakeSynth(false)
	texts := testTexts()
	texts["https://elsewhere.example/story"] = "Elsewhere."
	fetcher := newFakeFetcher(texts)
	sink := newRecordingSink()
	c := newTestChain(t, synth, fetcher, sink, nil)

	c.LoadBacklog(testBacklog)
	if err := c.Submit(context.Background(), "https://elsewhere.example/story"); err != nil {
		t.Fatal(err)
	}
	if got := c.ActiveIndex(); got != NotTracked {
		t.Errorf("ActiveIndex() = %d, want NotTracked", got)
	}
	sink.waitKind(t, EventCompleted)
	time.Sleep(50 * time.Millisecond)

	if got := fetcher.fetched(); len(got) != 1 {
		t.Errorf("untracked item advanced: fetched = %v", got)
	}
}

func TestChain_CharLimit(t *testing.T) {
	synth := newFakeSynth(false)
	fetcher := newFakeFetcher(map[string]string{"long": strings.Repeat("很长的句子。", 100)})
	c := newTestChain(t, synth, fetcher, newRecordingSink(), func(cfg *Config) { cfg.CharLimit = 12 })

	if err := c.Submit(context.Background(), "long"); err != nil {
		t.Fatal(err)
	}
	waitClosed(t, c.Session().Finished())

	if got := synth.texts(); !reflect.DeepEqual(got, []string{"很长的句子。", "很长的句子。"}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestChain_VolumeAndLiveConfig(t *testing.T) {
	sink := newRecordingSink()
	c := newTestChain(t, newFakeSynth(false), newFakeFetcher(nil), sink, nil)

	if got := c.SetVolume(150); got != 100 {
		t.Errorf("SetVolume(150) = %d", got)
	}
	if got := c.VolumeDown(); got != 90 {
		t.Errorf("VolumeDown() = %d", got)
	}
	if ev := sink.waitKind(t, EventVolumeChanged); ev.Volume != 100 {
		t.Errorf("volume event = %d", ev.Volume)
	}

	cfg := DefaultConfig()
	cfg.Volume = 30
	cfg.VolumeStep = 5
	cfg.AutoContinue = false
	cfg.AutoDetect = false
	c.ApplyConfig(cfg)

	if c.Volume() != 30 || c.AutoContinue() || c.AutoDetect() {
		t.Errorf("volume=%d autoContinue=%v autoDetect=%v", c.Volume(), c.AutoContinue(), c.AutoDetect())
	}
	if got := c.VolumeUp(); got != 35 {
		t.Errorf("VolumeUp() = %d, want 35", got)
	}
}

func TestChain_NoSession(t *testing.T) {
	c := newTestChain(t, newFakeSynth(false), newFakeFetcher(nil), nil, nil)

	for name, op := range map[string]func() error{
		"Pause":           c.Pause,
		"PauseAtBoundary": c.PauseAtBoundary,
		"Resume":          c.Resume,
		"TogglePause":     c.TogglePause,
	} {
		if err := op(); !errors.Is(err, ErrNoSession) {
			t.Errorf("%s() = %v, want ErrNoSession", name, err)
		}
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if err := c.SelectIndex(context.Background(), 5); err == nil {
		t.Error("SelectIndex out of range succeeded")
	}
}

func TestChain_Closed(t *testing.T) {
	c := newTestChain(t, newFakeSynth(false), newFakeFetcher(testTexts()), nil, nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := c.Submit(context.Background(), testBacklog[0].URL); !errors.Is(err, ErrChainClosed) {
		t.Errorf("Submit() after close = %v", err)
	}
}

func TestChain_LoadBacklogDeduplicates(t *testing.T) {
	c := newTestChain(t, newFakeSynth(false), newFakeFetcher(nil), nil, nil)
	c.LoadBacklog(append(testBacklog, testBacklog[0], ContentItem{Title: "no url"}))

	if got := c.Backlog(); !reflect.DeepEqual(got, testBacklog) {
		t.Errorf("Backlog() = %v", got)
	}
}

func TestNewChain_Errors(t *testing.T) {
	if _, err := NewChain(ChainConfig{Config: DefaultConfig(), Fetcher: newFakeFetcher(nil)}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing synthesizer: %v", err)
	}
	if _, err := NewChain(ChainConfig{Config: DefaultConfig(), Synthesizer: newFakeSynth(false)}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing fetcher: %v", err)
	}
	bad := DefaultConfig()
	bad.Volume = -5
	if _, err := NewChain(ChainConfig{Config: bad, Synthesizer: newFakeSynth(false), Fetcher: newFakeFetcher(nil)}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config: %v", err)
	}
}
