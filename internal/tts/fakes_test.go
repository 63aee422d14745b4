package tts

import (
	"context"
	"sync"
	"testing"
	"time"
	"unicode"
)

const testTimeout = 5 * time.Second

type speakCall struct {
	Text     string
	Language string
	Volume   int
}

// fakeSynth records calls. When gated, every Speak blocks until the test
// sends on gate or the call context is cancelled.
type fakeSynth struct {
	mu       sync.Mutex
	calls    []speakCall
	failOnce map[string]error

	gate    chan struct{}
	started chan speakCall
}

func newFakeSynth(gated bool) *fakeSynth {
	f := &fakeSynth{
		failOnce: make(map[string]error),
		started:  make(chan speakCall, 256),
	}
	if gated {
		f.gate = make(chan struct{})
	}
	return f
}

func (f *fakeSynth) Speak(ctx context.Context, text, language string, volume int) error {
	c := speakCall{Text: text, Language: language, Volume: volume}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	err := f.failOnce[text]
	delete(f.failOnce, text)
	f.mu.Unlock()

	f.started <- c

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeSynth) failNext(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnce[text] = err
}

func (f *fakeSynth) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Text
	}
	return out
}

func (f *fakeSynth) next(t *testing.T) speakCall {
	t.Helper()
	select {
	case c := <-f.started:
		return c
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a Speak call")
		return speakCall{}
	}
}

func (f *fakeSynth) release(t *testing.T) {
	t.Helper()
	select {
	case f.gate <- struct{}{}:
	case <-time.After(testTimeout):
		t.Fatal("timed out releasing a Speak call")
	}
}

// recordingSink keeps every event and lets tests wait for one.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan Event, 1024)}
}

func (r *recordingSink) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recordingSink) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingSink) kinds() []EventKind {
	var out []EventKind
	for _, ev := range r.all() {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordingSink) waitFor(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case ev := <-r.ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event; got %v", r.kinds())
			return Event{}
		}
	}
}

func (r *recordingSink) waitKind(t *testing.T, kind EventKind) Event {
	t.Helper()
	return r.waitFor(t, func(ev Event) bool { return ev.Kind == kind })
}

// scriptClassifier tags text containing Han characters as Chinese.
type scriptClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *scriptClassifier) Classify(text string) string {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return "zh"
		}
	}
	return "en"
}

type fakeFetcher struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher(texts map[string]string) *fakeFetcher {
	return &fakeFetcher{texts: texts, errs: make(map[string]error)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return "", err
	}
	return f.texts[id], nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for channel close")
	}
}

func segmentsOf(texts ...string) []Segment {
	segs := make([]Segment, len(texts))
	for i, s := range texts {
		segs[i] = Segment{Index: i, Text: s}
	}
	return segs
}

type classifierFunc func(string) string

func (f classifierFunc) Classify(text string) string { return f(text) }
