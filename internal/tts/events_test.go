package tts

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestEvent_String(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: EventPaused, Position: 4}, "Paused at position 4"},
		{Event{Kind: EventResumed, Position: 2}, "Resumed at position 2"},
		{Event{Kind: EventVolumeChanged, Volume: 70}, "Volume set to 70%"},
		{Event{Kind: EventLanguageChanged, Language: "zh-cn"}, "Language switched to zh-cn"},
		{Event{Kind: EventItemStarted, Position: 2, Total: 5, Item: ContentItem{Title: "标题"}}, "Start reading news 2 of 5 - 标题"},
		{Event{Kind: EventCue, Text: "Next: 标题"}, "Next: 标题"},
		{Event{Kind: EventError, Err: errors.New("boom")}, "Error: boom"},
		{Event{Kind: EventProgress, Position: 1, Total: 3, Language: "en", Text: "Hi."}, "Reading 1/3 [en]: Hi."},
	}
	for _, tt := range tests {
		t.Run(tt.ev.Kind.String(), func(t *testing.T) {
			if got := tt.ev.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMultiSink(t *testing.T) {
	var mu sync.Mutex
	var got []string
	record := func(name string) Sink {
		return SinkFunc(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+ev.Kind.String())
		})
	}

	m := MultiSink{record("a"), nil, record("b")}
	m.Notify(Event{Kind: EventCompleted})

	want := "a:" + EventCompleted.String() + " b:" + EventCompleted.String()
	if strings.Join(got, " ") != want {
		t.Errorf("got %v", got)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.InfoLevel)

	sink := LogSink{Logger: logger}
	sink.Notify(Event{Kind: EventPaused, Position: 3, SessionID: "abc"})
	sink.Notify(Event{Kind: EventProgress, Position: 1, Total: 2})
	sink.Notify(Event{Kind: EventError, Err: errors.New("network down")})

	out := buf.String()
	for _, want := range []string{"Paused at position 3", "session=abc", "network down"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "segment") {
		t.Errorf("progress logged above debug level:\n%s", out)
	}
}

func TestChannelSink_OrderAndClose(t *testing.T) {
	s := NewChannelSink()
	for i := 1; i <= 100; i++ {
		s.Notify(Event{Kind: EventProgress, Position: i})
	}
	s.Close()
	s.Close()
	s.Notify(Event{Kind: EventCompleted})

	want := 1
	timeout := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				if want != 101 {
					t.Fatalf("received %d events, want 100", want-1)
				}
				return
			}
			if ev.Position != want {
				t.Fatalf("event %d out of order: position %d", want, ev.Position)
			}
			want++
		case <-timeout:
			t.Fatal("timed out draining sink")
		}
	}
}

func TestVolume(t *testing.T) {
	v := NewVolume(95, 10)
	if got := v.Up(); got != MaxVolume {
		t.Errorf("Up() = %d, want %d", got, MaxVolume)
	}
	if got := v.Set(-20); got != MinVolume {
		t.Errorf("Set(-20) = %d", got)
	}
	if got := v.Down(); got != MinVolume {
		t.Errorf("Down() at minimum = %d", got)
	}

	v.SetStep(0)
	if got := v.Up(); got != DefaultVolumeStep {
		t.Errorf("Up() with invalid step = %d, want %d", got, DefaultVolumeStep)
	}
}

func TestVolume_Concurrent(t *testing.T) {
	v := NewVolume(50, 1)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); v.Up() }()
		go func() { defer wg.Done(); v.Down() }()
	}
	wg.Wait()
	if got := v.Get(); got != 50 {
		t.Errorf("Get() = %d, want 50", got)
	}
}

func TestAllowlistPolicy(t *testing.T) {
	p := NewAllowlistPolicy([]string{"en", "zh-CN"}, "zh")

	tests := []struct {
		in, want string
	}{
		{"en", "en"},
		{"en-US", "en"},
		{"zh", "zh-cn"},
		{"zh-tw", "zh-cn"},
		{"fr", "zh-cn"},
		{"", "zh-cn"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := p.Restrict(tt.in); got != tt.want {
				t.Errorf("Restrict(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	open := NewAllowlistPolicy(nil, "en")
	if got := open.Restrict("fr"); got != "fr" {
		t.Errorf("empty allowlist Restrict(fr) = %q", got)
	}
}
