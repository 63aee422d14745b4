package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockPlayer_Play(t *testing.T) {
	mp := NewMockPlayer()
	var started []MockClip
	mp.OnPlay = func(c MockClip) { started = append(started, c) }

	audio := make([]byte, 8820)
	if err := mp.Play(context.Background(), audio, 70); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	clips := mp.Clips()
	if len(clips) != 1 || len(started) != 1 {
		t.Fatalf("clips = %d, callbacks = %d", len(clips), len(started))
	}
	if clips[0].Volume != 70 || clips[0].Duration != 100*time.Millisecond || clips[0].Interrupted {
		t.Errorf("clip = %+v", clips[0])
	}
}

func TestMockPlayer_Interrupt(t *testing.T) {
	mp := NewMockPlayer()
	mp.SetDelayFactor(100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mp.Play(ctx, make([]byte, 88200), 50) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Play() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	if clips := mp.Clips(); !clips[0].Interrupted {
		t.Error("clip not marked interrupted")
	}
}

func TestMockPlayer_Errors(t *testing.T) {
	mp := NewMockPlayer()

	if err := mp.Play(context.Background(), nil, 50); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("empty = %v", err)
	}

	boom := errors.New("device lost")
	mp.SetError(boom)
	if err := mp.Play(context.Background(), []byte{1, 2}, 50); !errors.Is(err, boom) {
		t.Errorf("SetError = %v", err)
	}

	mp.SetError(nil)
	_ = mp.Close()
	if err := mp.Play(context.Background(), []byte{1, 2}, 50); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("closed = %v", err)
	}
}
