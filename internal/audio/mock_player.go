package audio

import (
	"context"
	"sync"
	"time"
)

// MockPlayer simulates playback without producing sound. Each clip takes
// its PCM duration scaled by the delay factor.
type MockPlayer struct {
	config PlayerConfig

	mu          sync.Mutex
	clips       []MockClip
	delayFactor float64
	err         error
	closed      bool

	// OnPlay is called when a clip starts.
	OnPlay func(MockClip)
}

// MockClip records one Play call.
type MockClip struct {
	Size        int
	Volume      int
	Duration    time.Duration
	Interrupted bool
}

// NewMockPlayer creates a mock that plays instantly.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{config: DefaultPlayerConfig()}
}

// SetDelayFactor makes each clip last factor times its real duration.
func (mp *MockPlayer) SetDelayFactor(factor float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = factor
}

// SetError makes every following Play fail with err.
func (mp *MockPlayer) SetError(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.err = err
}

// Play implements Player.
func (mp *MockPlayer) Play(ctx context.Context, pcm []byte, volume int) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	mp.mu.Lock()
	if mp.closed {
		mp.mu.Unlock()
		return ErrPlayerClosed
	}
	if mp.err != nil {
		err := mp.err
		mp.mu.Unlock()
		return err
	}
	clip := MockClip{Size: len(pcm), Volume: volume, Duration: mp.config.Duration(len(pcm))}
	wait := time.Duration(float64(clip.Duration) * mp.delayFactor)
	idx := len(mp.clips)
	mp.clips = append(mp.clips, clip)
	onPlay := mp.OnPlay
	mp.mu.Unlock()

	if onPlay != nil {
		onPlay(clip)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		mp.mu.Lock()
		mp.clips[idx].Interrupted = true
		mp.mu.Unlock()
		return ctx.Err()
	}
}

// Close implements Player.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.closed = true
	return nil
}

// Clips returns every clip played so far.
func (mp *MockPlayer) Clips() []MockClip {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]MockClip(nil), mp.clips...)
}
