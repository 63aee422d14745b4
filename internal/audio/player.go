package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player plays a PCM clip at a volume in [0, 100] and returns when playback
// has finished or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []byte, volume int) error
	Close() error
}

// ErrPlayerClosed is returned by Play after Close.
var ErrPlayerClosed = errors.New("player is closed")

// ErrEmptyAudio is returned when there is nothing to play.
var ErrEmptyAudio = errors.New("audio data is empty")

// PlayerConfig describes the PCM format the device is opened with.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // bytes

	// PollInterval is how often playback progress is checked.
	PollInterval time.Duration
}

// DefaultPlayerConfig returns the format produced by the synthesis engines.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:   44100,
		Channels:     1,
		BitDepth:     16,
		BufferSize:   4096,
		PollInterval: 10 * time.Millisecond,
	}
}

// Duration returns the playing time of n bytes of PCM in this format.
func (c PlayerConfig) Duration(n int) time.Duration {
	frame := c.Channels * c.BitDepth / 8
	if frame <= 0 || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(n/frame) * time.Second / time.Duration(c.SampleRate)
}

func validateConfig(config PlayerConfig) error {
	// oto only handles these rates reliably.
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext(config PlayerConfig) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
		}
	})
	return otoCtx, otoErr
}

// OtoPlayer plays clips on the system audio device, one at a time.
type OtoPlayer struct {
	config  PlayerConfig
	context *oto.Context

	// mu serializes clips; a second Play waits for the first.
	mu     sync.Mutex
	closed atomic.Bool

	plays atomic.Int64
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*OtoPlayer, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPlayerConfig().PollInterval
	}

	ctx, err := sharedContext(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	return &OtoPlayer{config: config, context: ctx}, nil
}

// Play implements Player. When ctx is cancelled the clip is cut off and
// ctx.Err() is returned.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte, volume int) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrPlayerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The reader keeps pcm referenced until the oto player is closed.
	player := p.context.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()

	player.SetVolume(Gain(volume))
	player.Play()
	p.plays.Add(1)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Close releases the player. The shared device stays open for the process.
func (p *OtoPlayer) Close() error {
	p.closed.Store(true)
	return nil
}

// Plays returns the number of clips started.
func (p *OtoPlayer) Plays() int64 {
	return p.plays.Load()
}

// Config returns the device format.
func (p *OtoPlayer) Config() PlayerConfig {
	return p.config
}

// Gain converts a volume in [0, 100] into an oto gain.
func Gain(volume int) float64 {
	switch {
	case volume <= 0:
		return 0
	case volume >= 100:
		return 1
	default:
		return float64(volume) / 100
	}
}
