package engines

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/coder6688/wenxuecity-tts/internal/audio"
	"github.com/coder6688/wenxuecity-tts/internal/cache"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// Renderer turns text into PCM in the audio package's format.
type Renderer interface {
	Name() string
	Voice(language string) string
	Render(ctx context.Context, text, language string) ([]byte, error)
}

// ClipCache stores rendered clips by cache.Key.
type ClipCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Speaker renders a segment, consulting the clip cache first, and plays
// it. Volume is applied at playback so cached clips are volume-independent.
type Speaker struct {
	renderer Renderer
	player   audio.Player
	clips    ClipCache
	logger   *log.Logger
}

// NewSpeaker creates a Speaker. clips may be nil.
func NewSpeaker(renderer Renderer, player audio.Player, clips ClipCache) *Speaker {
	return &Speaker{
		renderer: renderer,
		player:   player,
		clips:    clips,
		logger:   log.WithPrefix(renderer.Name()),
	}
}

// Speak implements tts.Synthesizer.
func (s *Speaker) Speak(ctx context.Context, text, language string, volume int) error {
	pcm, err := s.render(ctx, text, language)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, pcm, volume)
}

func (s *Speaker) render(ctx context.Context, text, language string) ([]byte, error) {
	if s.clips == nil {
		return s.renderer.Render(ctx, text, language)
	}

	key := cache.Key(s.renderer.Name(), s.renderer.Voice(language), language, text)
	if pcm, ok := s.clips.Get(key); ok {
		return pcm, nil
	}

	pcm, err := s.renderer.Render(ctx, text, language)
	if err != nil {
		return nil, err
	}
	if err := s.clips.Put(key, pcm); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
		s.logger.Warn("caching clip failed", "err", err)
	}
	return pcm, nil
}

// New builds the synthesizer for engine. player and clips are used by
// engines that render PCM; clips may be nil.
func New(engine tts.EngineType, cfg tts.Config, player audio.Player, clips ClipCache) (tts.Synthesizer, error) {
	switch engine {
	case tts.EngineGoogle:
		if player == nil {
			return nil, fmt.Errorf("%w: %s needs an audio player", tts.ErrInvalidConfig, engine)
		}
		speaker := NewSpeaker(NewGTTSEngine(cfg.GTTS), player, clips)
		if cfg.GTTS.FallbackAfter <= 0 {
			return speaker, nil
		}
		espeak := NewEspeakEngine(cfg.Espeak)
		if err := espeak.Validate(); err != nil {
			log.Debug("no fallback engine", "err", err)
			return speaker, nil
		}
		return NewFallback(speaker, espeak, cfg.GTTS.FallbackAfter), nil
	case tts.EngineEspeak:
		return NewEspeakEngine(cfg.Espeak), nil
	case tts.EngineNone:
		return nil, tts.ErrNoEngineConfigured
	default:
		return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, engine)
	}
}

var (
	_ tts.Synthesizer = (*Speaker)(nil)
	_ tts.Synthesizer = (*EspeakEngine)(nil)
	_ tts.Synthesizer = (*Fallback)(nil)
	_ Renderer        = (*GTTSEngine)(nil)
	_ ClipCache       = (*cache.Manager)(nil)
)
