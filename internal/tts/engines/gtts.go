package engines

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/coder6688/wenxuecity-tts/internal/audio"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

const (
	// Google rejects longer requests.
	maxTextSize = 5000

	// ffmpeg output above this is treated as a runaway conversion.
	maxPCMSize = 20 << 20
)

// GTTSEngine renders speech with gtts-cli (Google Translate TTS) and
// converts the MP3 to PCM with ffmpeg. It needs network access.
type GTTSEngine struct {
	config tts.GTTSConfig
	format audio.PlayerConfig
	logger *log.Logger

	gttsBinary   string
	ffmpegBinary string

	limiter *rate.Limiter
}

// GTTSOption configures a GTTSEngine.
type GTTSOption func(*GTTSEngine)

// WithBinaries overrides the gtts-cli and ffmpeg executables.
func WithBinaries(gtts, ffmpeg string) GTTSOption {
	return func(e *GTTSEngine) {
		e.gttsBinary = gtts
		e.ffmpegBinary = ffmpeg
	}
}

// WithFormat sets the PCM format ffmpeg produces.
func WithFormat(format audio.PlayerConfig) GTTSOption {
	return func(e *GTTSEngine) {
		e.format = format
	}
}

// NewGTTSEngine creates a gTTS renderer.
func NewGTTSEngine(config tts.GTTSConfig, opts ...GTTSOption) *GTTSEngine {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = tts.DefaultGTTSConfig().RequestsPerSecond
	}
	if config.TLD == "" {
		config.TLD = "com"
	}

	e := &GTTSEngine{
		config:       config,
		format:       audio.DefaultPlayerConfig(),
		logger:       log.WithPrefix("gtts"),
		gttsBinary:   "gtts-cli",
		ffmpegBinary: "ffmpeg",
		limiter:      rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Renderer.
func (e *GTTSEngine) Name() string { return string(tts.EngineGoogle) }

// Voice implements Renderer. gTTS picks the voice from the language and the
// Google domain.
func (e *GTTSEngine) Voice(language string) string {
	voice := e.config.TLD
	if e.config.Slow {
		voice += "/slow"
	}
	return voice
}

// Render implements Renderer: text → gtts-cli → MP3 → ffmpeg → PCM.
func (e *GTTSEngine) Render(ctx context.Context, text, language string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > maxTextSize {
		return nil, fmt.Errorf("text too long: %d bytes (max %d)", len(text), maxTextSize)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	start := time.Now()
	mp3, err := e.synthesizeToMP3(ctx, text, language)
	if err != nil {
		return nil, err
	}
	pcm, err := e.convertMP3ToPCM(ctx, mp3)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("rendered", "lang", language, "runes", len([]rune(text)), "bytes", len(pcm), "took", time.Since(start))
	return pcm, nil
}

func (e *GTTSEngine) synthesizeToMP3(ctx context.Context, text, language string) ([]byte, error) {
	args := []string{"--lang", language, "--tld", e.config.TLD}
	if e.config.Slow {
		args = append(args, "--slow")
	}
	// Text comes from stdin so it can never be mistaken for a flag.
	args = append(args, "--output", "-", "-")

	mp3, err := runCommand(ctx, e.config.Timeout, []byte(text), e.gttsBinary, args...)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}
	if len(mp3) == 0 {
		return nil, errors.New("gtts-cli produced no MP3 output")
	}
	return mp3, nil
}

func (e *GTTSEngine) convertMP3ToPCM(ctx context.Context, mp3 []byte) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.format.SampleRate),
		"-ac", strconv.Itoa(e.format.Channels),
		"pipe:1",
	}

	pcm, err := runCommand(ctx, e.config.Timeout, mp3, e.ffmpegBinary, args...)
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("ffmpeg produced no PCM output")
	}
	if len(pcm) > maxPCMSize {
		return nil, fmt.Errorf("ffmpeg PCM output too large: %d bytes (max %d)", len(pcm), maxPCMSize)
	}
	return pcm, nil
}

// Validate checks that gtts-cli and ffmpeg are installed.
func (e *GTTSEngine) Validate() error {
	if _, err := exec.LookPath(e.gttsBinary); err != nil {
		return fmt.Errorf("gtts-cli not found in PATH: %w\n\nInstall with: pip install gtts", err)
	}
	if _, err := exec.LookPath(e.ffmpegBinary); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w\n\nInstall ffmpeg for audio conversion", err)
	}
	return nil
}
