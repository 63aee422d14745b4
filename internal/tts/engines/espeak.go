package engines

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// EspeakEngine speaks through espeak-ng, which plays to the audio device
// itself. It works offline.
type EspeakEngine struct {
	config tts.EspeakConfig
	logger *log.Logger
}

// NewEspeakEngine creates an espeak-ng synthesizer.
func NewEspeakEngine(config tts.EspeakConfig) *EspeakEngine {
	def := tts.DefaultEspeakConfig()
	if config.Binary == "" {
		config.Binary = def.Binary
	}
	if config.Voices == nil {
		config.Voices = def.Voices
	}
	if config.Speed <= 0 {
		config.Speed = def.Speed
	}
	return &EspeakEngine{config: config, logger: log.WithPrefix("espeak")}
}

// Voice returns the espeak-ng voice for a language tag. Tags without a
// mapping are passed through, since most are valid voice names.
func (e *EspeakEngine) Voice(language string) string {
	if v, ok := e.config.Voices[language]; ok {
		return v
	}
	return language
}

// Speak implements tts.Synthesizer. It returns once espeak-ng has finished
// playing, or after interrupting it when ctx is done.
func (e *EspeakEngine) Speak(ctx context.Context, text, language string, volume int) error {
	args := []string{
		"-v", e.Voice(language),
		"-s", strconv.Itoa(e.config.Speed),
		"-a", strconv.Itoa(amplitude(volume)),
		"--stdin",
	}
	if _, err := runCommand(ctx, e.config.Timeout, []byte(text), e.config.Binary, args...); err != nil {
		return err
	}
	e.logger.Debug("spoken", "voice", e.Voice(language), "volume", volume)
	return nil
}

// Validate checks that espeak-ng is installed.
func (e *EspeakEngine) Validate() error {
	if _, err := exec.LookPath(e.config.Binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", e.config.Binary, err)
	}
	return nil
}

// amplitude maps a volume in [0, 100] onto espeak-ng's 0-200 range, where
// 100 is the program default.
func amplitude(volume int) int {
	switch {
	case volume <= 0:
		return 0
	case volume >= 100:
		return 200
	default:
		return volume * 2
	}
}
