package tts

import (
	"fmt"
	"os/exec"
	"strings"
)

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string
}

// ValidateEngineSelection resolves the engine from the CLI argument, falling
// back to the configuration. Returns ErrNoEngineConfigured if neither names
// one.
func ValidateEngineSelection(cliArg string, config Config) (EngineType, error) {
	engineType := strings.ToLower(strings.TrimSpace(cliArg))
	if engineType == "" {
		engineType = string(config.Engine)
	}

	switch engineType {
	case "":
		return EngineNone, fmt.Errorf("%w\n\nOr set a default in wxc-tts.yml:\n  engine: gtts  # or \"espeak\"", ErrNoEngineConfigured)
	case "gtts", "google":
		return EngineGoogle, nil
	case "espeak", "espeak-ng":
		return EngineEspeak, nil
	default:
		return EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - gtts (Google TTS, online)\n  - espeak (espeak-ng, offline)", ErrInvalidEngine, engineType)
	}
}

// ValidateEngine checks that the binaries an engine needs are installed.
func ValidateEngine(engineType EngineType, config Config) *ValidationResult {
	result := &ValidationResult{
		Engine:  engineType,
		Details: make(map[string]string),
	}

	switch engineType {
	case EngineGoogle:
		return validateGoogleEngine(config.GTTS, result)
	case EngineEspeak:
		return validateEspeakEngine(config.Espeak, result)
	case EngineNone:
		result.Error = ErrNoEngineConfigured
		result.Guidance = "Please specify a TTS engine with --engine or in the config file"
	default:
		result.Error = fmt.Errorf("%w: %s", ErrInvalidEngine, engineType)
		result.Guidance = "Supported engines: gtts, espeak"
	}
	return result
}

func validateGoogleEngine(config GTTSConfig, result *ValidationResult) *ValidationResult {
	result.Details["engine"] = "Google TTS (gTTS)"

	gttsPath, err := exec.LookPath("gtts-cli")
	if err != nil {
		result.Error = fmt.Errorf("gTTS not found in PATH: %w", err)
		result.Guidance = buildGTTSInstallGuidance()
		return result
	}
	result.Details["gtts_path"] = gttsPath

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		result.Error = fmt.Errorf("ffmpeg not found in PATH: %w", err)
		result.Guidance = buildFFmpegInstallGuidance()
		return result
	}
	result.Details["ffmpeg_path"] = ffmpegPath

	if config.Slow {
		result.Details["speed"] = "slow"
	} else {
		result.Details["speed"] = "normal"
	}
	result.Details["tld"] = config.TLD

	result.Available = true
	result.Details["status"] = "Ready (synthesis requires network access)"
	return result
}

func validateEspeakEngine(config EspeakConfig, result *ValidationResult) *ValidationResult {
	result.Details["engine"] = "espeak-ng"

	binary := config.Binary
	if binary == "" {
		binary = "espeak-ng"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH: %w", binary, err)
		result.Guidance = buildEspeakInstallGuidance()
		return result
	}
	result.Details["espeak_path"] = path

	for tag, voice := range config.Voices {
		result.Details["voice_"+tag] = voice
	}

	result.Available = true
	result.Details["status"] = "Ready"
	return result
}

func buildGTTSInstallGuidance() string {
	return `gTTS (Google Text-to-Speech) is not installed. To install:

1. Install via pip:
   pip install gtts

   # Or with pipx (recommended):
   pipx install gtts

2. Verify installation:
   gtts-cli --help

Note: gTTS requires an internet connection to function.`
}

func buildFFmpegInstallGuidance() string {
	return `ffmpeg is required for gTTS audio conversion. To install:

# Ubuntu/Debian
sudo apt update && sudo apt install ffmpeg

# macOS (Homebrew)
brew install ffmpeg

# Arch Linux
sudo pacman -S ffmpeg`
}

func buildEspeakInstallGuidance() string {
	return `espeak-ng is not installed. To install:

# Ubuntu/Debian
sudo apt install espeak-ng

# macOS (Homebrew)
brew install espeak-ng

# Arch Linux
sudo pacman -S espeak-ng`
}
