package tts

import (
	"fmt"
	"slices"
	"time"

	"github.com/coder6688/wenxuecity-tts/internal/lang"
)

// Config contains the playback configuration.
type Config struct {
	// Language handling
	Languages           []string `yaml:"languages"`
	DefaultLanguage     string   `yaml:"default_language"`
	FallbackLanguage    string   `yaml:"fallback_language"`
	Language            string   `yaml:"language"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	AutoDetect          bool     `yaml:"auto_detect"`

	// Playback
	AutoContinue bool          `yaml:"auto_continue"`
	CharLimit    int           `yaml:"char_limit"`
	Volume       int           `yaml:"volume"`
	VolumeStep   int           `yaml:"volume_step"`
	CuePrefix    string        `yaml:"cue_prefix"`
	CueDelay     time.Duration `yaml:"cue_delay"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`

	Engine EngineType `yaml:"engine"`

	GTTS   GTTSConfig   `yaml:"gtts"`
	Espeak EspeakConfig `yaml:"espeak"`
	Cache  CacheConfig  `yaml:"cache"`
	News   NewsConfig   `yaml:"news"`
}

// GTTSConfig contains gTTS engine settings.
type GTTSConfig struct {
	Slow              bool          `yaml:"slow"`
	TLD               string        `yaml:"tld"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`

	// FallbackAfter switches to espeak-ng after this many consecutive
	// failures. 0 never falls back.
	FallbackAfter int `yaml:"fallback_after"`
}

// EspeakConfig contains espeak-ng engine settings.
type EspeakConfig struct {
	Binary string `yaml:"binary"`

	// Voices maps a language tag to an espeak-ng voice name.
	Voices  map[string]string `yaml:"voices"`
	Speed   int               `yaml:"speed"`
	Timeout time.Duration     `yaml:"timeout"`
}

// CacheConfig contains synthesized audio cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	MemoryMB int64         `yaml:"memory_mb"`
	DiskMB   int64         `yaml:"disk_mb"`
	MaxAge   time.Duration `yaml:"max_age"`
	Compress bool          `yaml:"compress"`
}

// NewsConfig contains content source settings.
type NewsConfig struct {
	HomeURL           string        `yaml:"home_url"`
	Selector          string        `yaml:"selector"`
	UserAgent         string        `yaml:"user_agent"`
	Marker            string        `yaml:"marker"`
	MarkerSkip        int           `yaml:"marker_skip"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Languages:           []string{"en", "zh-cn"},
		DefaultLanguage:     "zh-cn",
		FallbackLanguage:    lang.DefaultFallback,
		ConfidenceThreshold: lang.DefaultThreshold,
		AutoDetect:          true,

		AutoContinue: true,
		CharLimit:    500,
		Volume:       80,
		VolumeStep:   10,
		CuePrefix:    "Next: ",
		CueDelay:     500 * time.Millisecond,
		StopTimeout:  2 * time.Second,

		Engine: EngineGoogle,

		GTTS:   DefaultGTTSConfig(),
		Espeak: DefaultEspeakConfig(),
		Cache:  DefaultCacheConfig(),
		News:   DefaultNewsConfig(),
	}
}

// DefaultGTTSConfig returns default gTTS configuration.
func DefaultGTTSConfig() GTTSConfig {
	return GTTSConfig{
		TLD:               "com",
		RequestsPerSecond: 2,
		Timeout:           30 * time.Second,
		FallbackAfter:     3,
	}
}

// DefaultEspeakConfig returns default espeak-ng configuration.
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{
		Binary: "espeak-ng",
		Voices: map[string]string{
			"en":    "en-us",
			"zh-cn": "cmn",
		},
		Speed:   160,
		Timeout: 60 * time.Second,
	}
}

// DefaultCacheConfig returns default audio cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  true,
		MemoryMB: 64,
		DiskMB:   512,
		MaxAge:   7 * 24 * time.Hour,
		Compress: true,
	}
}

// DefaultNewsConfig returns default content source configuration.
func DefaultNewsConfig() NewsConfig {
	return NewsConfig{
		HomeURL:           "https://www.wenxuecity.com/",
		Selector:          `div.maincontent a[href^="/news/"][href$=".html"]`,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Marker:            "被阅读次数",
		MarkerSkip:        8,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 1,
	}
}

// Validate checks if the configuration is valid. Language tags are
// normalized in place.
func (c *Config) Validate() error {
	if len(c.Languages) == 0 {
		return fmt.Errorf("%w: languages must not be empty", ErrInvalidConfig)
	}
	for i, l := range c.Languages {
		c.Languages[i] = lang.Normalize(l)
	}
	c.DefaultLanguage = lang.Normalize(c.DefaultLanguage)
	c.FallbackLanguage = lang.Normalize(c.FallbackLanguage)
	c.Language = lang.Normalize(c.Language)

	if !slices.Contains(c.Languages, c.DefaultLanguage) {
		return fmt.Errorf("%w: default_language %q is not one of %v", ErrInvalidConfig, c.DefaultLanguage, c.Languages)
	}
	if c.FallbackLanguage == "" {
		return fmt.Errorf("%w: fallback_language must not be empty", ErrInvalidConfig)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in (0, 1], got %v", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.Volume < MinVolume || c.Volume > MaxVolume {
		return fmt.Errorf("%w: volume must be between %d and %d, got %d", ErrInvalidConfig, MinVolume, MaxVolume, c.Volume)
	}
	if c.VolumeStep < 1 || c.VolumeStep > MaxVolume {
		return fmt.Errorf("%w: volume_step must be between 1 and %d, got %d", ErrInvalidConfig, MaxVolume, c.VolumeStep)
	}
	if c.CharLimit < 0 {
		return fmt.Errorf("%w: char_limit must not be negative", ErrInvalidConfig)
	}
	if c.CueDelay < 0 {
		return fmt.Errorf("%w: cue_delay must not be negative", ErrInvalidConfig)
	}
	if c.GTTS.FallbackAfter < 0 {
		return fmt.Errorf("%w: gtts.fallback_after must not be negative", ErrInvalidConfig)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("%w: stop_timeout must be positive", ErrInvalidConfig)
	}
	switch c.Engine {
	case EngineGoogle, EngineEspeak, EngineNone:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEngine, c.Engine)
	}
	return nil
}

// Policy returns the language restriction described by the configuration.
func (c Config) Policy() AllowlistPolicy {
	return NewAllowlistPolicy(c.Languages, c.DefaultLanguage)
}

// InitialLanguage is the language a session starts in before the first
// segment is classified.
func (c Config) InitialLanguage() string {
	if c.Language != "" {
		return c.Language
	}
	return c.FallbackLanguage
}
