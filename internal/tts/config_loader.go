package tts

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfigFromViper loads the playback configuration from v. Keys that
// are not set keep their defaults.
func LoadConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	// Language handling
	if v.IsSet("languages") {
		cfg.Languages = v.GetStringSlice("languages")
	}
	if v.IsSet("default_language") {
		cfg.DefaultLanguage = v.GetString("default_language")
	}
	if v.IsSet("fallback_language") {
		cfg.FallbackLanguage = v.GetString("fallback_language")
	}
	if v.IsSet("language") {
		cfg.Language = v.GetString("language")
	}
	if v.IsSet("confidence_threshold") {
		cfg.ConfidenceThreshold = v.GetFloat64("confidence_threshold")
	}
	if v.IsSet("auto_detect") {
		cfg.AutoDetect = v.GetBool("auto_detect")
	}

	// Playback
	if v.IsSet("auto_continue") {
		cfg.AutoContinue = v.GetBool("auto_continue")
	}
	if v.IsSet("char_limit") {
		cfg.CharLimit = v.GetInt("char_limit")
	}
	if v.IsSet("volume") {
		cfg.Volume = v.GetInt("volume")
	}
	if v.IsSet("volume_step") {
		cfg.VolumeStep = v.GetInt("volume_step")
	}
	if v.IsSet("cue_prefix") {
		cfg.CuePrefix = v.GetString("cue_prefix")
	}
	if v.IsSet("cue_delay") {
		cfg.CueDelay = v.GetDuration("cue_delay")
	}
	if v.IsSet("stop_timeout") {
		cfg.StopTimeout = v.GetDuration("stop_timeout")
	}
	if v.IsSet("engine") {
		cfg.Engine = EngineType(v.GetString("engine"))
	}

	cfg.GTTS = loadGTTSConfig(v)
	cfg.Espeak = loadEspeakConfig(v)
	cfg.News = loadNewsConfig(v)

	cache, err := loadCacheConfig(v)
	if err != nil {
		return cfg, err
	}
	cfg.Cache = cache

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadGTTSConfig(v *viper.Viper) GTTSConfig {
	cfg := DefaultGTTSConfig()

	if v.IsSet("gtts.slow") {
		cfg.Slow = v.GetBool("gtts.slow")
	}
	if v.IsSet("gtts.tld") {
		cfg.TLD = v.GetString("gtts.tld")
	}
	if v.IsSet("gtts.requests_per_second") {
		cfg.RequestsPerSecond = v.GetFloat64("gtts.requests_per_second")
	}
	if v.IsSet("gtts.timeout") {
		cfg.Timeout = v.GetDuration("gtts.timeout")
	}
	if v.IsSet("gtts.fallback_after") {
		cfg.FallbackAfter = v.GetInt("gtts.fallback_after")
	}

	return cfg
}

func loadEspeakConfig(v *viper.Viper) EspeakConfig {
	cfg := DefaultEspeakConfig()

	if v.IsSet("espeak.binary") {
		cfg.Binary = v.GetString("espeak.binary")
	}
	if v.IsSet("espeak.voices") {
		for tag, voice := range v.GetStringMapString("espeak.voices") {
			cfg.Voices[tag] = voice
		}
	}
	if v.IsSet("espeak.speed") {
		cfg.Speed = v.GetInt("espeak.speed")
	}
	if v.IsSet("espeak.timeout") {
		cfg.Timeout = v.GetDuration("espeak.timeout")
	}

	return cfg
}

func loadCacheConfig(v *viper.Viper) (CacheConfig, error) {
	cfg := DefaultCacheConfig()

	if v.IsSet("cache.enabled") {
		cfg.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		dir, err := homedir.Expand(v.GetString("cache.dir"))
		if err != nil {
			return cfg, fmt.Errorf("cache.dir: %w", err)
		}
		cfg.Dir = dir
	}
	if v.IsSet("cache.memory_mb") {
		cfg.MemoryMB = v.GetInt64("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		cfg.DiskMB = v.GetInt64("cache.disk_mb")
	}
	if v.IsSet("cache.max_age") {
		cfg.MaxAge = v.GetDuration("cache.max_age")
	}
	if v.IsSet("cache.compress") {
		cfg.Compress = v.GetBool("cache.compress")
	}

	return cfg, nil
}

func loadNewsConfig(v *viper.Viper) NewsConfig {
	cfg := DefaultNewsConfig()

	if v.IsSet("news.home_url") {
		cfg.HomeURL = v.GetString("news.home_url")
	}
	if v.IsSet("news.selector") {
		cfg.Selector = v.GetString("news.selector")
	}
	if v.IsSet("news.user_agent") {
		cfg.UserAgent = v.GetString("news.user_agent")
	}
	if v.IsSet("news.marker") {
		cfg.Marker = v.GetString("news.marker")
	}
	if v.IsSet("news.marker_skip") {
		cfg.MarkerSkip = v.GetInt("news.marker_skip")
	}
	if v.IsSet("news.timeout") {
		cfg.Timeout = v.GetDuration("news.timeout")
	}
	if v.IsSet("news.requests_per_second") {
		cfg.RequestsPerSecond = v.GetFloat64("news.requests_per_second")
	}

	return cfg
}

// SetDefaults registers the default configuration with v so that every key
// is known to viper (and thus to environment binding).
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("languages", d.Languages)
	v.SetDefault("default_language", d.DefaultLanguage)
	v.SetDefault("fallback_language", d.FallbackLanguage)
	v.SetDefault("language", d.Language)
	v.SetDefault("confidence_threshold", d.ConfidenceThreshold)
	v.SetDefault("auto_detect", d.AutoDetect)
	v.SetDefault("auto_continue", d.AutoContinue)
	v.SetDefault("char_limit", d.CharLimit)
	v.SetDefault("volume", d.Volume)
	v.SetDefault("volume_step", d.VolumeStep)
	v.SetDefault("cue_prefix", d.CuePrefix)
	v.SetDefault("cue_delay", d.CueDelay)
	v.SetDefault("stop_timeout", d.StopTimeout)
	v.SetDefault("engine", string(d.Engine))

	v.SetDefault("gtts.slow", d.GTTS.Slow)
	v.SetDefault("gtts.tld", d.GTTS.TLD)
	v.SetDefault("gtts.requests_per_second", d.GTTS.RequestsPerSecond)
	v.SetDefault("gtts.timeout", d.GTTS.Timeout)
	v.SetDefault("gtts.fallback_after", d.GTTS.FallbackAfter)

	v.SetDefault("espeak.binary", d.Espeak.Binary)
	v.SetDefault("espeak.speed", d.Espeak.Speed)
	v.SetDefault("espeak.timeout", d.Espeak.Timeout)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)
	v.SetDefault("cache.compress", d.Cache.Compress)

	v.SetDefault("news.home_url", d.News.HomeURL)
	v.SetDefault("news.selector", d.News.Selector)
	v.SetDefault("news.user_agent", d.News.UserAgent)
	v.SetDefault("news.marker", d.News.Marker)
	v.SetDefault("news.marker_skip", d.News.MarkerSkip)
	v.SetDefault("news.timeout", d.News.Timeout)
	v.SetDefault("news.requests_per_second", d.News.RequestsPerSecond)
}

// LoadConfigFile reads a single YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	SetDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("reading %s: %w", path, err)
	}
	return LoadConfigFromViper(v)
}
