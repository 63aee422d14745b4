package tts

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if !reflect.DeepEqual(cfg.Languages, []string{"en", "zh-cn"}) {
		t.Errorf("Languages = %v", cfg.Languages)
	}
	if cfg.DefaultLanguage != "zh-cn" || cfg.FallbackLanguage != "en" {
		t.Errorf("default/fallback = %q/%q", cfg.DefaultLanguage, cfg.FallbackLanguage)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.Volume != 80 || cfg.VolumeStep != 10 || cfg.CharLimit != 500 {
		t.Errorf("volume/step/limit = %d/%d/%d", cfg.Volume, cfg.VolumeStep, cfg.CharLimit)
	}
	if !cfg.AutoContinue || !cfg.AutoDetect {
		t.Error("auto-continue and auto-detect should default to on")
	}
	if cfg.StopTimeout != 2*time.Second || cfg.CueDelay != 500*time.Millisecond {
		t.Errorf("timeouts = %v/%v", cfg.StopTimeout, cfg.CueDelay)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"Valid", func(*Config) {}, nil},
		{"No languages", func(c *Config) { c.Languages = nil }, ErrInvalidConfig},
		{"Default not allowed", func(c *Config) { c.DefaultLanguage = "fr" }, ErrInvalidConfig},
		{"Threshold zero", func(c *Config) { c.ConfidenceThreshold = 0 }, ErrInvalidConfig},
		{"Threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }, ErrInvalidConfig},
		{"Volume too high", func(c *Config) { c.Volume = 101 }, ErrInvalidConfig},
		{"Volume negative", func(c *Config) { c.Volume = -1 }, ErrInvalidConfig},
		{"Step zero", func(c *Config) { c.VolumeStep = 0 }, ErrInvalidConfig},
		{"Negative limit", func(c *Config) { c.CharLimit = -1 }, ErrInvalidConfig},
		{"Zero stop timeout", func(c *Config) { c.StopTimeout = 0 }, ErrInvalidConfig},
		{"Unknown engine", func(c *Config) { c.Engine = "piper" }, ErrInvalidEngine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Languages = []string{"EN-us", "zh"}
	cfg.DefaultLanguage = "zh-CN"
	cfg.Language = "ZH_TW"

	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"en", "zh-cn"}) {
		t.Errorf("Languages = %v", cfg.Languages)
	}
	if cfg.DefaultLanguage != "zh-cn" || cfg.Language != "zh-cn" {
		t.Errorf("DefaultLanguage = %q, Language = %q", cfg.DefaultLanguage, cfg.Language)
	}
	if got := cfg.InitialLanguage(); got != "zh-cn" {
		t.Errorf("InitialLanguage() = %q", got)
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	v := viper.New()
	v.Set("languages", []string{"en", "zh-cn", "ja"})
	v.Set("volume", 55)
	v.Set("auto_continue", false)
	v.Set("cue_delay", "1s")
	v.Set("engine", "espeak")
	v.Set("espeak.voices", map[string]string{"ja": "ja"})
	v.Set("news.marker_skip", 4)
	v.Set("cache.dir", "/tmp/wxc-cache")

	cfg, err := LoadConfigFromViper(v)
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}

	if len(cfg.Languages) != 3 || cfg.Volume != 55 || cfg.AutoContinue {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.CueDelay != time.Second {
		t.Errorf("CueDelay = %v", cfg.CueDelay)
	}
	if cfg.Engine != EngineEspeak {
		t.Errorf("Engine = %q", cfg.Engine)
	}
	if cfg.Espeak.Voices["ja"] != "ja" || cfg.Espeak.Voices["en"] != "en-us" {
		t.Errorf("Voices = %v", cfg.Espeak.Voices)
	}
	if cfg.News.MarkerSkip != 4 || cfg.News.Marker != "被阅读次数" {
		t.Errorf("News = %+v", cfg.News)
	}
	if cfg.Cache.Dir != "/tmp/wxc-cache" {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
	// Unset keys keep defaults.
	if cfg.VolumeStep != 10 || cfg.StopTimeout != 2*time.Second {
		t.Errorf("defaults lost: step %d, timeout %v", cfg.VolumeStep, cfg.StopTimeout)
	}
}

func TestLoadConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("volume", 300)

	if _, err := LoadConfigFromViper(v); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfigFromViper() = %v, want ErrInvalidConfig", err)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadConfigFromViper(v)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("defaults round trip differs:\n got %+v\nwant %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxc-tts.yml")
	data := "volume: 30\nauto_detect: false\nlanguage: en\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if cfg.Volume != 30 || cfg.AutoDetect || cfg.Language != "en" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxc-tts.yml")
	if err := os.WriteFile(path, []byte("volume: 40\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	changes := make(chan [2]Config, 4)
	w, err := NewConfigWatcher(path, func(old, new Config) {
		changes <- [2]Config{old, new}
	}, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.Current().Volume != 40 {
		t.Fatalf("initial Volume = %d", w.Current().Volume)
	}

	if err := os.WriteFile(path, []byte("volume: 60\nauto_continue: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c[0].Volume != 40 || c[1].Volume != 60 || c[1].AutoContinue {
			t.Errorf("unexpected change old=%d new=%d auto=%v", c[0].Volume, c[1].Volume, c[1].AutoContinue)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	// An invalid file keeps the previous configuration.
	if err := os.WriteFile(path, []byte("volume: 999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := w.Current().Volume; got != 60 {
		t.Errorf("Current().Volume = %d after invalid write, want 60", got)
	}

	w.Stop()
	w.Stop()
}
