package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// StartIndex is the 0-based headline to start reading once the list has
	// loaded; negative to wait for the user.
	StartIndex int

	// For debugging the UI
	GlamourEnabled bool `env:"WXC_TTS_ENABLE_GLAMOUR" envDefault:"true"`
	ShowCaptions   bool `env:"WXC_TTS_CAPTIONS"       envDefault:"true"`
}
