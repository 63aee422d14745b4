// Package main provides the entry point for the wxc-tts CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/coder6688/wenxuecity-tts/internal/audio"
	"github.com/coder6688/wenxuecity-tts/internal/cache"
	"github.com/coder6688/wenxuecity-tts/internal/news"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
	"github.com/coder6688/wenxuecity-tts/internal/tts/engines"
	"github.com/coder6688/wenxuecity-tts/ui"
)

const appName = "wxc-tts"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	engineFlag string
	newsIndex  int
	style      string
	width      uint
	mouse      bool

	rootCmd = &cobra.Command{
		Use:   appName,
		Short: "Listen to the news, read aloud",
		Long: paragraph(
			fmt.Sprintf("\nBrowse %s headlines and have them %s, one article after another.",
				keyword("wenxuecity"), keyword("read aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	style = viper.GetString("style")

	if newsIndex < 0 {
		return fmt.Errorf("--news must be positive, got %d", newsIndex)
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = styles.NoTTYStyle
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// loadConfig reads the playback configuration and resolves the engine,
// with the --engine flag taking precedence over the file.
func loadConfig() (tts.Config, error) {
	cfg, err := tts.LoadConfigFromViper(viper.GetViper())
	if err != nil {
		return cfg, err
	}

	engine, err := tts.ValidateEngineSelection(engineFlag, cfg)
	if err != nil {
		return cfg, err
	}
	if result := tts.ValidateEngine(engine, cfg); !result.Available {
		return cfg, fmt.Errorf("%w\n\n%s", result.Error, result.Guidance)
	}
	cfg.Engine = engine
	return cfg, nil
}

// cacheConfig converts the cache section of cfg, defaulting the directory
// to the user cache dir.
func cacheConfig(c tts.CacheConfig) (cache.Config, error) {
	dir := c.Dir
	if dir == "" {
		base, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return cache.Config{}, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(base, "audio")
	}

	conf := cache.DefaultConfig(dir)
	if c.MemoryMB > 0 {
		conf.MemoryCapacity = c.MemoryMB << 20
	}
	if c.DiskMB > 0 {
		conf.DiskCapacity = c.DiskMB << 20
	}
	conf.MaxAge = c.MaxAge
	if !c.Compress {
		conf.CompressionLevel = 0
	}
	return conf, nil
}

// reader bundles a chain with the resources it reads through.
type reader struct {
	chain  *tts.Chain
	client *news.Client
	synth  tts.Synthesizer

	player  *audio.OtoPlayer
	clips   *cache.Manager
	watcher *tts.ConfigWatcher
}

func newReader(cfg tts.Config, sink tts.Sink) (*reader, error) {
	r := &reader{client: news.NewClient(cfg.News)}

	var (
		player audio.Player
		clips  engines.ClipCache
	)
	if cfg.Engine == tts.EngineGoogle {
		p, err := audio.NewPlayer(audio.DefaultPlayerConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to open audio device: %w", err)
		}
		r.player, player = p, p

		if cfg.Cache.Enabled {
			conf, err := cacheConfig(cfg.Cache)
			if err != nil {
				return nil, errors.Join(err, r.Close())
			}
			m, err := cache.NewManager(conf)
			if err != nil {
				log.Warn("audio cache disabled", "error", err)
			} else {
				r.clips, clips = m, m
			}
		}
	}

	synth, err := engines.New(cfg.Engine, cfg, player, clips)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}
	r.synth = synth

	r.chain, err = tts.NewChain(tts.ChainConfig{
		Config:      cfg,
		Synthesizer: synth,
		Fetcher:     r.client,
		Sink:        sink,
	})
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}

	if used := viper.ConfigFileUsed(); used != "" {
		r.watcher, err = tts.NewConfigWatcher(used, func(_, next tts.Config) {
			log.Info("configuration reloaded", "path", used)
			r.chain.ApplyConfig(next)
		})
		if err != nil {
			log.Warn("live configuration reload disabled", "error", err)
		}
	}
	return r, nil
}

// Close stops reading and releases the audio device and cache.
func (r *reader) Close() error {
	var errs []error
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.chain != nil {
		errs = append(errs, r.chain.Close())
	}
	if r.clips != nil {
		errs = append(errs, r.clips.Close())
	}
	if r.player != nil {
		errs = append(errs, r.player.Close())
	}
	return errors.Join(errs...)
}

func execute(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	events := tts.NewChannelSink()
	defer events.Close()

	r, err := newReader(cfg, tts.MultiSink{tts.LogSink{Logger: log.WithPrefix("events")}, events})
	if err != nil {
		return err
	}

	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return errors.Join(fmt.Errorf("error parsing config: %v", err), r.Close())
	}
	if uiCfg.GlamourStyle == "" {
		uiCfg.GlamourStyle = style
	}
	uiCfg.GlamourMaxWidth = width
	uiCfg.EnableMouse = mouse
	uiCfg.StartIndex = newsIndex - 1

	_, runErr := ui.NewProgram(uiCfg, r.chain, r.client, events.Events()).Run()
	closeErr := r.Close()
	if runErr != nil {
		return fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return closeErr
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineFlag, "engine", "e", "", "speech engine (gtts/espeak)")
	rootCmd.PersistentFlags().IntVarP(&newsIndex, "news", "n", 0, "start reading the Nth headline and continue with the next ones")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "article style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap articles at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	tts.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(readCmd, newsCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("WXC_TTS_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("wxc_tts")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
