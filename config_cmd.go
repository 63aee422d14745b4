package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

const defaultConfig = `# article style name or JSON path (default "auto")
style: "auto"
# word-wrap articles at width
width: 80

# speech engine: gtts (online, needs gtts-cli and ffmpeg) or espeak (offline)
engine: "gtts"

# languages playback may switch between; anything else is read as
# default_language
languages: ["en", "zh-cn"]
default_language: "zh-cn"
# used when detection is not confident, and before the first segment
fallback_language: "en"
# force one language for everything (empty = detect per segment)
language: ""
auto_detect: true
confidence_threshold: 0.7

# move on to the next headline when an article is finished
auto_continue: true
# characters of each article to read (0 = everything)
char_limit: 500
volume: 80
volume_step: 10
cue_prefix: "Next: "
cue_delay: "500ms"
# how long stop waits for speech to end before cutting it off
stop_timeout: "2s"

gtts:
  tld: "com"
  slow: false
  requests_per_second: 2
  timeout: "30s"
  # switch to espeak after this many failures in a row (0 = never)
  fallback_after: 3

espeak:
  binary: "espeak-ng"
  speed: 160
  timeout: "60s"
  # voices:
  #   zh-cn: "cmn"
  #   en: "en-us"

# synthesized audio cache (gtts only)
cache:
  enabled: true
  # dir: "~/.cache/wxc-tts/audio"
  memory_mb: 64
  disk_mb: 512
  max_age: "168h"
  compress: true

news:
  home_url: "https://www.wenxuecity.com/"
  requests_per_second: 1
  timeout: "15s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the wxc-tts config file",
	Long:    paragraph(fmt.Sprintf("\n%s the wxc-tts config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("wxc-tts config\nwxc-tts config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("wxc-tts", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := tts.LoadConfigFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		if engineFlag != "" {
			if cfg.Engine, err = tts.ValidateEngineSelection(engineFlag, cfg); err != nil {
				return err
			}
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), subtle("# "+used))
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("unable to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
