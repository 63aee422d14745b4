package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coder6688/wenxuecity-tts/internal/cache"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the audio cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show audio cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.Manager, dir string) error {
				s := m.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", keyword("Directory:"), dir)
				fmt.Fprintf(out, "%s %d clips, %s of %s\n", keyword("Disk:     "),
					s.Disk.ItemCount, humanize.Bytes(uint64(s.Disk.Size)), humanize.Bytes(uint64(s.Disk.Capacity))) //nolint:gosec
				fmt.Fprintf(out, "%s %d clips, %s of %s\n", keyword("Memory:   "),
					s.Memory.ItemCount, humanize.Bytes(uint64(s.Memory.Size)), humanize.Bytes(uint64(s.Memory.Capacity))) //nolint:gosec
				if !s.Disk.LastAccess.IsZero() {
					fmt.Fprintf(out, "%s %s\n", keyword("Last used:"), humanize.Time(s.Disk.LastAccess))
				}
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached clip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.Manager, dir string) error {
				size := m.Size()
				if err := m.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Freed %s in %s\n", humanize.Bytes(uint64(size)), subtle(dir)) //nolint:gosec
				return nil
			})
		},
	}

	cacheCleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove expired clips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(m *cache.Manager, _ string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired clips\n", m.Cleanup())
				return nil
			})
		},
	}
)

// withCache opens the configured cache without its cleanup routine.
func withCache(fn func(m *cache.Manager, dir string) error) error {
	cfg, err := tts.LoadConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	conf, err := cacheConfig(cfg.Cache)
	if err != nil {
		return err
	}
	conf.CleanupInterval = 0

	m, err := cache.NewManager(conf)
	if err != nil {
		return fmt.Errorf("unable to open cache: %w", err)
	}
	if err := fn(m, conf.Dir); err != nil {
		_ = m.Close()
		return err
	}
	return m.Close()
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheCleanCmd)
}
