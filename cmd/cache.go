package cmd

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/cache"
	"github.com/Quidge/conform/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the verdict cache",
	Long: `Manage the on-disk verdict cache used by "conform STAGE --cache".

Subcommands:
  info   Show the cache location and size
  clear  Remove every cached verdict`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache location and size",
	Args:  cobra.NoArgs,
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached verdict",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openConfiguredCache opens the cache directory named by the global config.
func openConfiguredCache() (*cache.Cache, error) {
	global, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	dir, err := config.ExpandPath(global.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("cache.dir: %w", err)
	}
	return cache.Open(dir)
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	c, err := openConfiguredCache()
	if err != nil {
		return err
	}

	entries, size, err := c.Stats()
	if err != nil {
		return err
	}

	bytes, err := safecast.Conv[uint64](size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Directory: %s\n", c.Dir())
	fmt.Fprintf(out, "Entries:   %s\n", humanize.Comma(int64(entries)))
	fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(bytes))
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, err := openConfiguredCache()
	if err != nil {
		return err
	}

	entries, _, err := c.Stats()
	if err != nil {
		return err
	}
	if err := c.Clear(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", english.Plural(entries, "entry", "entries"), c.Dir())
	return nil
}
