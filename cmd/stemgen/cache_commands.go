package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stemgen/internal/engine/demucs"
	"stemgen/internal/outputs"
	"stemgen/internal/stemcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the stem cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))
	return cacheCmd
}

func (c *commandContext) openCache() (*stemcache.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	cache := stemcache.NewManager(cfg.StemCache.Dir, cfg.StemCache.Enabled, logger)
	if cache == nil {
		return nil, fmt.Errorf("stem cache is disabled in configuration")
	}
	return cache, nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count, size, and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Entries", fmt.Sprintf("%d", stats.Entries)},
				{"Total size", formatBytes(uint64(stats.TotalBytes))},
				{"Free space", formatBytes(stats.FreeBytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Metric", "Value"},
				rows,
				1,
			))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries, optionally only those older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			age := time.Duration(olderThanDays) * 24 * time.Hour
			removed, err := cache.Clear(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "Only remove entries older than N days (0 = all)")
	return cmd
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string

	cmd := &cobra.Command{
		Use:   "invalidate FILE",
		Short: "Remove the cache entry for a file and engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			hash, err := outputs.ContentHash(path)
			if err != nil {
				return err
			}
			if err := cache.Invalidate(cmd.Context(), hash, engineFlag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s entry for %s\n", engineFlag, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&engineFlag, "engine", demucs.EngineName, "Engine whose entry to remove")
	return cmd
}
