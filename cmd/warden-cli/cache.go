package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit/miss counts, entry counts, and estimated spend",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		report, err := deps.store.CacheStats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		color.New(color.FgCyan, color.Bold).Println("cache stats")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "hits\t%d\n", report.Hits)
		fmt.Fprintf(w, "misses\t%d\n", report.Misses)
		fmt.Fprintf(w, "total entries\t%d\n", report.TotalEntries)
		fmt.Fprintf(w, "total tokens\t%d\n", report.TotalTokens)
		fmt.Fprintf(w, "estimated cost\t$%.4f\n", report.EstimatedCost)
		for cacheType, count := range report.EntriesPerType {
			fmt.Fprintf(w, "  %s\t%d\n", cacheType, count)
		}
		return w.Flush()
	},
}

var cacheClearCacheType string

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cache entries, optionally scoped to one cache-type",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		removed, err := deps.store.ClearCache(context.Background(), cacheClearCacheType)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		color.New(color.FgGreen).Printf("removed %d cache entries\n", removed)
		return nil
	},
}

var (
	pruneStrategy     string
	pruneTargetBytes  int64
)

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict cache entries down to a target size, by strategy",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		removed, err := deps.store.PruneCache(context.Background(), storage.PrunePolicy{
			Strategy:    pruneStrategy,
			TargetBytes: pruneTargetBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		color.New(color.FgGreen).Printf("pruned %d cache entries\n", removed)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearCacheType, "cache-type", "", "restrict to one cache-type (default: all)")
	cachePruneCmd.Flags().StringVar(&pruneStrategy, "strategy", storage.StrategyLRU, "one of: oldest, lru, cheapest")
	cachePruneCmd.Flags().Int64Var(&pruneTargetBytes, "target-bytes", 0, "low-water mark to prune down to")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
