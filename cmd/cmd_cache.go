// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/medgeo-bg/medgeo/geocode"
	"github.com/spf13/cobra"
)

var pruneThreshold int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the resolution cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts by provider",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cache, err := geocode.OpenCache(batchOpts.cachePath())
		if err != nil {
			return fmt.Errorf("opening resolution cache: %w", err)
		}

		byProvider := make(map[string]int)
		for _, e := range cache.Entries() {
			byProvider[e.Provider]++
		}

		fmt.Printf("%d cached resolutions\n", cache.Len())

		for provider, count := range byProvider {
			fmt.Printf("  %-24s %d\n", provider, count)
		}

		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict duplicate-coordinate clusters and generic entries",
	Long: `Scans the resolution cache for coordinates shared by several unrelated
addresses (a backend answering with city centroids) and for generic category
display texts, and removes them. The next run re-resolves the evicted keys.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cache, err := geocode.OpenCache(batchOpts.cachePath())
		if err != nil {
			return fmt.Errorf("opening resolution cache: %w", err)
		}

		detector := geocode.NewAmbiguityDetector(pruneThreshold, nil)

		removed := detector.PruneCache(cache)
		for _, key := range removed {
			fmt.Printf("  evicted %s\n", key)
		}

		fmt.Printf("✅ Evicted %d of %d cached resolutions\n", len(removed), cache.Len()+len(removed))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)

	cacheCmd.PersistentFlags().StringVar(
		&batchOpts.DataPath,
		"data", "data",
		"directory holding the database, cache and override files")
	cacheCmd.PersistentFlags().StringVar(
		&batchOpts.CacheFile,
		"cache-file", "geocode_cache.json",
		"resolution cache file name inside the data directory")
	cachePruneCmd.Flags().IntVar(
		&pruneThreshold,
		"threshold", 3,
		"duplicate-coordinate cluster size that triggers eviction")
}
