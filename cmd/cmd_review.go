// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/medgeo-bg/medgeo/results"
	"github.com/medgeo-bg/medgeo/review"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the manual review workflow",
}

var reviewServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review web server (local only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(batchOpts.dbPath()); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("database not found at %s - run 'geocode run' first", batchOpts.dbPath())
		}

		db, cache, overrides, err := batchOpts.openStores()
		if err != nil {
			return err
		}
		defer db.Close()

		repo := results.NewFacilityRepository(db)
		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}

		resolver := batchOpts.buildResolver(cmd, cache)
		server := review.NewServer(repo, cache, overrides, resolver)

		fmt.Println("🗺️  Review server starting...")
		fmt.Printf("📍 API at http://%s\n", server.Addr)
		fmt.Println("🔒 Local only - not exposed to internet")

		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewServeCmd)

	reviewCmd.PersistentFlags().StringVar(
		&batchOpts.DataPath,
		"data", "data",
		"directory holding the database, cache and override files")
	reviewCmd.PersistentFlags().StringVar(
		&batchOpts.CacheFile,
		"cache-file", "geocode_cache.json",
		"resolution cache file name inside the data directory")
	reviewCmd.PersistentFlags().StringVar(
		&batchOpts.OverridesFile,
		"overrides-file", "manual_overrides.json",
		"manual override file name inside the data directory")
	reviewServeCmd.Flags().BoolVar(
		&batchOpts.UseGoogle,
		"google", false,
		"enable the Google Maps tier for suggestions when a key is available")
}
