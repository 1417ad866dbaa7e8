// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/mattn/go-isatty"
	"github.com/medgeo-bg/medgeo/geocode"
	"github.com/medgeo-bg/medgeo/results"
	"github.com/medgeo-bg/medgeo/utils/httputils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// batchOptions are the flags shared by the geocode and review commands.
type batchOptions struct {
	DataPath      string
	CacheFile     string
	OverridesFile string
	SnapshotFile  string
	Trace         bool
	UseGoogle     bool
	Limit         int
}

var batchOpts = &batchOptions{}

const checkpointEvery = 20

func (o *batchOptions) dbPath() string {
	return filepath.Join(o.DataPath, "medgeo.duckdb")
}

func (o *batchOptions) cachePath() string {
	return filepath.Join(o.DataPath, o.CacheFile)
}

func (o *batchOptions) overridesPath() string {
	return filepath.Join(o.DataPath, o.OverridesFile)
}

// openStores opens the database, the resolution cache and the override file.
func (o *batchOptions) openStores() (*sql.DB, *geocode.Cache, *results.OverrideStore, error) {
	if err := os.MkdirAll(o.DataPath, 0o750); err != nil {
		return nil, nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("duckdb", o.dbPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	cache, err := geocode.OpenCache(o.cachePath())
	if err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("opening resolution cache: %w", err)
	}

	overrides, err := results.LoadOverrides(o.overridesPath())
	if err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("loading overrides: %w", err)
	}

	return db, cache, overrides, nil
}

// buildResolver assembles the backend cascade over a shared HTTP client.
func (o *batchOptions) buildResolver(cmd *cobra.Command, cache *geocode.Cache) *geocode.Resolver {
	var traceWriter io.Writer
	if o.Trace {
		traceWriter = os.Stderr
	}

	httpClient := httputils.NewClient(traceWriter)
	nominatim := geocode.NewNominatimClient(httpClient)

	backends := geocode.Backends{
		Structured: nominatim,
		POI:        geocode.NewOverpassClient(httpClient),
	}

	if o.UseGoogle {
		if key := geocode.GoogleAPIKey(cmd.Context()); key != "" {
			backends.Commercial = geocode.NewGoogleGeocoder(key, httpClient)
		}
	}

	return geocode.NewResolver(cache, backends, geocode.DefaultOptions())
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve register addresses into coordinates",
}

var geocodeRunCmd = &cobra.Command{
	Use:   "run <register.csv>",
	Short: "Geocode a register export, resuming where the last run stopped",
	Long: `Reads a facility register export and resolves every address through the
backend cascade. Rows already resolved in the database are skipped, so an
interrupted run picks up where it left off. A CSV snapshot is checkpointed
periodically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening register: %w", err)
		}
		defer f.Close()

		rows, err := results.ReadFacilities(f)
		if err != nil {
			return fmt.Errorf("parsing register: %w", err)
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

		return runBatch(cmd, rows, repo, resolver, overrides)
	},
}

func runBatch(cmd *cobra.Command, rows []*results.Row,
	repo results.FacilityRepository, resolver *geocode.Resolver,
	overrides *results.OverrideStore,
) error {
	if batchOpts.Limit > 0 && len(rows) > batchOpts.Limit {
		rows = rows[:batchOpts.Limit]
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(rows),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	processed := 0

	for _, row := range rows {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		if err := processRow(cmd.Context(), row, repo, resolver, overrides); err != nil {
			return err
		}

		processed++

		if bar == nil {
			log.Printf("[%d/%d] %s (%s): %s", processed, len(rows), row.Name, row.Settlement, row.Status)
		} else if err := bar.Add(1); err != nil {
			return fmt.Errorf("updating progress bar: %w", err)
		}

		if processed%checkpointEvery == 0 {
			if err := checkpoint(repo); err != nil {
				return err
			}
		}
	}

	if err := checkpoint(repo); err != nil {
		return err
	}

	counts, err := repo.CountByStatus()
	if err != nil {
		return fmt.Errorf("counting outcomes: %w", err)
	}

	fmt.Printf("✅ Processed %d facilities: %d resolved, %d city-level, %d failed\n",
		processed,
		counts[geocode.StatusResolved.String()],
		counts[geocode.StatusCityLevel.String()],
		counts[geocode.StatusFailed.String()])

	return nil
}

// processRow resolves one facility. Manual overrides win outright, then an
// already-resolved database row short-circuits, then the cascade runs.
func processRow(ctx context.Context, row *results.Row, repo results.FacilityRepository,
	resolver *geocode.Resolver, overrides *results.OverrideStore,
) error {
	if o, ok := overrides.Get(row.Key()); ok {
		p := o.Point()
		row.Point = &p
		row.Status = geocode.StatusResolved.String()
		row.Provider = geocode.ProviderManual
		row.Confidence = 100
		row.Notes = o.Note

		return saveRow(repo, row)
	}

	if existing, err := repo.Get(row.Name, row.Settlement); err == nil {
		if existing.Status == geocode.StatusResolved.String() {
			*row = *existing

			return nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking existing row for %q: %w", row.Name, err)
	}

	q, err := geocode.NewAddressQuery(
		geocode.NormalizeAddress(row.Address),
		geocode.NormalizeCity(row.Settlement),
		row.Region,
		row.Name,
	)
	if err != nil {
		log.Printf("skipping %q: %v", row.Name, err)

		row.Status = geocode.StatusFailed.String()

		return saveRow(repo, row)
	}

	result := resolver.Resolve(ctx, q)

	row.Status = result.Status.String()
	row.Provider = result.Provider
	row.DisplayName = result.DisplayName
	row.Confidence = result.Confidence
	row.Point = result.Point

	return saveRow(repo, row)
}

func saveRow(repo results.FacilityRepository, row *results.Row) error {
	if err := repo.Save(row); err != nil {
		return fmt.Errorf("saving %q: %w", row.Name, err)
	}

	return nil
}

// checkpoint writes the CSV snapshot of everything resolved so far.
func checkpoint(repo results.FacilityRepository) error {
	if batchOpts.SnapshotFile == "" {
		return nil
	}

	rows, err := repo.List(nil, 0, 0)
	if err != nil {
		return fmt.Errorf("listing rows for snapshot: %w", err)
	}

	if err := results.WriteSnapshot(batchOpts.SnapshotFile, rows); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.AddCommand(geocodeRunCmd)

	geocodeCmd.PersistentFlags().StringVar(
		&batchOpts.DataPath,
		"data", "data",
		"directory holding the database, cache and override files")
	geocodeCmd.PersistentFlags().StringVar(
		&batchOpts.CacheFile,
		"cache-file", "geocode_cache.json",
		"resolution cache file name inside the data directory")
	geocodeCmd.PersistentFlags().StringVar(
		&batchOpts.OverridesFile,
		"overrides-file", "manual_overrides.json",
		"manual override file name inside the data directory")
	geocodeRunCmd.Flags().StringVar(
		&batchOpts.SnapshotFile,
		"snapshot", "geocoded.csv",
		"CSV snapshot path, checkpointed during the run (empty disables)")
	geocodeRunCmd.Flags().BoolVar(
		&batchOpts.Trace,
		"trace", false,
		"dump backend HTTP traffic to stderr")
	geocodeRunCmd.Flags().BoolVar(
		&batchOpts.UseGoogle,
		"google", false,
		"enable the Google Maps tier when a key is available")
	geocodeRunCmd.Flags().IntVar(
		&batchOpts.Limit,
		"limit", 0,
		"process at most this many rows (0 means all)")
}
