// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package results persists the geocoded facility register.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medgeo-bg/medgeo/spatial"
	"github.com/uber/h3-go/v4"
)

// Bulgaria's bounding box. A coordinate outside it is a geocoding accident
// (swapped lat/lng, wrong country bias) and must never reach the table.
const (
	MinLat = 41.0
	MaxLat = 44.5
	MinLng = 22.0
	MaxLng = 29.0
)

// Row is one facility with its resolution outcome.
type Row struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Region       string         `json:"region"`
	Municipality string         `json:"municipality"`
	Settlement   string         `json:"settlement"`
	Address      string         `json:"address"`
	Point        *spatial.Point `json:"point"`
	Status       string         `json:"status"`   // resolved, city_level, failed
	Provider     string         `json:"provider"` // nominatim_free, google, manual, ...
	DisplayName  string         `json:"display_name"`
	Confidence   int            `json:"confidence"`
	Notes        string         `json:"notes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	H3Res7       int64          `json:"-"`
	H3Res9       int64          `json:"-"`
}

// Key identifies a facility row: the register has no stable numeric id, so
// name plus settlement is the natural key.
func (r *Row) Key() string {
	return r.Name + "||" + r.Settlement
}

func (r *Row) computeH3() error {
	if r.Point == nil {
		r.H3Res7 = 0
		r.H3Res9 = 0

		return nil
	}

	latLng := h3.NewLatLng(r.Point.Lat, r.Point.Lng)

	for _, res := range []int{7, 9} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		if res == 7 {
			r.H3Res7 = int64(cell)
		} else {
			r.H3Res9 = int64(cell)
		}
	}

	return nil
}

// validatePoint rejects coordinates outside the country.
func validatePoint(p *spatial.Point) error {
	if p == nil {
		return nil
	}

	if p.Lat < MinLat || p.Lat > MaxLat || p.Lng < MinLng || p.Lng > MaxLng {
		return fmt.Errorf("point %s falls outside Bulgaria", p)
	}

	return nil
}

// FacilityRepository handles persistence of geocoded facilities.
type FacilityRepository interface {
	// CreateSchema creates the facilities table
	CreateSchema() error

	// Save inserts or updates a facility row
	Save(row *Row) error

	// Get returns one facility by name and settlement
	Get(name, settlement string) (*Row, error)

	// List returns facilities, optionally filtered by status
	List(status *string, limit, offset int) ([]*Row, error)

	// Count returns the total number of facilities
	Count() (int, error)

	// CountByStatus returns row counts keyed by status
	CountByStatus() (map[string]int, error)

	// ReviewQueue returns the rows a human should look at: failures first,
	// then city-level fallbacks by ascending confidence
	ReviewQueue(limit int) ([]*Row, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlFacilityRepository struct {
	db *sql.DB
}

// NewFacilityRepository creates a repository over an open DuckDB connection.
func NewFacilityRepository(db *sql.DB) FacilityRepository {
	return &sqlFacilityRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlFacilityRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlFacilityRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS facilities_seq START 1;

		CREATE TABLE IF NOT EXISTS facilities (
			id INTEGER PRIMARY KEY DEFAULT nextval('facilities_seq'),
			name VARCHAR NOT NULL,
			region VARCHAR NOT NULL,
			municipality VARCHAR,
			settlement VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			point POINT_2D,
			status VARCHAR NOT NULL,
			provider VARCHAR,
			display_name VARCHAR,
			confidence INTEGER DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			h3_res7 UBIGINT,
			h3_res9 UBIGINT,
			UNIQUE(name, settlement)
		);
	`)

	return err
}

func (r *sqlFacilityRepository) Save(row *Row) error {
	if err := validatePoint(row.Point); err != nil {
		return err
	}

	if err := row.computeH3(); err != nil {
		return err
	}

	existing, err := r.Get(row.Name, row.Settlement)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	row.UpdatedAt = time.Now()

	// ST_Point cannot take NULL arguments, so pointless rows get their own
	// statements.
	pointExpr := "NULL"

	var pointArgs []any
	if row.Point != nil {
		pointExpr = "ST_Point(?, ?)"
		pointArgs = []any{row.Point.Lng, row.Point.Lat}
	}

	if existing != nil {
		args := append(pointArgs,
			row.Region,
			row.Municipality,
			row.Address,
			row.Status,
			row.Provider,
			row.DisplayName,
			row.Confidence,
			row.Notes,
			row.UpdatedAt,
			row.H3Res7,
			row.H3Res9,
			row.Name,
			row.Settlement,
		)

		_, err = r.db.Exec(`
			UPDATE facilities
			SET point = `+pointExpr+`,
			    region = ?, municipality = ?, address = ?,
			    status = ?, provider = ?, display_name = ?, confidence = ?,
			    notes = ?, updated_at = ?, h3_res7 = ?, h3_res9 = ?
			WHERE name = ? AND settlement = ?
		`, args...)

		return err
	}

	row.CreatedAt = row.UpdatedAt

	args := append(pointArgs,
		row.Name,
		row.Region,
		row.Municipality,
		row.Settlement,
		row.Address,
		row.Status,
		row.Provider,
		row.DisplayName,
		row.Confidence,
		row.Notes,
		row.CreatedAt,
		row.UpdatedAt,
		row.H3Res7,
		row.H3Res9,
	)

	_, err = r.db.Exec(`
		INSERT INTO facilities(
			point,
			name, region, municipality, settlement, address,
			status, provider, display_name, confidence,
			notes, created_at, updated_at, h3_res7, h3_res9
		)
		VALUES (`+pointExpr+`, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)

	return err
}

var baseSelect = `
	SELECT name, region, municipality, settlement, address,
	       point, status, provider, display_name, confidence,
	       notes, created_at, updated_at, h3_res7, h3_res9
	FROM facilities
`

func (r *sqlFacilityRepository) Get(name, settlement string) (*Row, error) {
	rows, err := r.list(baseSelect+" WHERE name = ? AND settlement = ?", []any{name, settlement})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}

	return rows[0], nil
}

func (r *sqlFacilityRepository) List(status *string, limit, offset int) ([]*Row, error) {
	query := baseSelect

	args := []any{}

	if status != nil {
		query += " WHERE status = ?"

		args = append(args, *status)
	}

	query += " ORDER BY region, settlement, name"

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	return r.list(query, args)
}

func (r *sqlFacilityRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM facilities",
	).Scan(&count)

	return count, err
}

func (r *sqlFacilityRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*)
		FROM facilities
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var status string

		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		counts[status] = count
	}

	return counts, rows.Err()
}

func (r *sqlFacilityRepository) ReviewQueue(limit int) ([]*Row, error) {
	query := baseSelect + `
		WHERE status IN ('failed', 'city_level')
		ORDER BY CASE status WHEN 'failed' THEN 0 ELSE 1 END, confidence, name
	`

	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	return r.list(query, args)
}

func (r *sqlFacilityRepository) list(query string, args []any) ([]*Row, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Row

	for rows.Next() {
		row := &Row{}

		var (
			point        spatial.NullPoint
			municipality sql.NullString
			provider     sql.NullString
			displayName  sql.NullString
			h3Res7       sql.NullInt64
			h3Res9       sql.NullInt64
		)

		err := rows.Scan(
			&row.Name, &row.Region, &municipality, &row.Settlement, &row.Address,
			&point, &row.Status, &provider, &displayName, &row.Confidence,
			&row.Notes, &row.CreatedAt, &row.UpdatedAt, &h3Res7, &h3Res9,
		)
		if err != nil {
			return nil, err
		}

		if point.Valid {
			p := point.Point
			row.Point = &p
		}

		row.Municipality = municipality.String
		row.Provider = provider.String
		row.DisplayName = displayName.String
		row.H3Res7 = h3Res7.Int64
		row.H3Res9 = h3Res9.Int64

		out = append(out, row)
	}

	return out, rows.Err()
}
