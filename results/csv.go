// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Input header names as published in the national register exports.
const (
	colName         = "Наименование"
	colRegion       = "Област"
	colMunicipality = "Община"
	colSettlement   = "Населено място"
	colAddress      = "Адрес"
)

// ReadFacilities parses a register export. Headers are matched by name, not
// position: the ministry reorders columns between publications.
func ReadFacilities(r io.Reader) ([]*Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading register header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Register exports from Windows tooling start with a UTF-8 BOM,
		// which the csv reader hands back glued to the first header.
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}

	for _, required := range []string{colName, colRegion, colSettlement, colAddress} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("register is missing the %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	var out []*Row

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading register line %d: %w", line, err)
		}

		row := &Row{
			Name:         field(record, colName),
			Region:       field(record, colRegion),
			Municipality: field(record, colMunicipality),
			Settlement:   field(record, colSettlement),
			Address:      field(record, colAddress),
		}

		if row.Name == "" && row.Address == "" {
			continue
		}

		out = append(out, row)
	}

	return out, nil
}

var snapshotHeader = []string{
	colName, colRegion, colMunicipality, colSettlement, colAddress,
	"lat", "lng", "status", "provider", "confidence", "display_name",
}

// WriteSnapshot writes the geocoded register to path atomically: the file is
// the checkpoint a crashed batch resumes from, so a partial write must never
// replace a good one.
func WriteSnapshot(path string, rows []*Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)

	if err := w.Write(snapshotHeader); err != nil {
		tmp.Close()

		return fmt.Errorf("writing snapshot header: %w", err)
	}

	for _, row := range rows {
		lat, lng := "", ""
		if row.Point != nil {
			lat = strconv.FormatFloat(row.Point.Lat, 'f', 7, 64)
			lng = strconv.FormatFloat(row.Point.Lng, 'f', 7, 64)
		}

		record := []string{
			row.Name, row.Region, row.Municipality, row.Settlement, row.Address,
			lat, lng, row.Status, row.Provider, strconv.Itoa(row.Confidence), row.DisplayName,
		}

		if err := w.Write(record); err != nil {
			tmp.Close()

			return fmt.Errorf("writing snapshot row for %q: %w", row.Name, err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		tmp.Close()

		return fmt.Errorf("flushing snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}
