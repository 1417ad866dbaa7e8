// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package results

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/medgeo-bg/medgeo/spatial"
)

// Override is a human-placed coordinate for one facility. Overrides outrank
// every geocoder and survive cache prunes and re-runs.
type Override struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Note string  `json:"note,omitempty"`
}

// Point returns the override as a spatial point.
func (o Override) Point() spatial.Point {
	return spatial.Point{Lat: o.Lat, Lng: o.Lng}
}

// OverrideStore is a JSON file of manual fixes, keyed like Row.Key.
type OverrideStore struct {
	path    string
	entries map[string]Override
}

// LoadOverrides reads the override file. A missing file is an empty store;
// a corrupt one is an error, a human edited it and should know.
func LoadOverrides(path string) (*OverrideStore, error) {
	s := &OverrideStore{
		path:    path,
		entries: make(map[string]Override),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading overrides %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
	}

	return s, nil
}

// Get returns the override for a facility key.
func (s *OverrideStore) Get(key string) (Override, bool) {
	o, ok := s.entries[key]

	return o, ok
}

// Len returns the number of overrides.
func (s *OverrideStore) Len() int {
	return len(s.entries)
}

// Put records an override and persists the file.
func (s *OverrideStore) Put(key string, o Override) error {
	if err := validatePoint(&spatial.Point{Lat: o.Lat, Lng: o.Lng}); err != nil {
		return err
	}

	s.entries[key] = o

	return s.flush()
}

func (s *OverrideStore) flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing overrides %s: %w", s.path, err)
	}

	return nil
}
