// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package review serves the local curation UI for geocoding outcomes.
package review

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medgeo-bg/medgeo/geocode"
	"github.com/medgeo-bg/medgeo/results"
	"github.com/medgeo-bg/medgeo/spatial"
)

// Server exposes the review queue over HTTP on the loopback interface.
// A human walks the failed and city-level rows, places pins, and every
// accepted fix flows into the repository, the cache and the override file
// so re-runs keep it.
type Server struct {
	Addr string

	repo      results.FacilityRepository
	cache     *geocode.Cache
	overrides *results.OverrideStore
	resolver  *geocode.Resolver
}

// NewServer wires the review surface. resolver may be nil; the suggest
// endpoint then answers 404 for everything.
func NewServer(repo results.FacilityRepository, cache *geocode.Cache,
	overrides *results.OverrideStore, resolver *geocode.Resolver,
) *Server {
	return &Server{
		Addr:      "127.0.0.1:8080",
		repo:      repo,
		cache:     cache,
		overrides: overrides,
		resolver:  resolver,
	}
}

// Run blocks serving the API until the listener fails.
func (s *Server) Run() error {
	r := gin.Default()

	r.GET("/api/facilities", s.listFacilities)
	r.GET("/api/facilities/queue", s.getQueue)
	r.GET("/api/facilities/progress", s.getProgress)
	r.GET("/api/facilities/suggest", s.suggestCoordinates)
	r.POST("/api/facilities/accept", s.acceptFix)

	return r.Run(s.Addr)
}

func (s *Server) listFacilities(ctx *gin.Context) {
	page := 1
	perPage := 50

	if p := ctx.Query("page"); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &page); err != nil || page < 1 {
			page = 1
		}
	}

	if pp := ctx.Query("per_page"); pp != "" {
		if _, err := fmt.Sscanf(pp, "%d", &perPage); err != nil || perPage < 1 {
			perPage = 50
		}
	}

	var status *string
	if st := ctx.Query("status"); st != "" {
		status = &st
	}

	rows, err := s.repo.List(status, perPage, (page-1)*perPage)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	total, err := s.repo.Count()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"facilities": rows,
		"total":      total,
		"page":       page,
		"per_page":   perPage,
	})
}

func (s *Server) getQueue(ctx *gin.Context) {
	limit := 1000

	if l := ctx.Query("limit"); l != "" {
		if _, err := fmt.Sscanf(l, "%d", &limit); err != nil || limit < 1 {
			limit = 1000
		}
	}

	rows, err := s.repo.ReviewQueue(limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, rows)
}

// ProgressResponse summarizes how much of the register is resolved.
type ProgressResponse struct {
	Total              int            `json:"total"`
	Resolved           int            `json:"resolved"`
	ResolvedPercentage float64        `json:"resolved_percentage"`
	ByStatus           map[string]int `json:"by_status"`
}

func (s *Server) getProgress(ctx *gin.Context) {
	total, err := s.repo.Count()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	byStatus, err := s.repo.CountByStatus()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	resolved := byStatus[geocode.StatusResolved.String()]

	pct := 0.0
	if total > 0 {
		pct = (float64(resolved) / float64(total)) * 100
	}

	ctx.JSON(http.StatusOK, ProgressResponse{
		Total:              total,
		Resolved:           resolved,
		ResolvedPercentage: pct,
		ByStatus:           byStatus,
	})
}

// SuggestionResponse is a machine proposal for a facility under review.
// DistanceMeters is how far the proposal sits from the facility's current
// pin, when it has one; a large value is the tell for a centroid fix.
type SuggestionResponse struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Provider       string   `json:"provider"`
	Status         string   `json:"status"`
	Confidence     int      `json:"confidence"`
	DisplayName    string   `json:"display_name"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

func (s *Server) suggestCoordinates(ctx *gin.Context) {
	if s.resolver == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no geocoding backends configured"})

		return
	}

	// Normalize like the batch driver so suggestions hit the same cache keys.
	q, err := geocode.NewAddressQuery(
		geocode.NormalizeAddress(ctx.Query("address")),
		geocode.NormalizeCity(ctx.Query("settlement")),
		ctx.Query("region"),
		ctx.Query("name"),
	)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	result := s.resolver.Resolve(ctx.Request.Context(), q)
	if result.Status == geocode.StatusFailed || result.Point == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no suggestion available"})

		return
	}

	resp := SuggestionResponse{
		Latitude:    result.Point.Lat,
		Longitude:   result.Point.Lng,
		Provider:    result.Provider,
		Status:      result.Status.String(),
		Confidence:  result.Confidence,
		DisplayName: result.DisplayName,
	}

	if row, err := s.repo.Get(ctx.Query("name"), ctx.Query("settlement")); err == nil && row.Point != nil {
		d := row.Point.HaversineDistance(result.Point)
		resp.DistanceMeters = &d
	}

	ctx.JSON(http.StatusOK, resp)
}

// AcceptFixRequest is a human decision for one facility.
type AcceptFixRequest struct {
	Name       string  `json:"name"`
	Settlement string  `json:"settlement"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Notes      string  `json:"notes"`
}

func (s *Server) acceptFix(ctx *gin.Context) {
	var req AcceptFixRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	row, err := s.repo.Get(req.Name, req.Settlement)
	if errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "facility not found"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	row.Point = &spatial.Point{Lat: req.Latitude, Lng: req.Longitude}
	row.Status = geocode.StatusResolved.String()
	row.Provider = geocode.ProviderManual
	row.Confidence = 100
	row.Notes = req.Notes

	if err := s.repo.Save(row); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("saving fix: %v", err)})

		return
	}

	if err := s.overrides.Put(row.Key(), results.Override{
		Lat:  req.Latitude,
		Lng:  req.Longitude,
		Note: req.Notes,
	}); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("saving override: %v", err)})

		return
	}

	// The cache must agree with the human, or the next batch run will
	// overwrite the fix with the machine answer it replaced. The key is the
	// normalized triple, exactly as the batch driver builds it.
	q, err := geocode.NewAddressQuery(
		geocode.NormalizeAddress(row.Address),
		geocode.NormalizeCity(row.Settlement),
		row.Region,
		row.Name,
	)
	if err == nil {
		s.cache.Put(q.CacheKey(), geocode.CacheEntry{
			Lat:         req.Latitude,
			Lng:         req.Longitude,
			Provider:    geocode.ProviderManual,
			DisplayName: row.DisplayName,
			Score:       100,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
