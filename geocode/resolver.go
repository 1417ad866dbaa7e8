// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/medgeo-bg/medgeo/spatial"
)

// Options are the tunables of the resolution engine. The defaults come from
// tuning against the hospital register corpus; nothing about them is sacred,
// which is why they are configuration and not constants.
type Options struct {
	// AcceptScore is the minimum candidate score for the commercial,
	// structured and free-text tiers.
	AcceptScore int
	// POIAcceptScore is the minimum name-match score for the POI tier.
	POIAcceptScore int
	// DuplicateThreshold is the coordinate cluster size at which results
	// are flagged ambiguous.
	DuplicateThreshold int
	// MinCityRunes is the settlement-name length below which city
	// validation is skipped.
	MinCityRunes int
	// CandidateLimit caps how many candidates are requested per search.
	CandidateLimit int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		AcceptScore:        50,
		POIAcceptScore:     30,
		DuplicateThreshold: 3,
		MinCityRunes:       4,
		CandidateLimit:     10,
	}
}

// Backends are the provider adapters of one resolver, in trust order.
// Commercial and POI may be nil; Structured doubles as the free-text tier.
type Backends struct {
	Commercial Adapter
	Structured StructuredAdapter
	POI        POIAdapter
}

// Resolver drives the tier cascade for single queries: cache first, then
// providers in decreasing trust, then loose fallbacks. One query is fully
// resolved before the next starts; every backend rate limit is per client
// identity, so nothing here is concurrent.
type Resolver struct {
	opts     Options
	backends Backends
	cache    *Cache
	detector *AmbiguityDetector
	scorer   *Scorer
}

// NewResolver wires the engine together around an opened cache.
func NewResolver(cache *Cache, backends Backends, opts Options) *Resolver {
	def := DefaultOptions()

	if opts.AcceptScore == 0 {
		opts.AcceptScore = def.AcceptScore
	}

	if opts.POIAcceptScore == 0 {
		opts.POIAcceptScore = def.POIAcceptScore
	}

	if opts.DuplicateThreshold == 0 {
		opts.DuplicateThreshold = def.DuplicateThreshold
	}

	if opts.MinCityRunes == 0 {
		opts.MinCityRunes = def.MinCityRunes
	}

	if opts.CandidateLimit == 0 {
		opts.CandidateLimit = def.CandidateLimit
	}

	detector := NewAmbiguityDetector(opts.DuplicateThreshold, cache)
	detector.MinCityRunes = opts.MinCityRunes

	return &Resolver{
		opts:     opts,
		backends: backends,
		cache:    cache,
		detector: detector,
		scorer:   &Scorer{MinCityRunes: opts.MinCityRunes},
	}
}

// Cache exposes the resolution cache, for the prune command and tests.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve runs the full cascade for one query. It never returns an error:
// total failure is a result, not an exception, and one bad row must not
// abort a batch.
func (r *Resolver) Resolve(ctx context.Context, q AddressQuery) ResolutionResult {
	key := q.CacheKey()
	if e, ok := r.cache.Get(key); ok {
		return resultFromEntry(e)
	}

	houseNumber := ExtractHouseNumber(q.Street)

	if sc := r.tryCommercial(ctx, q, houseNumber); sc != nil {
		return r.accept(q, sc, StatusResolved)
	}

	if sc := r.tryStructured(ctx, q, houseNumber); sc != nil {
		return r.accept(q, sc, StatusResolved)
	}

	if sc := r.tryFreeText(ctx, q, houseNumber); sc != nil {
		return r.accept(q, sc, StatusResolved)
	}

	if sc := r.tryPOI(ctx, q); sc != nil {
		return r.accept(q, sc, StatusResolved)
	}

	if sc := r.tryLoose(ctx, q); sc != nil {
		return r.accept(q, sc, StatusCityLevel)
	}

	log.Printf("resolve: no tier produced a result for %q", key)

	return ResolutionResult{Status: StatusFailed}
}

func (r *Resolver) accept(q AddressQuery, sc *ScoredCandidate, status Status) ResolutionResult {
	point := sc.Point()

	r.cache.Put(q.CacheKey(), CacheEntry{
		Lat:         sc.Lat,
		Lng:         sc.Lng,
		Provider:    sc.Provider,
		DisplayName: sc.DisplayName,
		Score:       sc.Score,
	})
	r.detector.Observe(sc.Lat, sc.Lng)

	return ResolutionResult{
		Status:      status,
		Point:       &point,
		Provider:    sc.Provider,
		DisplayName: sc.DisplayName,
		Confidence:  sc.Score,
	}
}

func (r *Resolver) tryCommercial(ctx context.Context, q AddressQuery, houseNumber string) *ScoredCandidate {
	if r.backends.Commercial == nil {
		return nil
	}

	cands := r.search(ctx, r.backends.Commercial, fullAddress(q), "commercial")

	return r.pick(cands, q, houseNumber, r.opts.AcceptScore, false)
}

func (r *Resolver) tryStructured(ctx context.Context, q AddressQuery, houseNumber string) *ScoredCandidate {
	if r.backends.Structured == nil {
		return nil
	}

	streetName := ExtractStreetName(q.Street)
	if streetName == "" {
		return nil
	}

	cands, err := r.backends.Structured.SearchStructured(ctx, streetName, q.City, houseNumber, r.opts.CandidateLimit)
	if err != nil {
		logTierError("structured tier", err)

		return nil
	}

	best := r.pick(cands, q, houseNumber, r.opts.AcceptScore, false)
	if best == nil || houseNumber == "" {
		return best
	}

	// Cross-check against free text: when the query carries a house number,
	// a free-text candidate with that exact number is closer to ground
	// truth than the interpolated structured hit.
	free := r.search(ctx, r.backends.Structured, fullAddress(q), "structured cross-check")
	if exact := r.pickExactHouse(free, q, houseNumber); exact != nil {
		return exact
	}

	return best
}

func (r *Resolver) tryFreeText(ctx context.Context, q AddressQuery, houseNumber string) *ScoredCandidate {
	if r.backends.Structured == nil {
		return nil
	}

	streetName := ExtractStreetName(q.Street)

	variants := []string{
		joinParts(q.Street, q.City, "България"),
	}

	if streetName != "" && houseNumber != "" {
		variants = append(variants, joinParts(streetName+" "+houseNumber, q.City, "България"))
	}

	if q.Region != "" {
		variants = append(variants,
			joinParts(q.Street, q.City, q.Region, "България"),
			joinParts(q.Street, q.City, q.Region))
	}

	for _, query := range variants {
		cands := r.search(ctx, r.backends.Structured, query, "free-text tier")
		if sc := r.pick(cands, q, houseNumber, r.opts.AcceptScore, true); sc != nil {
			return sc
		}
	}

	return nil
}

func (r *Resolver) tryPOI(ctx context.Context, q AddressQuery) *ScoredCandidate {
	if r.backends.POI == nil || q.NameHint == "" || q.City == "" {
		return nil
	}

	cands, err := r.backends.POI.SearchPOI(ctx, q.NameHint, q.City)
	if err != nil {
		logTierError("poi tier", err)

		return nil
	}

	var best *ScoredCandidate

	for i := range cands {
		score := poiScore(&cands[i], q.NameHint)
		if score < r.opts.POIAcceptScore {
			continue
		}

		if best == nil || score > best.Score {
			best = &ScoredCandidate{Candidate: cands[i], Score: score}
		}
	}

	if best == nil {
		return nil
	}

	// The POI backend is the lowest-trust source of point results: an
	// ambiguous hit is never cached as definitive and the cascade goes on.
	if reason := r.detector.Check(best, q); reason != "" {
		log.Printf("poi tier: rejecting %q: %s", best.DisplayName, reason)

		return nil
	}

	// Bonus for an exact facility match; capped like every score.
	if best.Score += 20; best.Score > 100 {
		best.Score = 100
	}

	return best
}

func (r *Resolver) tryLoose(ctx context.Context, q AddressQuery) *ScoredCandidate {
	if r.backends.Structured == nil || q.City == "" {
		return nil
	}

	type variant struct {
		query    string
		provider string // empty keeps the candidate's own id
	}

	var variants []variant

	if noNum := trimTrailingNumber(q.Street); noNum != "" {
		variants = append(variants, variant{query: joinParts(noNum, q.City)})
	}

	if q.NameHint != "" {
		variants = append(variants, variant{query: joinParts(q.NameHint, q.City)})
	}

	variants = append(variants, variant{
		query:    joinParts(q.City, "България"),
		provider: ProviderCityFallback,
	})

	for _, v := range variants {
		cands := r.search(ctx, r.backends.Structured, v.query, "loose tier")
		if len(cands) == 0 {
			continue
		}

		// Lowest tier: take the top candidate, preferring one that at
		// least mentions the right settlement.
		idx := 0

		for i := range cands {
			if ValidateCityMatch(&cands[i], q.City, r.opts.MinCityRunes) {
				idx = i

				break
			}
		}

		sc := &ScoredCandidate{
			Candidate: cands[idx],
			Score:     r.scorer.Score(&cands[idx], q, ""),
		}

		if v.provider != "" {
			sc.Provider = v.provider
		} else {
			// Tag the degraded provenance so downstream consumers can
			// tell a loose fallback from a validated address hit.
			sc.Provider += "_lowconf"
		}

		return sc
	}

	return nil
}

// search funnels adapter errors into the uniform "tier failed, advance"
// semantics: an errored backend and an empty backend look identical here.
func (r *Resolver) search(ctx context.Context, a Adapter, query, tier string) []Candidate {
	cands, err := a.Search(ctx, query, r.opts.CandidateLimit)
	if err != nil {
		logTierError(tier, err)

		return nil
	}

	return cands
}

// logTierError records why a tier produced nothing. Rate limits and
// timeouts get called out; those are the failures an operator can act on.
func logTierError(tier string, err error) {
	switch {
	case IsRateLimitError(err):
		log.Printf("%s: backend rate limited, advancing: %v", tier, err)
	case IsTimeoutError(err):
		log.Printf("%s: backend timed out, advancing: %v", tier, err)
	default:
		log.Printf("%s: %v", tier, err)
	}
}

// pick scores candidates and returns the best one passing the acceptance
// gate: minimum score, city validation and the ambiguity check. With
// preferExactHouse set, candidates carrying the exact queried house number
// sort first regardless of raw score.
func (r *Resolver) pick(cands []Candidate, q AddressQuery, houseNumber string, minScore int, preferExactHouse bool) *ScoredCandidate {
	if len(cands) == 0 {
		return nil
	}

	scored := make([]ScoredCandidate, 0, len(cands))
	for i := range cands {
		scored = append(scored, ScoredCandidate{
			Candidate: cands[i],
			Score:     r.scorer.Score(&cands[i], q, houseNumber),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if preferExactHouse && houseNumber != "" {
			ei := strings.EqualFold(scored[i].HouseNumber, houseNumber)
			ej := strings.EqualFold(scored[j].HouseNumber, houseNumber)

			if ei != ej {
				return ei
			}
		}

		return scored[i].Score > scored[j].Score
	})

	for i := range scored {
		sc := &scored[i]

		if sc.Score < minScore {
			// Sorted by score: nothing further down can pass either,
			// unless exact-house preference reordered the list.
			if !preferExactHouse {
				break
			}

			continue
		}

		if reason := r.detector.Check(sc, q); reason != "" {
			sc.RejectReason = reason

			continue
		}

		return sc
	}

	return nil
}

// pickExactHouse finds a gate-passing candidate with the exact queried house
// number, for the structured/free-text cross-check.
func (r *Resolver) pickExactHouse(cands []Candidate, q AddressQuery, houseNumber string) *ScoredCandidate {
	for i := range cands {
		if !strings.EqualFold(cands[i].HouseNumber, houseNumber) {
			continue
		}

		sc := &ScoredCandidate{
			Candidate: cands[i],
			Score:     r.scorer.Score(&cands[i], q, houseNumber),
		}

		if sc.Score < r.opts.AcceptScore {
			continue
		}

		if r.detector.Check(sc, q) == "" {
			return sc
		}
	}

	return nil
}

func poiScore(c *Candidate, name string) int {
	score := 0

	candName := foldText(c.DisplayName)
	queried := foldText(name)

	switch {
	case candName != "" && candName == queried:
		score += 60
	case candName != "" && (strings.Contains(candName, queried) || strings.Contains(queried, candName)):
		score += 50
	}

	switch c.Type {
	case "hospital":
		score += 30
	case "clinic", "doctors":
		score += 20
	}

	return score
}

func resultFromEntry(e CacheEntry) ResolutionResult {
	status := StatusResolved
	if e.Provider == ProviderCityFallback || strings.HasSuffix(e.Provider, "_lowconf") {
		status = StatusCityLevel
	}

	return ResolutionResult{
		Status:      status,
		Point:       &spatial.Point{Lat: e.Lat, Lng: e.Lng},
		Provider:    e.Provider,
		DisplayName: e.DisplayName,
		Confidence:  e.Score,
	}
}

func fullAddress(q AddressQuery) string {
	return joinParts(q.Street, q.City, q.Region, "България")
}

func joinParts(parts ...string) string {
	var kept []string

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, ", ")
}
