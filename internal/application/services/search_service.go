package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	"github.com/zatekoja/nearcare/internal/domain/regions"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	"github.com/zatekoja/nearcare/pkg/config"
	apperrors "github.com/zatekoja/nearcare/pkg/errors"
	"github.com/zatekoja/nearcare/pkg/geo"
)

// FacilityIndex is the read side of the facility registry
type FacilityIndex interface {
	LookupByExactName(name string) (*entities.Facility, bool)
	LookupByNameSubstring(keyword string) []*entities.Facility
	AllWithinRadius(center geo.Coordinate, radiusKm float64) []*entities.Facility
}

// RegionSelector picks the feed regions worth querying for a coordinate
type RegionSelector interface {
	Candidates(loc geo.Coordinate, radiusKm float64) []regions.Code
}

// SearchType identifies one of the searchable facility types
type SearchType string

const (
	SearchTypeHospital  SearchType = "hospital"
	SearchTypeEmergency SearchType = "emergency"
	SearchTypePharmacy  SearchType = "pharmacy"
)

// SearchQuery is one caller request. Zero RadiusKm and Limit select the type defaults.
type SearchQuery struct {
	Location *geo.Coordinate
	Keyword  string
	RadiusKm float64
	Limit    int
}

type searchDefaults struct {
	radiusKm float64
	limit    int
}

// SearchService reconciles live feed records with the facility registry and ranks them
type SearchService struct {
	registry    FacilityIndex
	feed        providers.AvailabilityFeed
	selector    RegionSelector
	cfg         config.SearchConfig
	concurrency int
	location    *time.Location
	now         func() time.Time
}

// NewSearchService creates a new search service. concurrency bounds the region fan-out.
func NewSearchService(registry FacilityIndex, feed providers.AvailabilityFeed, selector RegionSelector, cfg config.SearchConfig, concurrency int) *SearchService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SearchService{
		registry:    registry,
		feed:        feed,
		selector:    selector,
		cfg:         cfg,
		concurrency: concurrency,
		location:    cfg.Location(),
		now:         time.Now,
	}
}

func (s *SearchService) defaults(t SearchType) searchDefaults {
	switch t {
	case SearchTypeEmergency:
		return searchDefaults{radiusKm: s.cfg.EmergencyRadiusKm, limit: s.cfg.EmergencyLimit}
	case SearchTypePharmacy:
		return searchDefaults{radiusKm: s.cfg.PharmacyRadiusKm, limit: s.cfg.PharmacyLimit}
	default:
		return searchDefaults{radiusKm: s.cfg.HospitalRadiusKm, limit: s.cfg.HospitalLimit}
	}
}

// normalize validates q and fills in per-type defaults
func (s *SearchService) normalize(t SearchType, q SearchQuery) (SearchQuery, error) {
	if q.Location == nil {
		return q, apperrors.NewValidationError("lat and lon are required")
	}
	if !q.Location.Valid() {
		return q, apperrors.NewValidationError("lat must be within [-90,90] and lon within [-180,180]")
	}

	d := s.defaults(t)
	switch {
	case q.RadiusKm < 0:
		return q, apperrors.NewValidationError("radius must not be negative")
	case q.RadiusKm == 0:
		q.RadiusKm = d.radiusKm
	case s.cfg.MaxRadiusKm > 0 && q.RadiusKm > s.cfg.MaxRadiusKm:
		return q, apperrors.NewValidationError(fmt.Sprintf("radius must not exceed %g km", s.cfg.MaxRadiusKm))
	}

	switch {
	case q.Limit < 0:
		return q, apperrors.NewValidationError("limit must not be negative")
	case q.Limit == 0 || (d.limit > 0 && q.Limit > d.limit):
		q.Limit = d.limit
	}

	q.Keyword = strings.TrimSpace(q.Keyword)
	return q, nil
}

// SearchHospitals searches the registry only, nearest first
func (s *SearchService) SearchHospitals(ctx context.Context, q SearchQuery) ([]entities.RankedResult, error) {
	if s.registry == nil {
		return nil, apperrors.NewContractError("search service has no facility registry")
	}
	q, err := s.normalize(SearchTypeHospital, q)
	if err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "search.hospitals")
	defer span.End()

	center := *q.Location
	var candidates []*entities.Facility
	if q.Keyword != "" {
		candidates = s.registry.LookupByNameSubstring(q.Keyword)
	} else {
		candidates = s.registry.AllWithinRadius(center, q.RadiusKm)
	}

	results := make([]entities.RankedResult, 0, len(candidates))
	for _, f := range candidates {
		d := geo.Distance(center, f.Location)
		if d > q.RadiusKm {
			continue
		}
		r := entities.RankedResult{
			ID:         f.ID,
			Name:       f.Name,
			Address:    f.Address,
			Phone:      f.Phone,
			Location:   f.Location,
			DistanceKm: d,
		}
		if f.Departments != "" {
			r.Extra = map[string]interface{}{"departments": f.Departments}
		}
		results = append(results, r)
	}

	observability.SetSpanAttributes(span, attribute.Int("search.results", len(results)))
	return rankResults(results, q.Limit), nil
}

// SearchEmergency fans out one feed call per candidate region and ranks emergency rooms
// with free beds first. Failed region calls only reduce the result set.
func (s *SearchService) SearchEmergency(ctx context.Context, q SearchQuery) ([]entities.RankedResult, error) {
	if err := s.checkLiveWiring(); err != nil {
		return nil, err
	}
	if s.selector == nil {
		return nil, apperrors.NewContractError("search service has no region selector")
	}
	q, err := s.normalize(SearchTypeEmergency, q)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "search.emergency")
	defer span.End()

	center := *q.Location
	codes := s.selector.Candidates(center, q.RadiusKm)
	observability.SetSpanAttributes(span, attribute.Int("search.regions", len(codes)))
	if len(codes) == 0 {
		return []entities.RankedResult{}, nil
	}

	outcomes := make([]providers.FeedResult, len(codes))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, code := range codes {
		g.Go(func() error {
			outcomes[i] = s.feed.FetchRegion(ctx, code)
			return nil
		})
	}
	_ = g.Wait()

	var records []entities.AvailabilityRecord
	failed := 0
	for _, o := range outcomes {
		if o.Outcome == providers.FeedFailed {
			failed++
			continue
		}
		records = append(records, o.Records...)
	}
	if failed > 0 {
		observability.LoggerFromContext(ctx).Warn().
			Int("regions", len(codes)).
			Int("failed", failed).
			Msg("emergency search degraded by failed region calls")
	}

	var results []entities.RankedResult
	for _, rec := range dedupeByName(records) {
		if q.Keyword != "" && !strings.Contains(rec.FacilityName, q.Keyword) {
			continue
		}
		f, ok := s.registry.LookupByExactName(rec.FacilityName)
		if !ok {
			continue
		}
		d := geo.Distance(center, f.Location)
		if d > q.RadiusKm {
			continue
		}
		results = append(results, entities.RankedResult{
			ID:         f.ID,
			Name:       f.Name,
			Address:    f.Address,
			Phone:      firstNonEmpty(rec.Phone, f.Phone),
			Location:   f.Location,
			DistanceKm: d,
			Status:     emergencyStatus(rec.Capacity),
			Extra:      s.emergencyExtra(rec),
		})
	}

	observability.SetSpanAttributes(span,
		attribute.Int("search.records", len(records)),
		attribute.Int("search.results", len(results)),
	)
	return rankResults(results, q.Limit), nil
}

// SearchPharmacies queries the feed around the caller and ranks open pharmacies first.
// Records without their own coordinates borrow them from the registry by name.
func (s *SearchService) SearchPharmacies(ctx context.Context, q SearchQuery) ([]entities.RankedResult, error) {
	if err := s.checkLiveWiring(); err != nil {
		return nil, err
	}
	q, err := s.normalize(SearchTypePharmacy, q)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "search.pharmacies")
	defer span.End()

	center := *q.Location
	outcome := s.feed.FetchNear(ctx, center, q.RadiusKm)
	if outcome.Outcome == providers.FeedFailed {
		return []entities.RankedResult{}, nil
	}

	now := s.now().In(s.location)
	var results []entities.RankedResult
	for _, rec := range dedupeByKey(outcome.Records, pharmacyKey) {
		if q.Keyword != "" && !strings.Contains(rec.FacilityName, q.Keyword) {
			continue
		}

		r := entities.RankedResult{
			ID:      rec.Field("hpid"),
			Name:    rec.FacilityName,
			Address: rec.Address,
			Phone:   rec.Phone,
		}
		f, known := s.registry.LookupByExactName(rec.FacilityName)
		switch {
		case rec.Location != nil:
			r.Location = *rec.Location
		case known:
			r.Location = f.Location
		default:
			continue
		}
		if known {
			r.Address = firstNonEmpty(r.Address, f.Address)
			r.Phone = firstNonEmpty(r.Phone, f.Phone)
		}

		r.DistanceKm = geo.Distance(center, r.Location)
		if r.DistanceKm > q.RadiusKm {
			continue
		}

		r.Status = pharmacyStatus(rec.Fields, now)
		hours, summary := weeklyHours(rec.Fields)
		r.Extra = map[string]interface{}{
			"hours":         hours,
			"hours_summary": summary,
		}
		results = append(results, r)
	}

	observability.SetSpanAttributes(span, attribute.Int("search.results", len(results)))
	return rankResults(results, q.Limit), nil
}

func (s *SearchService) checkLiveWiring() error {
	if s.registry == nil {
		return apperrors.NewContractError("search service has no facility registry")
	}
	if s.feed == nil {
		return apperrors.NewContractError("search service has no availability feed")
	}
	return nil
}

// capacity fields reported alongside hvec, copied into extras when numeric
var emergencyCapacityFields = []string{"hvoc", "hvcc", "hvncc", "hvgc"}

func (s *SearchService) emergencyExtra(rec entities.AvailabilityRecord) map[string]interface{} {
	extra := make(map[string]interface{})
	if rec.Capacity != nil {
		extra["capacity"] = *rec.Capacity
	}
	if hpid := rec.Field("hpid"); hpid != "" {
		extra["hpid"] = hpid
	}
	if updated := rec.Field("hvidate"); updated != "" {
		if t, err := time.ParseInLocation("20060102150405", updated, s.location); err == nil {
			extra["updated_at"] = t.Format(time.RFC3339)
		} else {
			extra["updated_at"] = updated
		}
	}
	for _, key := range emergencyCapacityFields {
		if n, err := strconv.Atoi(strings.TrimSpace(rec.Field(key))); err == nil {
			extra[key] = n
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// pharmacy names repeat across branches, so records are keyed by provider id when present
func pharmacyKey(rec entities.AvailabilityRecord) string {
	if hpid := rec.Field("hpid"); hpid != "" {
		return hpid
	}
	return rec.FacilityName + "|" + rec.Address
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
