package availability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	"github.com/zatekoja/nearcare/internal/domain/regions"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/publicdata"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	"github.com/zatekoja/nearcare/pkg/circuitbreaker"
	"github.com/zatekoja/nearcare/pkg/geo"
)

// Endpoint names used for breakers, spans and metrics
const (
	EndpointEmergency = "emergency_beds"
	EndpointPharmacy  = "pharmacy_location"
)

// ErrMissingServiceKey is returned when no portal key is configured for an endpoint
var ErrMissingServiceKey = errors.New("service key not configured")

// ItemFetcher performs one portal call
type ItemFetcher interface {
	Get(ctx context.Context, path, serviceKey string, params url.Values) ([]publicdata.Item, error)
}

// Config holds per-endpoint feed settings
type Config struct {
	EmergencyKey  string
	PharmacyKey   string
	Timeout       time.Duration
	EmergencyRows int
	PharmacyRows  int
}

// Feed implements providers.AvailabilityFeed on top of the public data portal
type Feed struct {
	client   ItemFetcher
	cfg      Config
	breakers *circuitbreaker.Manager
	metrics  *observability.Metrics
}

// NewFeed creates a new availability feed. breakers and metrics may be nil.
func NewFeed(client ItemFetcher, cfg Config, breakers *circuitbreaker.Manager, metrics *observability.Metrics) *Feed {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.EmergencyRows <= 0 {
		cfg.EmergencyRows = 100
	}
	if cfg.PharmacyRows <= 0 {
		cfg.PharmacyRows = 200
	}
	return &Feed{
		client:   client,
		cfg:      cfg,
		breakers: breakers,
		metrics:  metrics,
	}
}

var _ providers.AvailabilityFeed = (*Feed)(nil)

// FetchRegion returns live emergency room bed counts for one region
func (f *Feed) FetchRegion(ctx context.Context, region regions.Code) providers.FeedResult {
	params := url.Values{}
	params.Set("STAGE1", string(region))
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(f.cfg.EmergencyRows))

	return f.fetch(ctx, call{
		endpoint: EndpointEmergency,
		path:     publicdata.EmergencyBedsPath,
		key:      f.cfg.EmergencyKey,
		params:   params,
		kind:     entities.FacilityKindEmergency,
		attrs:    []attribute.KeyValue{attribute.String("feed.region", string(region))},
	})
}

// FetchNear returns pharmacies the portal orders by distance from center.
// The portal takes no radius; radiusKm is only recorded on the span.
func (f *Feed) FetchNear(ctx context.Context, center geo.Coordinate, radiusKm float64) providers.FeedResult {
	params := url.Values{}
	params.Set("WGS84_LAT", strconv.FormatFloat(center.Lat, 'f', 6, 64))
	params.Set("WGS84_LON", strconv.FormatFloat(center.Lon, 'f', 6, 64))
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(f.cfg.PharmacyRows))

	return f.fetch(ctx, call{
		endpoint: EndpointPharmacy,
		path:     publicdata.PharmacyLocationPath,
		key:      f.cfg.PharmacyKey,
		params:   params,
		kind:     entities.FacilityKindPharmacy,
		attrs:    []attribute.KeyValue{attribute.Float64("feed.radius_km", radiusKm)},
	})
}

type call struct {
	endpoint string
	path     string
	key      string
	params   url.Values
	kind     entities.FacilityKind
	attrs    []attribute.KeyValue
}

func (f *Feed) fetch(ctx context.Context, c call) providers.FeedResult {
	ctx, span := observability.StartSpan(ctx, "feed."+c.endpoint)
	defer span.End()
	observability.SetSpanAttributes(span, c.attrs...)

	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	result := f.execute(ctx, c)

	observability.RecordFeedCall(ctx, f.metrics, c.endpoint, string(result.Outcome), time.Since(start))
	observability.SetSpanAttributes(span,
		attribute.String("feed.outcome", string(result.Outcome)),
		attribute.Int("feed.records", len(result.Records)),
	)

	if result.Outcome == providers.FeedFailed {
		observability.RecordError(span, result.Err)
		logger.Warn().
			Err(result.Err).
			Str("endpoint", c.endpoint).
			Dur("elapsed", time.Since(start)).
			Msg("availability feed call failed")
	} else {
		logger.Debug().
			Str("endpoint", c.endpoint).
			Int("records", len(result.Records)).
			Dur("elapsed", time.Since(start)).
			Msg("availability feed call completed")
	}
	return result
}

func (f *Feed) execute(ctx context.Context, c call) providers.FeedResult {
	if f.client == nil {
		return providers.FailedFeedResult(fmt.Errorf("%s: no portal client", c.endpoint))
	}
	if strings.TrimSpace(c.key) == "" {
		return providers.FailedFeedResult(fmt.Errorf("%s: %w", c.endpoint, ErrMissingServiceKey))
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	get := func() (interface{}, error) {
		return f.client.Get(callCtx, c.path, c.key, c.params)
	}

	var (
		out interface{}
		err error
	)
	if f.breakers != nil {
		out, err = f.breakers.Get(c.endpoint).Execute(callCtx, get)
	} else {
		out, err = get()
	}
	if err != nil {
		return providers.FailedFeedResult(fmt.Errorf("%s: %w", c.endpoint, err))
	}

	items, _ := out.([]publicdata.Item)
	records := make([]entities.AvailabilityRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := toRecord(c.kind, item); ok {
			records = append(records, rec)
		}
	}
	return providers.NewFeedResult(records)
}

func toRecord(kind entities.FacilityKind, item publicdata.Item) (entities.AvailabilityRecord, bool) {
	name := strings.TrimSpace(item["dutyName"])
	if name == "" {
		return entities.AvailabilityRecord{}, false
	}

	rec := entities.AvailabilityRecord{
		Kind:         kind,
		FacilityName: name,
		Address:      item["dutyAddr"],
		Location:     parseLocation(item),
		Fields:       make(map[string]string, len(item)),
	}
	for k, v := range item {
		rec.Fields[k] = v
	}

	switch kind {
	case entities.FacilityKindEmergency:
		rec.Capacity = parseCapacity(item["hvec"])
		rec.Phone = firstNonEmpty(item["dutyTel3"], item["dutyTel1"])
	default:
		rec.Phone = firstNonEmpty(item["dutyTel1"], item["dutyTel3"])
	}
	return rec, true
}

// parseCapacity returns nil for absent or unparsable counts and clamps negatives to zero.
// Whole numbers written as floats ("3.0") are accepted; a fractional bed count is not a
// count and yields nil.
func parseCapacity(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil
		}
		n = int(f)
	}
	if n < 0 {
		n = 0
	}
	return &n
}

func parseLocation(item publicdata.Item) *geo.Coordinate {
	pairs := [][2]string{
		{"wgs84Lat", "wgs84Lon"},
		{"latitude", "longitude"},
	}
	for _, p := range pairs {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(item[p[0]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(item[p[1]]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		c := geo.Coordinate{Lat: lat, Lon: lon}
		if c.Valid() {
			return &c
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
