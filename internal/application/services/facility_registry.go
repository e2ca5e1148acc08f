package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/repositories"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/nearcare/pkg/errors"
	"github.com/zatekoja/nearcare/pkg/geo"
)

// RegistryStatus describes the loaded registry snapshot
type RegistryStatus struct {
	Source     string    `json:"source"`
	Facilities int       `json:"facilities"`
	LoadedAt   time.Time `json:"loaded_at"`
}

type registrySnapshot struct {
	facilities []*entities.Facility
	byName     map[string]*entities.Facility
	loadedAt   time.Time
}

func newRegistrySnapshot(facilities []*entities.Facility, loadedAt time.Time) *registrySnapshot {
	snap := &registrySnapshot{
		facilities: make([]*entities.Facility, 0, len(facilities)),
		byName:     make(map[string]*entities.Facility, len(facilities)),
		loadedAt:   loadedAt,
	}
	for _, f := range facilities {
		if f == nil {
			continue
		}
		snap.facilities = append(snap.facilities, f)
		name := strings.TrimSpace(f.Name)
		if _, exists := snap.byName[name]; !exists {
			snap.byName[name] = f
		}
	}
	return snap
}

// FacilityRegistry is the in-memory, name-indexed set of known facilities.
// Readers never block; Reload builds a new snapshot and swaps it in.
type FacilityRegistry struct {
	source     repositories.FacilitySource
	sourceName string
	metrics    *observability.Metrics

	snapshot atomic.Pointer[registrySnapshot]
	reloadMu sync.Mutex
}

// NewFacilityRegistry creates an empty registry backed by source. Call Reload to populate it.
func NewFacilityRegistry(source repositories.FacilitySource, sourceName string, metrics *observability.Metrics) *FacilityRegistry {
	r := &FacilityRegistry{
		source:     source,
		sourceName: sourceName,
		metrics:    metrics,
	}
	r.snapshot.Store(newRegistrySnapshot(nil, time.Time{}))
	return r
}

// NewStaticFacilityRegistry creates a registry holding facilities, with no backing source
func NewStaticFacilityRegistry(facilities []*entities.Facility) *FacilityRegistry {
	r := &FacilityRegistry{sourceName: "static"}
	r.snapshot.Store(newRegistrySnapshot(facilities, time.Now().UTC()))
	return r
}

// Reload loads the registry from its source and swaps it in.
// On failure the previous snapshot stays in place.
func (r *FacilityRegistry) Reload(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, apperrors.NewContractError("facility registry has no source")
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "registry.reload")
	defer span.End()

	facilities, err := r.source.LoadFacilities(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return 0, apperrors.NewInternalError("failed to load facility registry", err)
	}

	snap := newRegistrySnapshot(facilities, time.Now().UTC())
	r.snapshot.Store(snap)

	observability.RecordRegistrySize(ctx, r.metrics, r.sourceName, len(snap.facilities))
	observability.LoggerFromContext(ctx).Info().
		Str("source", r.sourceName).
		Int("facilities", len(snap.facilities)).
		Msg("facility registry loaded")

	return len(snap.facilities), nil
}

// LookupByExactName returns the first loaded facility whose trimmed name equals name
func (r *FacilityRegistry) LookupByExactName(name string) (*entities.Facility, bool) {
	f, ok := r.snapshot.Load().byName[strings.TrimSpace(name)]
	return f, ok
}

// LookupByNameSubstring returns facilities whose name contains keyword, in load order.
// An empty keyword matches nothing.
func (r *FacilityRegistry) LookupByNameSubstring(keyword string) []*entities.Facility {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}
	var out []*entities.Facility
	for _, f := range r.snapshot.Load().facilities {
		if strings.Contains(f.Name, keyword) {
			out = append(out, f)
		}
	}
	return out
}

// AllWithinRadius returns facilities no farther than radiusKm from center, in load order
func (r *FacilityRegistry) AllWithinRadius(center geo.Coordinate, radiusKm float64) []*entities.Facility {
	var out []*entities.Facility
	for _, f := range r.snapshot.Load().facilities {
		if geo.Distance(center, f.Location) <= radiusKm {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of facilities in the current snapshot
func (r *FacilityRegistry) Len() int {
	return len(r.snapshot.Load().facilities)
}

// LoadedAt returns when the current snapshot was built; zero before the first load
func (r *FacilityRegistry) LoadedAt() time.Time {
	return r.snapshot.Load().loadedAt
}

// Status returns a summary of the current snapshot
func (r *FacilityRegistry) Status() RegistryStatus {
	snap := r.snapshot.Load()
	return RegistryStatus{
		Source:     r.sourceName,
		Facilities: len(snap.facilities),
		LoadedAt:   snap.loadedAt,
	}
}
