package repositories

import (
	"context"

	"github.com/zatekoja/nearcare/internal/domain/entities"
)

// FacilitySource loads the full facility registry from its backing store
type FacilitySource interface {
	// LoadFacilities returns every facility with usable coordinates, in load order
	LoadFacilities(ctx context.Context) ([]*entities.Facility, error)
}

// FacilityStore is a FacilitySource that can also be rewritten in bulk
type FacilityStore interface {
	FacilitySource

	// ReplaceAll swaps the stored registry for facilities; progress is called after each batch
	ReplaceAll(ctx context.Context, facilities []*entities.Facility, progress func(written int)) (int, error)
}
