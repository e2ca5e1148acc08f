package providers

import (
	"context"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/regions"
	"github.com/zatekoja/nearcare/pkg/geo"
)

// FeedOutcome classifies a single feed call
type FeedOutcome string

const (
	FeedOK     FeedOutcome = "ok"
	FeedEmpty  FeedOutcome = "empty"
	FeedFailed FeedOutcome = "failed"
)

// FeedResult is the outcome of one feed call. Failed results carry no records.
type FeedResult struct {
	Outcome FeedOutcome
	Records []entities.AvailabilityRecord
	Err     error
}

// NewFeedResult builds an ok or empty result from records
func NewFeedResult(records []entities.AvailabilityRecord) FeedResult {
	if len(records) == 0 {
		return FeedResult{Outcome: FeedEmpty}
	}
	return FeedResult{Outcome: FeedOK, Records: records}
}

// FailedFeedResult builds a failed result
func FailedFeedResult(err error) FeedResult {
	return FeedResult{Outcome: FeedFailed, Err: err}
}

// AvailabilityFeed fetches live facility availability from an external provider.
// Implementations bound every call with a timeout and never panic on bad payloads.
type AvailabilityFeed interface {
	// FetchRegion returns emergency room capacity records for one region
	FetchRegion(ctx context.Context, region regions.Code) FeedResult

	// FetchNear returns pharmacy records around center
	FetchNear(ctx context.Context, center geo.Coordinate, radiusKm float64) FeedResult
}
