package services

import (
	"math"
	"sort"

	"github.com/zatekoja/nearcare/internal/domain/entities"
)

// rankResults orders results ready-first, then by distance, then by name, truncates to
// limit (when positive) and rounds distances to two decimals.
func rankResults(results []entities.RankedResult, limit int) []entities.RankedResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Status.Ready() != b.Status.Ready() {
			return a.Status.Ready()
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Name < b.Name
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].DistanceKm = roundKm(results[i].DistanceKm)
	}
	if results == nil {
		return []entities.RankedResult{}
	}
	return results
}

func roundKm(d float64) float64 {
	return math.Round(d*100) / 100
}

// dedupeByName keeps the first record for each facility name
func dedupeByName(records []entities.AvailabilityRecord) []entities.AvailabilityRecord {
	return dedupeByKey(records, func(rec entities.AvailabilityRecord) string {
		return rec.FacilityName
	})
}

// dedupeByKey keeps the first record for each key, preserving order
func dedupeByKey(records []entities.AvailabilityRecord, key func(entities.AvailabilityRecord) string) []entities.AvailabilityRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]entities.AvailabilityRecord, 0, len(records))
	for _, rec := range records {
		k := key(rec)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// emergencyStatus maps a capacity count to available/unavailable/unknown
func emergencyStatus(capacity *int) entities.Status {
	switch {
	case capacity == nil:
		return entities.StatusUnknown
	case *capacity > 0:
		return entities.StatusAvailable
	default:
		return entities.StatusUnavailable
	}
}
