package entities

import "github.com/zatekoja/nearcare/pkg/geo"

// FacilityKind identifies which live feed an availability record came from
type FacilityKind string

const (
	FacilityKindEmergency FacilityKind = "emergency"
	FacilityKindPharmacy  FacilityKind = "pharmacy"
)

// AvailabilityRecord is one facility entry from a live feed, already flattened.
// It exists only for the duration of a single search.
type AvailabilityRecord struct {
	Kind         FacilityKind
	FacilityName string
	// Capacity is nil when the feed omitted the count or it did not parse
	Capacity *int
	Address  string
	Phone    string
	// Location is set only when the feed supplies coordinates itself
	Location *geo.Coordinate
	Fields   map[string]string
}

// Field returns a raw provider field, or "" when absent
func (r AvailabilityRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}
