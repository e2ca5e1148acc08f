package entities

import "github.com/zatekoja/nearcare/pkg/geo"

// Status is the derived availability of a ranked facility
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusUnknown     Status = "unknown"
)

// Ready reports whether the status sorts ahead of the rest
func (s Status) Ready() bool {
	return s == StatusAvailable || s == StatusOpen
}

// RankedResult is one entry of a search response. The order of a result slice is significant.
type RankedResult struct {
	ID         string                 `json:"id,omitempty"`
	Name       string                 `json:"name"`
	Address    string                 `json:"address"`
	Phone      string                 `json:"phone"`
	Location   geo.Coordinate         `json:"location"`
	DistanceKm float64                `json:"distance_km"`
	Status     Status                 `json:"status,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}
