package entities

import "github.com/zatekoja/nearcare/pkg/geo"

// Facility is a registry entry: a known medical facility with a stable location.
// Names are not unique across the registry.
type Facility struct {
	ID          string         `json:"id" db:"ykiho"`
	Name        string         `json:"name" db:"name"`
	Departments string         `json:"departments,omitempty" db:"departments"`
	Address     string         `json:"address" db:"addr"`
	Phone       string         `json:"phone" db:"tel_no"`
	Location    geo.Coordinate `json:"location" db:"-"`
}
