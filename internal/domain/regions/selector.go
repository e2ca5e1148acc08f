package regions

import (
	"math"

	"github.com/zatekoja/nearcare/pkg/geo"
)

// Band is a latitude band split into longitude cells.
// Adjacent bands share their boundary latitude.
type Band struct {
	MinLat float64
	MaxLat float64
	Cells  []Cell
}

// Cell lists every region whose extent touches it
type Cell struct {
	MinLon  float64
	MaxLon  float64
	Regions []Code

	members []int
}

// Options controls the band grid
type Options struct {
	BandHeight float64
	CellWidth  float64
	// Tolerance widens every cell on lookup so points near an edge also match the neighbour
	Tolerance float64
}

// DefaultOptions returns the grid used in production
func DefaultOptions() Options {
	return Options{BandHeight: 0.5, CellWidth: 0.5, Tolerance: 0.05}
}

// Selector maps a coordinate to the regions worth querying on the region-scoped feed.
// It is immutable after construction and safe for concurrent use.
type Selector struct {
	extents   []Extent
	bands     []Band
	tolerance float64
}

// NewSelector builds the band grid over the union of extents
func NewSelector(extents []Extent, opts Options) *Selector {
	if opts.BandHeight <= 0 || opts.CellWidth <= 0 {
		opts = DefaultOptions()
	}
	s := &Selector{
		extents:   append([]Extent(nil), extents...),
		tolerance: math.Max(0, opts.Tolerance),
	}
	if len(extents) == 0 {
		return s
	}

	minLat, maxLat := extents[0].MinLat, extents[0].MaxLat
	minLon, maxLon := extents[0].MinLon, extents[0].MaxLon
	for _, e := range extents[1:] {
		minLat = math.Min(minLat, e.MinLat)
		maxLat = math.Max(maxLat, e.MaxLat)
		minLon = math.Min(minLon, e.MinLon)
		maxLon = math.Max(maxLon, e.MaxLon)
	}

	latStart := math.Floor(minLat/opts.BandHeight) * opts.BandHeight
	lonStart := math.Floor(minLon/opts.CellWidth) * opts.CellWidth

	for i := 0; ; i++ {
		bandMin := latStart + float64(i)*opts.BandHeight
		if bandMin > maxLat {
			break
		}
		band := Band{MinLat: bandMin, MaxLat: bandMin + opts.BandHeight}

		for j := 0; ; j++ {
			cellMin := lonStart + float64(j)*opts.CellWidth
			if cellMin > maxLon {
				break
			}
			cell := Cell{MinLon: cellMin, MaxLon: cellMin + opts.CellWidth}
			for idx, e := range s.extents {
				if e.MinLat <= band.MaxLat && e.MaxLat >= band.MinLat &&
					e.MinLon <= cell.MaxLon && e.MaxLon >= cell.MinLon {
					cell.members = append(cell.members, idx)
					cell.Regions = append(cell.Regions, e.Region)
				}
			}
			band.Cells = append(band.Cells, cell)
		}
		s.bands = append(s.bands, band)
	}

	return s
}

// NewDefaultSelector returns a selector over DefaultExtents
func NewDefaultSelector() *Selector {
	return NewSelector(DefaultExtents, DefaultOptions())
}

// Candidates returns the regions to query for a search of radiusKm around loc, in extent
// table order. Every cell is widened by the radius so facilities across a border are
// still fetched. Empty means loc is outside the covered territory.
func (s *Selector) Candidates(loc geo.Coordinate, radiusKm float64) []Code {
	if !loc.Valid() {
		return nil
	}
	if s.collect(loc, s.tolerance, s.tolerance) == nil {
		return nil
	}

	latPad, lonPad := radiusPadding(loc, radiusKm)
	hit := s.collect(loc, s.tolerance+latPad, s.tolerance+lonPad)

	out := make([]Code, 0, 4)
	for idx, ok := range hit {
		if ok {
			out = append(out, s.extents[idx].Region)
		}
	}
	return out
}

// collect marks the extents of every cell within the padded window around loc.
// Nil means no cell matched.
func (s *Selector) collect(loc geo.Coordinate, latPad, lonPad float64) []bool {
	hit := make([]bool, len(s.extents))
	found := false
	for _, b := range s.bands {
		if loc.Lat < b.MinLat-latPad || loc.Lat > b.MaxLat+latPad {
			continue
		}
		for _, c := range b.Cells {
			if loc.Lon < c.MinLon-lonPad || loc.Lon > c.MaxLon+lonPad {
				continue
			}
			for _, idx := range c.members {
				hit[idx] = true
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return hit
}

// radiusPadding converts a radius into degree offsets. Longitude uses the poleward edge
// of the window, where a degree is shortest.
func radiusPadding(loc geo.Coordinate, radiusKm float64) (latDeg, lonDeg float64) {
	if radiusKm <= 0 {
		return 0, 0
	}
	latDeg = radiusKm / geo.EarthRadiusKm * 180 / math.Pi
	edge := math.Min(math.Abs(loc.Lat)+latDeg, 89)
	lonDeg = latDeg / math.Cos(edge*math.Pi/180)
	return latDeg, lonDeg
}

// Bands returns the band grid
func (s *Selector) Bands() []Band {
	return s.bands
}

// Regions returns every region the selector knows, in table order
func (s *Selector) Regions() []Code {
	out := make([]Code, len(s.extents))
	for i, e := range s.extents {
		out[i] = e.Region
	}
	return out
}
