// Package tabular loads the facility registry from the public-data hospital CSV export.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/repositories"
	"github.com/zatekoja/nearcare/pkg/geo"
)

type column int

const (
	colID column = iota
	colName
	colDepartments
	colAddress
	colPhone
	colLon
	colLat
)

// header aliases; the first entry of each is the export's own column name
var headerAliases = map[column][]string{
	colID:          {"암호화요양기호", "ykiho", "id"},
	colName:        {"요양기관명", "name"},
	colDepartments: {"진료과목코드명", "departments"},
	colAddress:     {"주소", "addr", "address"},
	colPhone:       {"전화번호", "tel_no", "phone"},
	colLon:         {"좌표(X)", "x_pos", "lon", "longitude"},
	colLat:         {"좌표(Y)", "y_pos", "lat", "latitude"},
}

// ErrMissingColumn is returned when a required header is absent
var ErrMissingColumn = errors.New("missing required column")

// Stats summarizes one read of the export
type Stats struct {
	Rows    int
	Kept    int
	Dropped int
	// Encoding is "utf-8" or "euc-kr"
	Encoding string
}

// CSVSource reads facilities from a CSV file on disk
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV facility source
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

var _ repositories.FacilitySource = (*CSVSource)(nil)

// Path returns the file the source reads
func (s *CSVSource) Path() string {
	return s.path
}

// LoadFacilities implements repositories.FacilitySource
func (s *CSVSource) LoadFacilities(ctx context.Context) ([]*entities.Facility, error) {
	facilities, _, err := s.Read(ctx)
	return facilities, err
}

// Read loads facilities and reports row statistics
func (s *CSVSource) Read(ctx context.Context) ([]*entities.Facility, Stats, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open registry csv: %w", err)
	}
	defer f.Close()

	return ReadFacilities(ctx, f)
}

// ReadFacilities parses a CSV export. Rows without a name or usable coordinates are dropped.
func ReadFacilities(ctx context.Context, r io.Reader) ([]*entities.Facility, Stats, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to read registry csv: %w", err)
	}

	stats := Stats{Encoding: "utf-8"}
	var text io.Reader
	if utf8.Valid(raw) {
		text = transform.NewReader(bytes.NewReader(raw), unicode.BOMOverride(transform.Nop))
	} else {
		stats.Encoding = "euc-kr"
		text = transform.NewReader(bytes.NewReader(raw), korean.EUCKR.NewDecoder())
	}

	reader := csv.NewReader(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, stats, fmt.Errorf("failed to read csv header: %w", err)
	}
	index, err := resolveColumns(header)
	if err != nil {
		return nil, stats, err
	}

	var facilities []*entities.Facility
	for {
		if stats.Rows%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rows++
				stats.Dropped++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read csv row: %w", err)
		}
		stats.Rows++

		facility, ok := toFacility(record, index)
		if !ok {
			stats.Dropped++
			continue
		}
		facilities = append(facilities, facility)
		stats.Kept++
	}

	return facilities, stats, nil
}

func resolveColumns(header []string) (map[column]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	index := make(map[column]int, len(headerAliases))
	for col, aliases := range headerAliases {
		for _, alias := range aliases {
			if pos, ok := positions[strings.ToLower(alias)]; ok {
				index[col] = pos
				break
			}
		}
	}

	for _, required := range []column{colName, colLon, colLat} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, headerAliases[required][0])
		}
	}
	return index, nil
}

func toFacility(record []string, index map[column]int) (*entities.Facility, bool) {
	field := func(c column) string {
		pos, ok := index[c]
		if !ok || pos >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[pos])
	}

	name := field(colName)
	if name == "" {
		return nil, false
	}
	lat, err := strconv.ParseFloat(field(colLat), 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(field(colLon), 64)
	if err != nil {
		return nil, false
	}
	loc := geo.Coordinate{Lat: lat, Lon: lon}
	if !loc.Valid() {
		return nil, false
	}

	return &entities.Facility{
		ID:          field(colID),
		Name:        name,
		Departments: field(colDepartments),
		Address:     field(colAddress),
		Phone:       field(colPhone),
		Location:    loc,
	}, true
}
