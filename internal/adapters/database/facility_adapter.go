package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/repositories"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/nearcare/pkg/errors"
	"github.com/zatekoja/nearcare/pkg/geo"
)

const (
	hospitalsTable = "hospitals"
	// InsertBatchSize is the number of rows written per INSERT statement
	InsertBatchSize = 1000
)

const createHospitalsTable = `
	CREATE TABLE IF NOT EXISTS hospitals (
		id          BIGSERIAL PRIMARY KEY,
		ykiho       TEXT,
		name        TEXT NOT NULL,
		departments TEXT,
		addr        TEXT,
		tel_no      TEXT,
		x_pos       DOUBLE PRECISION,
		y_pos       DOUBLE PRECISION
	)
`

// FacilityAdapter implements the FacilityStore interface on the hospitals table
type FacilityAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewFacilityAdapter creates a new facility adapter. metrics may be nil.
func NewFacilityAdapter(client *postgres.Client, metrics *observability.Metrics) *FacilityAdapter {
	return &FacilityAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

var _ repositories.FacilityStore = (*FacilityAdapter)(nil)

// EnsureSchema creates the hospitals table when it does not exist
func (a *FacilityAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, createHospitalsTable); err != nil {
		return apperrors.NewInternalError("failed to create hospitals table", err)
	}
	return nil
}

// LoadFacilities returns every stored facility with coordinates, in insertion order
func (a *FacilityAdapter) LoadFacilities(ctx context.Context) ([]*entities.Facility, error) {
	start := time.Now()
	defer func() {
		observability.RecordDBMetric(ctx, a.metrics, "select_hospitals", time.Since(start))
	}()

	query, args, err := a.db.Select(
		"ykiho", "name", "departments", "addr", "tel_no", "x_pos", "y_pos",
	).From(hospitalsTable).
		Where(
			goqu.C("x_pos").IsNotNull(),
			goqu.C("y_pos").IsNotNull(),
		).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load facilities", err)
	}
	defer rows.Close()

	var facilities []*entities.Facility
	for rows.Next() {
		var ykiho, departments, addr, telNo sql.NullString
		var name string
		var xPos, yPos float64

		if err := rows.Scan(&ykiho, &name, &departments, &addr, &telNo, &xPos, &yPos); err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}

		loc := geo.Coordinate{Lat: yPos, Lon: xPos}
		if name == "" || !loc.Valid() {
			continue
		}
		facilities = append(facilities, &entities.Facility{
			ID:          ykiho.String,
			Name:        name,
			Departments: departments.String,
			Address:     addr.String,
			Phone:       telNo.String,
			Location:    loc,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}

	return facilities, nil
}

// ReplaceAll truncates the table and inserts facilities in batches inside one transaction
func (a *FacilityAdapter) ReplaceAll(ctx context.Context, facilities []*entities.Facility, progress func(written int)) (int, error) {
	start := time.Now()
	defer func() {
		observability.RecordDBMetric(ctx, a.metrics, "replace_hospitals", time.Since(start))
	}()

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE hospitals RESTART IDENTITY"); err != nil {
		return 0, apperrors.NewInternalError("failed to truncate hospitals", err)
	}

	written := 0
	for i := 0; i < len(facilities); i += InsertBatchSize {
		end := i + InsertBatchSize
		if end > len(facilities) {
			end = len(facilities)
		}

		rows := make([]interface{}, 0, end-i)
		for _, f := range facilities[i:end] {
			rows = append(rows, goqu.Record{
				"ykiho":       f.ID,
				"name":        f.Name,
				"departments": f.Departments,
				"addr":        f.Address,
				"tel_no":      f.Phone,
				"x_pos":       f.Location.Lon,
				"y_pos":       f.Location.Lat,
			})
		}

		query, args, err := a.db.Insert(hospitalsTable).Rows(rows...).ToSQL()
		if err != nil {
			return 0, apperrors.NewInternalError("failed to build insert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, apperrors.NewInternalError("failed to insert facilities", err)
		}

		written += end - i
		if progress != nil {
			progress(written)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewInternalError("failed to commit facilities", err)
	}
	return written, nil
}
