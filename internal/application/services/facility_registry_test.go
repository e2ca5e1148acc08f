package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	apperrors "github.com/zatekoja/nearcare/pkg/errors"
	"github.com/zatekoja/nearcare/pkg/geo"
)

var registryCenter = geo.Coordinate{Lat: 37.50, Lon: 126.70}

func facilityAt(id, name string, northKm float64) *entities.Facility {
	return &entities.Facility{
		ID:       id,
		Name:     name,
		Address:  name + " 주소",
		Phone:    "032-000-" + id,
		Location: geo.Offset(registryCenter, northKm, 0),
	}
}

type stubSource struct {
	facilities []*entities.Facility
	err        error
}

func (s *stubSource) LoadFacilities(ctx context.Context) ([]*entities.Facility, error) {
	return s.facilities, s.err
}

func TestFacilityRegistry_LookupByExactName(t *testing.T) {
	first := facilityAt("1", "중앙의원", 1)
	second := facilityAt("2", "중앙의원", 2)
	registry := NewStaticFacilityRegistry([]*entities.Facility{first, second, facilityAt("3", "서울약국", 0.5)})

	got, ok := registry.LookupByExactName(" 중앙의원 ")
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = registry.LookupByExactName("중앙")
	assert.False(t, ok)
}

func TestFacilityRegistry_LookupByNameSubstring(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{
		facilityAt("1", "인하대병원", 1),
		facilityAt("2", "가천대길병원", 2),
		facilityAt("3", "서울약국", 0.5),
	})

	got := registry.LookupByNameSubstring("병원")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)

	assert.Empty(t, registry.LookupByNameSubstring(""))
	assert.Empty(t, registry.LookupByNameSubstring("치과"))
}

func TestFacilityRegistry_AllWithinRadius(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{
		facilityAt("near", "가까운의원", 2.99),
		facilityAt("far", "먼의원", 3.01),
	})

	got := registry.AllWithinRadius(registryCenter, 3.0)

	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
}

func TestFacilityRegistry_Reload(t *testing.T) {
	source := &stubSource{facilities: []*entities.Facility{facilityAt("1", "인하대병원", 1)}}
	registry := NewFacilityRegistry(source, "csv", nil)
	assert.Equal(t, 0, registry.Len())
	assert.True(t, registry.LoadedAt().IsZero())

	n, err := registry.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, registry.LoadedAt().IsZero())

	source.err = errors.New("file vanished")
	_, err = registry.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, registry.Len(), "failed reload keeps the previous snapshot")

	status := registry.Status()
	assert.Equal(t, "csv", status.Source)
	assert.Equal(t, 1, status.Facilities)
}

func TestFacilityRegistry_ReloadWithoutSource(t *testing.T) {
	registry := NewStaticFacilityRegistry(nil)

	_, err := registry.Reload(context.Background())

	assert.Equal(t, apperrors.ErrorTypeContract, apperrors.TypeOf(err))
}

func TestFacilityRegistry_ConcurrentReadsDuringReload(t *testing.T) {
	source := &stubSource{facilities: []*entities.Facility{
		facilityAt("1", "인하대병원", 1),
		facilityAt("2", "가천대길병원", 2),
	}}
	registry := NewFacilityRegistry(source, "csv", nil)
	_, err := registry.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, ok := registry.LookupByExactName("인하대병원")
				assert.True(t, ok)
				assert.Len(t, registry.AllWithinRadius(registryCenter, 5), 2)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := registry.Reload(context.Background())
		require.NoError(t, err)
	}
	wg.Wait()
}
