package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	"github.com/zatekoja/nearcare/internal/domain/regions"
	"github.com/zatekoja/nearcare/pkg/config"
	apperrors "github.com/zatekoja/nearcare/pkg/errors"
	"github.com/zatekoja/nearcare/pkg/geo"
)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) FetchRegion(ctx context.Context, region regions.Code) providers.FeedResult {
	args := m.Called(ctx, region)
	return args.Get(0).(providers.FeedResult)
}

func (m *mockFeed) FetchNear(ctx context.Context, center geo.Coordinate, radiusKm float64) providers.FeedResult {
	args := m.Called(ctx, center, radiusKm)
	return args.Get(0).(providers.FeedResult)
}

type stubSelector []regions.Code

func (s stubSelector) Candidates(loc geo.Coordinate, radiusKm float64) []regions.Code {
	return s
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		HospitalRadiusKm:  3,
		EmergencyRadiusKm: 30,
		PharmacyRadiusKm:  3,
		MaxRadiusKm:       50,
		HospitalLimit:     100,
		EmergencyLimit:    10,
		PharmacyLimit:     20,
		TimeZone:          "Asia/Seoul",
	}
}

func erRecord(name string, capacity *int) entities.AvailabilityRecord {
	fields := map[string]string{"dutyName": name}
	if capacity != nil {
		fields["hvec"] = fmt.Sprint(*capacity)
	}
	return entities.AvailabilityRecord{
		Kind:         entities.FacilityKindEmergency,
		FacilityName: name,
		Capacity:     capacity,
		Fields:       fields,
	}
}

func intPtr(n int) *int { return &n }

func centerPtr() *geo.Coordinate {
	c := registryCenter
	return &c
}

func TestSearchEmergency_RadiusBoundary(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{
		facilityAt("in", "안쪽병원", 2.99),
		facilityAt("out", "바깥병원", 3.01),
	})
	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		erRecord("안쪽병원", intPtr(1)),
		erRecord("바깥병원", intPtr(1)),
	}))
	svc := NewSearchService(registry, feed, stubSelector{regions.Incheon}, testSearchConfig(), 4)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr(), RadiusKm: 3.0})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "in", results[0].ID)
	assert.Equal(t, 2.99, results[0].DistanceKm)
	for _, r := range results {
		assert.LessOrEqual(t, r.DistanceKm, 3.0)
	}
}

func TestSearchEmergency_DedupesAndIsolatesFailures(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{
		facilityAt("a", "가천대길병원", 5),
		facilityAt("b", "인하대병원", 1),
		facilityAt("c", "나은병원", 2),
	})
	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		erRecord("가천대길병원", intPtr(4)),
	}))
	feed.On("FetchRegion", mock.Anything, regions.Seoul).Return(providers.FailedFeedResult(context.DeadlineExceeded))
	feed.On("FetchRegion", mock.Anything, regions.Gyeonggi).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		erRecord("가천대길병원", intPtr(0)),
		erRecord("인하대병원", intPtr(0)),
		erRecord("나은병원", nil),
		erRecord("미등록병원", intPtr(9)),
	}))
	svc := NewSearchService(registry, feed, stubSelector{regions.Incheon, regions.Seoul, regions.Gyeonggi}, testSearchConfig(), 2)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "가천대길병원", results[0].Name)
	assert.Equal(t, entities.StatusAvailable, results[0].Status)
	assert.Equal(t, 4, results[0].Extra["capacity"])

	assert.Equal(t, "인하대병원", results[1].Name)
	assert.Equal(t, entities.StatusUnavailable, results[1].Status)
	assert.Equal(t, "나은병원", results[2].Name)
	assert.Equal(t, entities.StatusUnknown, results[2].Status)

	feed.AssertNumberOfCalls(t, "FetchRegion", 3)
}

func TestSearchEmergency_OutsideTerritory(t *testing.T) {
	feed := &mockFeed{}
	svc := NewSearchService(NewStaticFacilityRegistry(nil), feed, regions.NewDefaultSelector(), testSearchConfig(), 4)
	tokyo := geo.Coordinate{Lat: 35.68, Lon: 139.69}

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: &tokyo})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	feed.AssertNotCalled(t, "FetchRegion", mock.Anything, mock.Anything)
}

func TestSearchEmergency_DefaultSelectorQueriesIncheon(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{facilityAt("a", "가천대길병원", 1)})
	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		erRecord("가천대길병원", intPtr(2)),
	}))
	feed.On("FetchRegion", mock.Anything, mock.Anything).Return(providers.NewFeedResult(nil))
	svc := NewSearchService(registry, feed, regions.NewDefaultSelector(), testSearchConfig(), 4)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	require.Len(t, results, 1)
	feed.AssertCalled(t, "FetchRegion", mock.Anything, regions.Incheon)
}

func TestSearchEmergency_RadiusReachesNeighbourRegion(t *testing.T) {
	user := geo.Coordinate{Lat: 37.55, Lon: 127.10}
	border := &entities.Facility{
		ID:       "icn-1",
		Name:     "인천응급병원",
		Address:  "인천광역시 계양구",
		Location: geo.Coordinate{Lat: 37.47, Lon: 126.79},
	}
	require.Less(t, geo.Distance(user, border.Location), 30.0)

	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		erRecord("인천응급병원", intPtr(3)),
	}))
	feed.On("FetchRegion", mock.Anything, mock.Anything).Return(providers.NewFeedResult(nil))
	svc := NewSearchService(NewStaticFacilityRegistry([]*entities.Facility{border}), feed, regions.NewDefaultSelector(), testSearchConfig(), 4)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: &user})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "인천응급병원", results[0].Name)
	feed.AssertCalled(t, "FetchRegion", mock.Anything, regions.Incheon)
}

func TestSearchEmergency_LimitAndKeyword(t *testing.T) {
	var facilities []*entities.Facility
	var records []entities.AvailabilityRecord
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("응급병원%02d", i)
		facilities = append(facilities, facilityAt(fmt.Sprint(i), name, float64(i)+0.5))
		records = append(records, erRecord(name, intPtr(1)))
	}
	records = append(records, erRecord("중앙의원", intPtr(1)))
	facilities = append(facilities, facilityAt("x", "중앙의원", 0.1))

	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult(records))
	svc := NewSearchService(NewStaticFacilityRegistry(facilities), feed, stubSelector{regions.Incheon}, testSearchConfig(), 4)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr()})
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.Equal(t, "중앙의원", results[0].Name)

	results, err = svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr(), Keyword: "응급", Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "응급병원00", results[0].Name)
}

func TestSearchEmergency_Extras(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{facilityAt("a", "가천대길병원", 1)})
	rec := erRecord("가천대길병원", intPtr(3))
	rec.Phone = "032-460-3901"
	rec.Fields["hpid"] = "A1100001"
	rec.Fields["hvidate"] = "20260114103000"
	rec.Fields["hvoc"] = "2"
	rec.Fields["hvgc"] = "bad"
	feed := &mockFeed{}
	feed.On("FetchRegion", mock.Anything, regions.Incheon).Return(providers.NewFeedResult([]entities.AvailabilityRecord{rec}))
	svc := NewSearchService(registry, feed, stubSelector{regions.Incheon}, testSearchConfig(), 1)

	results, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "032-460-3901", results[0].Phone)
	assert.Equal(t, "A1100001", results[0].Extra["hpid"])
	assert.Equal(t, "2026-01-14T10:30:00+09:00", results[0].Extra["updated_at"])
	assert.Equal(t, 2, results[0].Extra["hvoc"])
	assert.NotContains(t, results[0].Extra, "hvgc")
}

func TestSearch_Validation(t *testing.T) {
	svc := NewSearchService(NewStaticFacilityRegistry(nil), &mockFeed{}, stubSelector{}, testSearchConfig(), 1)
	invalid := geo.Coordinate{Lat: 120, Lon: 127}

	cases := map[string]SearchQuery{
		"missing location": {},
		"invalid location": {Location: &invalid},
		"negative radius":  {Location: centerPtr(), RadiusKm: -1},
		"radius too large": {Location: centerPtr(), RadiusKm: 51},
		"negative limit":   {Location: centerPtr(), Limit: -1},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SearchEmergency(context.Background(), q)
			assert.True(t, apperrors.IsValidation(err))

			_, err = svc.SearchHospitals(context.Background(), q)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestSearch_ContractViolations(t *testing.T) {
	svc := NewSearchService(nil, nil, nil, testSearchConfig(), 1)

	_, err := svc.SearchEmergency(context.Background(), SearchQuery{Location: centerPtr()})
	assert.Equal(t, apperrors.ErrorTypeContract, apperrors.TypeOf(err))

	_, err = svc.SearchPharmacies(context.Background(), SearchQuery{Location: centerPtr()})
	assert.Equal(t, apperrors.ErrorTypeContract, apperrors.TypeOf(err))

	_, err = svc.SearchHospitals(context.Background(), SearchQuery{Location: centerPtr()})
	assert.Equal(t, apperrors.ErrorTypeContract, apperrors.TypeOf(err))
}

func pharmacyRecord(hpid, name string, loc *geo.Coordinate, fields map[string]string) entities.AvailabilityRecord {
	all := map[string]string{"dutyName": name, "hpid": hpid}
	for k, v := range fields {
		all[k] = v
	}
	return entities.AvailabilityRecord{
		Kind:         entities.FacilityKindPharmacy,
		FacilityName: name,
		Location:     loc,
		Fields:       all,
	}
}

func coordPtr(northKm float64) *geo.Coordinate {
	c := geo.Offset(registryCenter, northKm, 0)
	return &c
}

func TestSearchPharmacies_StatusAndOrder(t *testing.T) {
	overnight := map[string]string{"dutyTime3s": "2200", "dutyTime3c": "0200"}
	daytime := map[string]string{"dutyTime3s": "0900", "dutyTime3c": "1800"}

	feed := &mockFeed{}
	feed.On("FetchNear", mock.Anything, registryCenter, 3.0).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		pharmacyRecord("C1", "낮약국", coordPtr(0.5), daytime),
		pharmacyRecord("C2", "심야약국", coordPtr(2.0), overnight),
		pharmacyRecord("C3", "정보없는약국", coordPtr(0.2), nil),
		pharmacyRecord("C4", "먼약국", coordPtr(3.5), overnight),
	}))
	svc := NewSearchService(NewStaticFacilityRegistry(nil), feed, nil, testSearchConfig(), 1)
	svc.now = func() time.Time { return time.Date(2026, 1, 14, 1, 0, 0, 0, svc.location) }

	results, err := svc.SearchPharmacies(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "심야약국", results[0].Name)
	assert.Equal(t, entities.StatusOpen, results[0].Status)
	assert.Equal(t, "정보없는약국", results[1].Name)
	assert.Equal(t, entities.StatusUnknown, results[1].Status)
	assert.Equal(t, "낮약국", results[2].Name)
	assert.Equal(t, entities.StatusClosed, results[2].Status)

	svc.now = func() time.Time { return time.Date(2026, 1, 14, 15, 0, 0, 0, svc.location) }
	results, err = svc.SearchPharmacies(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	assert.Equal(t, "낮약국", results[0].Name)
	assert.Equal(t, entities.StatusOpen, results[0].Status)
	assert.Equal(t, entities.StatusClosed, results[2].Status)
	assert.Equal(t, "심야약국", results[2].Name)
}

func TestSearchPharmacies_LocationFallbackAndDedupe(t *testing.T) {
	registry := NewStaticFacilityRegistry([]*entities.Facility{facilityAt("reg", "등록약국", 1.0)})
	feed := &mockFeed{}
	feed.On("FetchNear", mock.Anything, mock.Anything, mock.Anything).Return(providers.NewFeedResult([]entities.AvailabilityRecord{
		pharmacyRecord("P1", "온누리약국", coordPtr(0.3), nil),
		pharmacyRecord("P2", "온누리약국", coordPtr(0.6), nil),
		pharmacyRecord("P1", "온누리약국", coordPtr(0.3), nil),
		pharmacyRecord("P3", "등록약국", nil, nil),
		pharmacyRecord("P4", "좌표없는약국", nil, nil),
	}))
	svc := NewSearchService(registry, feed, nil, testSearchConfig(), 1)

	results, err := svc.SearchPharmacies(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	require.Len(t, results, 3)
	ids := []string{results[0].ID, results[1].ID, results[2].ID}
	assert.Equal(t, []string{"P1", "P2", "P3"}, ids)
	assert.Equal(t, 1.0, results[2].DistanceKm)
	assert.Equal(t, "등록약국 주소", results[2].Address)
	assert.Contains(t, results[0].Extra, "hours_summary")
}

func TestSearchPharmacies_FeedFailureIsEmpty(t *testing.T) {
	feed := &mockFeed{}
	feed.On("FetchNear", mock.Anything, mock.Anything, mock.Anything).Return(providers.FailedFeedResult(errors.New("portal error 30")))
	svc := NewSearchService(NewStaticFacilityRegistry(nil), feed, nil, testSearchConfig(), 1)

	results, err := svc.SearchPharmacies(context.Background(), SearchQuery{Location: centerPtr()})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchHospitals(t *testing.T) {
	facilities := []*entities.Facility{
		facilityAt("1", "인하대병원", 2.5),
		facilityAt("2", "서울내과의원", 0.4),
		facilityAt("3", "가천대길병원", 1.2),
		facilityAt("4", "먼병원", 4.0),
	}
	facilities[2].Departments = "응급의학과"
	svc := NewSearchService(NewStaticFacilityRegistry(facilities), nil, nil, testSearchConfig(), 1)

	results, err := svc.SearchHospitals(context.Background(), SearchQuery{Location: centerPtr()})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{results[0].ID, results[1].ID, results[2].ID})
	assert.Empty(t, results[0].Status)
	assert.Equal(t, "응급의학과", results[1].Extra["departments"])

	results, err = svc.SearchHospitals(context.Background(), SearchQuery{Location: centerPtr(), Keyword: "병원", RadiusKm: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "4"}, []string{results[0].ID, results[1].ID, results[2].ID})
}
