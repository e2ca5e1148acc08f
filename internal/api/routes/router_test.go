package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/nearcare/internal/api/handlers"
	"github.com/zatekoja/nearcare/internal/api/routes"
	"github.com/zatekoja/nearcare/internal/application/services"
	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/pkg/geo"
)

type recordingSearcher struct {
	last string
}

func (s *recordingSearcher) SearchHospitals(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error) {
	s.last = "hospital"
	return []entities.RankedResult{{Name: "인하대병원", Location: geo.Coordinate{Lat: 37.45, Lon: 126.65}}}, nil
}

func (s *recordingSearcher) SearchEmergency(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error) {
	s.last = "emergency"
	return []entities.RankedResult{}, nil
}

func (s *recordingSearcher) SearchPharmacies(ctx context.Context, q services.SearchQuery) ([]entities.RankedResult, error) {
	s.last = "pharmacy"
	return []entities.RankedResult{}, nil
}

type staticStatus struct{}

func (staticStatus) Status() services.RegistryStatus {
	return services.RegistryStatus{Source: "csv", Facilities: 1}
}

func newTestServer(t *testing.T, searcher *recordingSearcher) *httptest.Server {
	t.Helper()
	router := routes.NewRouter(
		handlers.NewHealthHandler(staticStatus{}, nil),
		handlers.NewSearchHandler(searcher),
		handlers.NewRegistryHandler(staticStatus{}, nil),
		nil,
		nil,
		[]string{"*"},
		60,
	)
	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_RoutesSearches(t *testing.T) {
	searcher := &recordingSearcher{}
	srv := newTestServer(t, searcher)

	cases := map[string]string{
		"/api/hospitals":  "hospital",
		"/api/emergency":  "emergency",
		"/api/pharmacies": "pharmacy",
		"/api/pharmacy":   "pharmacy",
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			searcher.last = ""
			resp, err := http.Get(srv.URL + path + "?lat=37.5&lon=126.7")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, want, searcher.last)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRouter_HealthAndMethods(t *testing.T) {
	srv := newTestServer(t, &recordingSearcher{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/emergency?lat=37.5&lon=126.7", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/registry")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
