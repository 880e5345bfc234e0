package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigap-dashboard/internal/common/config"
	"sigap-dashboard/internal/common/logger"
)

func testConfig(baseURL string) config.GeocoderConfig {
	return config.GeocoderConfig{
		BaseURL:       baseURL,
		CountrySuffix: "Chile",
		Timeout:       5000,
		DefaultLat:    -33.45,
		DefaultLon:    -70.66,
		DefaultComuna: "Sin comuna",
		DefaultRegion: "Sin región",
	}
}

func TestClient_LookupResolvesAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), ", Chile")
		w.Write([]byte(`[{"lat":"-33.411","lon":"-70.567","address":{"city":"Las Condes","state":"Metropolitana"}}]`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), logger.NewTestLogger(t))
	res, err := client.Lookup(context.Background(), "Av. Apoquindo 1234")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, -33.411, res.Lat, 0.001)
	assert.Equal(t, "Las Condes", res.Comuna)
	assert.Equal(t, "Metropolitana", res.Region)
}

func TestClient_LookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), logger.NewTestLogger(t))
	res, err := client.Lookup(context.Background(), "Calle Inexistente 999")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClient_LookupEmptyAddress(t *testing.T) {
	client := NewClient(testConfig("http://unused"), logger.NewTestLogger(t))
	res, err := client.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClient_ResolveFallsBackToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), logger.NewNoOpLogger())
	res := client.Resolve(context.Background(), "Av. Apoquindo 1234")
	assert.InDelta(t, -33.45, res.Lat, 0.001)
	assert.InDelta(t, -70.66, res.Lon, 0.001)
	assert.Equal(t, "Sin comuna", res.Comuna)
	assert.Equal(t, "Sin región", res.Region)
}

func TestClient_ResolvePrefersInferredCommuneOverProvince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"-33.456","lon":"-70.598","address":{"county":"Provincia de Santiago","state":"Metropolitana"}}]`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), logger.NewTestLogger(t))
	res := client.Resolve(context.Background(), "Av. Irarrázaval 3000, Ñuñoa")
	assert.Equal(t, "Ñuñoa", res.Comuna)
	assert.InDelta(t, -33.456, res.Lat, 0.001)
}

func TestClient_ResolveUnreachableGeocoderStillReturnsCoordinates(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"), logger.NewNoOpLogger())
	res := client.Resolve(context.Background(), "Av. Apoquindo 1234")
	assert.InDelta(t, -33.45, res.Lat, 0.001)
	assert.Equal(t, "Sin comuna", res.Comuna)
}
