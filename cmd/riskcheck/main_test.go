package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
)

// fakeUpstreams points every provider at one test server. OBIS reports a
// Mauve Stinger seen yesterday near Nice; the other sources are empty.
func fakeUpstreams(t *testing.T) {
	t.Helper()
	observed := time.Now().UTC().Add(-24 * time.Hour).UnixMilli()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/observations", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total_results": 0, "results": []}`))
	})
	mux.HandleFunc("GET /v1/occurrence/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "results": []}`))
	})
	mux.HandleFunc("GET /v3/occurrence", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"total": 1, "results": [
			{"species": "Pelagia noctiluca", "decimalLatitude": 43.70, "decimalLongitude": 7.25, "date_mid": %d}
		]}`, observed)
	})
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Atlantis" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat": "43.7102", "lon": "7.2620", "display_name": "Nice, France"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, key := range []string{"INATURALIST_URL", "GBIF_URL", "OBIS_URL", "NOMINATIM_URL"} {
		t.Setenv(key, srv.URL)
	}
	t.Setenv("KAFKA_REPORTS_ENABLED", "false")
}

func execute(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_CoordinatesText(t *testing.T) {
	fakeUpstreams(t)

	code, out, stderr := execute("--lat", "43.7102", "--lon", "7.2620", "--name", "Nice")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Location:   Nice")
	assert.Contains(t, out, "Risk:       🟡 Low (Few jellyfish expected)")
	assert.Contains(t, out, "Sources:    iNaturalist + GBIF + OBIS")
	assert.Contains(t, out, "Mauve Stinger (Pelagia noctiluca): Painful sting")
}

func TestRun_PlaceJSON(t *testing.T) {
	fakeUpstreams(t)

	code, out, stderr := execute("--place", "Nice", "-o", "json")

	require.Equal(t, 0, code, stderr)
	var report domain.RiskReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Nice", report.Location)
	assert.InDelta(t, 43.7102, report.Latitude, 1e-9)
	assert.Equal(t, domain.Low, report.RiskLevel)
	require.Len(t, report.Sightings, 1)
	assert.NotEmpty(t, report.ID)
}

func TestRun_UnknownPlaceGivesEmptyReport(t *testing.T) {
	fakeUpstreams(t)

	code, out, stderr := execute("--place", "Atlantis")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Location:   Atlantis")
	assert.Contains(t, out, "No data available for this location")
	assert.NotContains(t, out, "Sightings:")
}

func TestRun_PlaceLookupDisabled(t *testing.T) {
	fakeUpstreams(t)
	t.Setenv("NOMINATIM_ENABLED", "false")

	code, _, stderr := execute("--place", "Nice")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "place lookup is disabled")
}

func TestRun_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no location", nil, "lat"},
		{"lat without lon", []string{"--lat", "43.7"}, "lon"},
		{"lat and place", []string{"--lat", "43.7", "--lon", "7.2", "--place", "Nice"}, "place"},
		{"bad latitude", []string{"--lat", "north", "--lon", "7.2"}, "lat"},
		{"bad format", []string{"--lat", "43.7", "--lon", "7.2", "--format", "xml"}, "unknown format"},
		{"bad log level", []string{"--lat", "43.7", "--lon", "7.2", "--log-level", "loud"}, "log-level"},
		{"positional args", []string{"Nice"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeUpstreams(t)

			code, out, stderr := execute(tt.args...)

			assert.Equal(t, 1, code)
			assert.Empty(t, out)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRenderText_EmptyLocationUsesCoordinates(t *testing.T) {
	var buf bytes.Buffer
	report := domain.EmptyReport(domain.Place{Coordinate: domain.Coordinate{Lat: 95, Lon: 0}}, time.Now())

	require.NoError(t, renderText(&buf, report))
	assert.Contains(t, buf.String(), "Location:   95.0000, 0.0000")
	assert.Contains(t, buf.String(), "Very Low")
}
