package obis

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

var (
	nice    = domain.Coordinate{Lat: 43.7102, Lon: 7.2620}
	fixedAt = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
)

// date_mid 1720958400000 is 2024-07-14T12:00:00Z.
const occurrenceJSON = `{
  "total": 4,
  "results": [
    {"species": "Pelagia noctiluca", "scientificName": "Pelagia noctiluca (Forsskål, 1775)", "decimalLatitude": 43.68, "decimalLongitude": 7.22, "date_mid": 1720958400000},
    {"scientificName": "Velella velella", "decimalLatitude": 43.75, "decimalLongitude": 7.40, "eventDate": "2024-07-03T16:00:00Z"},
    {"species": "Aurelia aurita", "decimalLatitude": 43.7, "decimalLongitude": 7.3, "eventDate": "sometime in July"},
    {"species": "Aurelia aurita", "decimalLatitude": 43.7, "decimalLongitude": 7.3, "date_mid": "yesterday"}
  ]
}`

func testClient(baseURL string) *Client {
	return NewClient(
		upstream.Config{BaseURL: baseURL, Timeout: 2 * time.Second},
		clockwork.NewFakeClockAt(fixedAt),
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestFetch_QueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/occurrence", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, nice.BoundingBox(25).WKT(), q.Get("geometry"))
		assert.Equal(t, "Cnidaria", q.Get("scientificname"))
		assert.Equal(t, "2024-06-15", q.Get("startdate"))
		assert.Equal(t, "2024-07-15", q.Get("enddate"))
		assert.Equal(t, "20", q.Get("size"))

		_, _ = w.Write([]byte(`{"total": 0, "results": []}`))
	}))
	defer srv.Close()

	assert.Empty(t, testClient(srv.URL).Fetch(context.Background(), nice, 25))
}

func TestFetch_ParsesOccurrences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(occurrenceJSON))
	}))
	defer srv.Close()

	got := testClient(srv.URL).Fetch(context.Background(), nice, 50)

	require.Len(t, got, 2)

	assert.Equal(t, "Pelagia noctiluca", got[0].Species, "species preferred over scientificName")
	assert.Equal(t, "Mauve Stinger", got[0].CommonName)
	assert.Equal(t, time.Date(2024, 7, 14, 12, 0, 0, 0, time.UTC), got[0].ObservedAt)
	assert.Equal(t, 1, got[0].AgeDays)
	assert.Equal(t, Name, got[0].Source)
	assert.Equal(t, Attribution, got[0].ReportedBy)

	assert.Equal(t, "Velella velella", got[1].Species, "falls back to scientificName")
	assert.Equal(t, domain.Mild, got[1].Severity, "unlisted species default to MILD")
	assert.Equal(t, 12, got[1].AgeDays)
}

func TestFetch_Failures(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	for name, responder := range map[string]httpmock.Responder{
		"not found":    httpmock.NewStringResponder(http.StatusNotFound, `{"message":"not found"}`),
		"invalid json": httpmock.NewStringResponder(http.StatusOK, "null,"),
	} {
		t.Run(name, func(t *testing.T) {
			httpmock.Reset()
			httpmock.RegisterResponder("GET", `=~^https://obis\.test/v3/occurrence`, responder)

			assert.Empty(t, testClient("https://obis.test").Fetch(context.Background(), nice, 50))
		})
	}
}
