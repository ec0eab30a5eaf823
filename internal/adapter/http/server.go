package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
)

// Assessor produces a risk report for a place.
type Assessor interface {
	Assess(ctx context.Context, place domain.Place) domain.RiskReport
}

// Geocoder resolves place names to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (domain.Place, error)
}

// Server exposes the risk API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	assessor   Assessor
	geocoder   Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /v1/risk, /healthz, /readyz, and
// /metrics routes. geocoder may be nil, in which case place lookups are
// rejected with 503.
func NewServer(addr string, assessor Assessor, geocoder Geocoder, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessor: assessor,
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("GET /v1/risk", s.handleRisk)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRisk answers either ?lat=&lon=[&name=] or ?place=.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var place domain.Place
	switch {
	case q.Has("lat") || q.Has("lon"):
		p, err := placeFromCoordinates(q.Get("lat"), q.Get("lon"), q.Get("name"))
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		place = p

	case strings.TrimSpace(q.Get("place")) != "":
		p, status, err := s.resolve(r.Context(), q.Get("place"))
		if err != nil {
			sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		place = p

	default:
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "either lat and lon or place is required"})
		return
	}

	report := s.assessor.Assess(r.Context(), place)
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

// resolve geocodes name. An unknown name yields an unresolved place, which
// the assessor turns into the empty report.
func (s *Server) resolve(ctx context.Context, name string) (domain.Place, int, error) {
	name = strings.TrimSpace(name)
	if s.geocoder == nil {
		return domain.Place{}, http.StatusServiceUnavailable, errors.New("place lookup is disabled")
	}

	place, err := s.geocoder.Geocode(ctx, name)
	switch {
	case err == nil:
		return place, http.StatusOK, nil
	case errors.Is(err, domain.ErrPlaceNotFound):
		return domain.Place{Name: name}, http.StatusOK, nil
	default:
		s.logger.Warn("geocode failed", "name", name, "error", err)
		return domain.Place{}, http.StatusBadGateway, errors.New("place lookup failed")
	}
}

func placeFromCoordinates(latStr, lonStr, name string) (domain.Place, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Place{}, errors.New("lat must be a decimal number")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Place{}, errors.New("lon must be a decimal number")
	}
	return domain.Place{
		Name:       strings.TrimSpace(name),
		Coordinate: domain.Coordinate{Lat: lat, Lon: lon},
		Resolved:   true,
	}, nil
}
