// Command riskcheck runs a single jellyfish risk assessment and prints the
// report. Upstream endpoints and timeouts come from the same environment
// variables as the service.
//
// Usage:
//
//	riskcheck --lat 43.7102 --lon 7.2620 [--name Nice]
//	riskcheck --place "Valencia, Spain" [--format json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/jellyfish-risk-service/internal/app"
	"github.com/couchcryptid/jellyfish-risk-service/internal/config"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

type checkFlags struct {
	lat, lon float64
	name     string
	place    string
	format   string
	logLevel string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var flags checkFlags

	cmd := &cobra.Command{
		Use:           "riskcheck",
		Short:         "Assess jellyfish risk for a coordinate or place",
		Long:          "riskcheck queries iNaturalist, GBIF and OBIS for recent jellyfish sightings\naround a location and prints the resulting risk report.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&flags.lat, "lat", 0, "Latitude in decimal degrees")
	f.Float64Var(&flags.lon, "lon", 0, "Longitude in decimal degrees")
	f.StringVar(&flags.name, "name", "", "Display name for a coordinate query")
	f.StringVar(&flags.place, "place", "", "Place name to geocode via Nominatim")
	f.StringVarP(&flags.format, "format", "o", "text", "Output format: text or json")
	f.StringVar(&flags.logLevel, "log-level", "error", "Log level written to stderr")

	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsMutuallyExclusive("lat", "place")
	cmd.MarkFlagsMutuallyExclusive("lon", "place")
	cmd.MarkFlagsOneRequired("lat", "place")

	return cmd
}

func runCheck(cmd *cobra.Command, flags checkFlags) error {
	if flags.format != "text" && flags.format != "json" {
		return fmt.Errorf("unknown format %q", flags.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(flags.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	// stdout carries the report, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	a := app.New(cfg, app.Options{DisablePublishing: true}, logger, metrics)
	defer a.Close() //nolint:errcheck // publishing is disabled

	ctx := cmd.Context()

	place := domain.Place{
		Name:       flags.name,
		Coordinate: domain.Coordinate{Lat: flags.lat, Lon: flags.lon},
		Resolved:   true,
	}
	if cmd.Flags().Changed("place") {
		place, err = resolvePlace(ctx, a, flags.place)
		if err != nil {
			return err
		}
	}

	report := a.Service.Assess(ctx, place)

	out := cmd.OutOrStdout()
	if flags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderText(out, report)
}

func resolvePlace(ctx context.Context, a *app.App, name string) (domain.Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Place{}, errors.New("--place must not be empty")
	}
	if a.Geocoder == nil {
		return domain.Place{}, errors.New("place lookup is disabled (NOMINATIM_ENABLED=false)")
	}
	place, err := a.Geocoder.Geocode(ctx, name)
	if errors.Is(err, domain.ErrPlaceNotFound) {
		return domain.Place{Name: name}, nil
	}
	if err != nil {
		return domain.Place{}, fmt.Errorf("geocode %q: %w", name, err)
	}
	return place, nil
}

func renderText(w io.Writer, r domain.RiskReport) error {
	var b strings.Builder

	location := r.Location
	if location == "" {
		location = fmt.Sprintf("%.4f, %.4f", r.Latitude, r.Longitude)
	}
	fmt.Fprintf(&b, "Location:   %s\n", location)
	fmt.Fprintf(&b, "Risk:       %s %s (%s)\n", r.RiskLevel.Emoji(), r.RiskLevel.DisplayName(), r.RiskLevel.Description())
	fmt.Fprintf(&b, "Prediction: %s\n", r.Prediction)
	fmt.Fprintf(&b, "Advisory:   %s\n", r.Advisory)
	fmt.Fprintf(&b, "Sources:    %s\n", r.Source)

	if len(r.Sightings) > 0 {
		fmt.Fprintf(&b, "Sightings:  %d (%d dangerous, %d in the last week)\n",
			len(r.Sightings), r.DangerousCount(), r.RecentCount())
		for _, s := range r.Sightings {
			fmt.Fprintf(&b, "  - %s (%s): %s, %d days ago, %.1f km away [%s]\n",
				s.CommonName, s.Species, s.Severity.DisplayName(), s.AgeDays, s.DistanceKm, s.Source)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
