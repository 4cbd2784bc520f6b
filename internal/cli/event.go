package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mr1hm/disasterwatch/internal/geo"
	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/repository"
)

// eventFlags selects the event a command works on: a stored event by id, or an
// ad-hoc one described on the command line.
type eventFlags struct {
	id        int64
	typ       string
	severity  string
	title     string
	location  string
	lat       float64
	lng       float64
	magnitude float64
}

func (f *eventFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Int64Var(&f.id, "id", 0, "Stored disaster event id")
	fl.StringVar(&f.typ, "type", "", "Event type for an ad-hoc event")
	fl.StringVar(&f.severity, "severity", string(models.SeveritySevere), "Event severity for an ad-hoc event")
	fl.StringVar(&f.title, "title", "Operator test event", "Event title for an ad-hoc event")
	fl.StringVar(&f.location, "location", "", "Location label for an ad-hoc event (defaults to the coordinates)")
	fl.Float64Var(&f.lat, "lat", 0, "Latitude for an ad-hoc event")
	fl.Float64Var(&f.lng, "lng", 0, "Longitude for an ad-hoc event")
	fl.Float64Var(&f.magnitude, "magnitude", 0, "Magnitude for an ad-hoc event")
	cmd.MarkFlagsMutuallyExclusive("id", "type")
	cmd.MarkFlagsOneRequired("id", "type")
}

func (f *eventFlags) resolve(ctx context.Context, cmd *cobra.Command, disasters repository.DisasterRepository) (*models.DisasterEvent, error) {
	if cmd.Flags().Changed("id") {
		d, err := disasters.GetDisaster(ctx, f.id, "")
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, fmt.Errorf("disaster %d not found", f.id)
		}
		return d, nil
	}
	return f.adHoc(cmd)
}

func (f *eventFlags) adHoc(cmd *cobra.Command) (*models.DisasterEvent, error) {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
		return nil, errors.New("--lat and --lng are required with --type")
	}
	t, ok := models.ParseDisasterType(f.typ)
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", f.typ)
	}
	sev, ok := models.ParseSeverity(f.severity)
	if !ok {
		return nil, fmt.Errorf("unknown severity %q", f.severity)
	}
	if !geo.Valid(f.lat, f.lng) {
		return nil, fmt.Errorf("invalid coordinates %v,%v", f.lat, f.lng)
	}

	location := f.location
	if location == "" {
		location = fmt.Sprintf("%.4f, %.4f", f.lat, f.lng)
	}
	d := &models.DisasterEvent{
		Type:      t,
		Severity:  sev,
		Title:     f.title,
		Location:  location,
		Lat:       f.lat,
		Lng:       f.lng,
		Timestamp: time.Now().UTC(),
		IsActive:  true,
	}
	if cmd.Flags().Changed("magnitude") {
		mag := f.magnitude
		d.Magnitude = &mag
	}
	return d, nil
}
