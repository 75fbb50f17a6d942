// Package summarize implements the completion detector and the
// flight/controller summarization passes: it recognizes ended
// sessions, builds their durable summary (pulling the interaction
// graph from the interaction detector), archives the raw rows, and
// retires them from the live tables once retention has elapsed.
package summarize

import (
	"context"
	"log"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/config"
	"github.com/t288matt/vatpac-stats-sub002/internal/interaction"
	"github.com/t288matt/vatpac-stats-sub002/internal/store"
	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// FlightEngine drives the flight-side completion, summarization, and
// retention passes.
type FlightEngine struct {
	flights  *store.FlightRepository
	detector *interaction.Detector
	cfg      config.CompletionConfig
	now      func() time.Time
}

// NewFlightEngine builds a FlightEngine.
func NewFlightEngine(flights *store.FlightRepository, detector *interaction.Detector, cfg config.CompletionConfig) *FlightEngine {
	return &FlightEngine{flights: flights, detector: detector, cfg: cfg, now: time.Now}
}

// PassResult reports what one summarization pass accomplished.
type PassResult struct {
	Considered  int
	Summarized  int
	ArchivedOnly int
	Skipped     int
	Retired     int64
}

// RunPass identifies completed flights, builds and inserts their
// summaries (skipping summary creation — but not archiving — for
// flights with an incomplete flight plan), and retires archived rows
// whose retention window has elapsed. A failure processing one flight
// is logged and does not abort the pass.
func (e *FlightEngine) RunPass(ctx context.Context) (PassResult, error) {
	var result PassResult

	completionCutoff := e.now().UTC().Add(-time.Duration(e.cfg.FlightCompletionMinutes) * time.Minute)
	completed, err := e.flights.CompletedFlights(ctx, completionCutoff)
	if err != nil {
		return result, err
	}
	result.Considered = len(completed)

	for _, f := range completed {
		if err := e.processOne(ctx, f); err != nil {
			se := &xerrors.SummarizationError{Callsign: f.Callsign, LogonKey: f.LogonTime.Format(time.RFC3339), Cause: err}
			log.Printf("summarize: %v", se)
			result.Skipped++
			continue
		}
		if f.Departure != "" && f.Arrival != "" {
			result.Summarized++
		} else {
			result.ArchivedOnly++
		}
	}

	retentionCutoff := e.now().UTC().Add(-time.Duration(e.cfg.FlightRetentionHours) * time.Hour)
	retired, err := e.flights.DeleteRetained(ctx, retentionCutoff)
	if err != nil {
		return result, err
	}
	result.Retired = retired

	return result, nil
}

func (e *FlightEngine) processOne(ctx context.Context, f store.CompletedFlight) error {
	tx, err := e.flights.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	staleSince := f.LastUpdated
	ok, err := e.flights.Archive(ctx, tx, f.Callsign, f.LogonTime, staleSince)
	if err != nil {
		return err
	}
	if !ok {
		// A newer observation landed on this key since we selected it;
		// skip for this pass, it will be picked up again later.
		return nil
	}

	if f.Departure != "" && f.Arrival != "" {
		matches, err := e.detector.ControllersForFlight(ctx, f.Callsign, f.LogonTime, f.LastUpdated)
		if err != nil {
			return err
		}

		summary := buildFlightSummary(f, matches, e.now().UTC())
		if err := store.InsertFlightSummary(tx, summary); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// buildFlightSummary assembles the durable summary row for a completed
// flight from its matched controller interactions. Pulled out of
// processOne so it can be exercised without a database.
func buildFlightSummary(f store.CompletedFlight, matches []interaction.ControllerMatch, completionTime time.Time) store.FlightSummary {
	interactions := make([]store.ControllerInteraction, 0, len(matches))
	sessionMinutes := int(f.LastUpdated.Sub(f.LogonTime).Minutes())
	controlledMinutes := 0
	for _, m := range matches {
		interactions = append(interactions, store.ControllerInteraction{
			ControllerCallsign: m.ControllerCallsign,
			Type:               interaction.FacilityType(m.Facility),
			FrequencyMHz:       m.FrequencyMHz,
			FirstSeen:          m.FirstSeen,
			LastSeen:           m.LastSeen,
			TimeMinutes:        m.TimeMinutes,
		})
		controlledMinutes += m.TimeMinutes
	}

	pct := 0.0
	if sessionMinutes > 0 {
		pct = float64(controlledMinutes) / float64(sessionMinutes) * 100.0
	}

	return store.FlightSummary{
		Callsign:                 f.Callsign,
		LogonTime:                f.LogonTime,
		AircraftType:             f.AircraftType,
		Departure:                f.Departure,
		Arrival:                  f.Arrival,
		Route:                    f.Route,
		CompletionTime:           completionTime,
		SessionDurationMinutes:   sessionMinutes,
		TotalUpdates:             f.TotalUpdates,
		ControllerCallsigns:      interactions,
		ControllerTimePercentage: pct,
	}
}
