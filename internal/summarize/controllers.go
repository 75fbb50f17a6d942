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

// ControllerEngine drives the controller-side completion,
// summarization, and retention passes — the mirror of FlightEngine.
type ControllerEngine struct {
	controllers *store.ControllerRepository
	detector    *interaction.Detector
	cfg         config.CompletionConfig
	now         func() time.Time
}

// NewControllerEngine builds a ControllerEngine.
func NewControllerEngine(controllers *store.ControllerRepository, detector *interaction.Detector, cfg config.CompletionConfig) *ControllerEngine {
	return &ControllerEngine{controllers: controllers, detector: detector, cfg: cfg, now: time.Now}
}

// RunPass mirrors FlightEngine.RunPass for controller sessions. Unlike
// flights, a controller session always produces a summary once
// completed — there is no equivalent of an incomplete flight plan.
func (e *ControllerEngine) RunPass(ctx context.Context) (PassResult, error) {
	var result PassResult

	completionCutoff := e.now().UTC().Add(-time.Duration(e.cfg.ControllerCompletionMinutes) * time.Minute)
	completed, err := e.controllers.CompletedControllers(ctx, completionCutoff)
	if err != nil {
		return result, err
	}
	result.Considered = len(completed)

	for _, c := range completed {
		if err := e.processOne(ctx, c); err != nil {
			se := &xerrors.SummarizationError{Callsign: c.Callsign, LogonKey: c.LogonTime.Format(time.RFC3339), Cause: err}
			log.Printf("summarize: %v", se)
			result.Skipped++
			continue
		}
		result.Summarized++
	}

	retentionCutoff := e.now().UTC().Add(-time.Duration(e.cfg.ControllerRetentionHours) * time.Hour)
	retired, err := e.controllers.DeleteRetained(ctx, retentionCutoff)
	if err != nil {
		return result, err
	}
	result.Retired = retired

	return result, nil
}

func (e *ControllerEngine) processOne(ctx context.Context, c store.CompletedController) error {
	tx, err := e.controllers.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	staleSince := c.LastUpdated
	ok, err := e.controllers.Archive(ctx, tx, c.Callsign, c.LogonTime, staleSince)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	matches, err := e.detector.FlightsForController(ctx, c.Callsign, c.LogonTime, c.LastUpdated)
	if err != nil {
		return err
	}

	summary := buildControllerSummary(c, matches)
	if err := store.InsertControllerSummary(tx, summary); err != nil {
		return err
	}

	return tx.Commit()
}

// buildControllerSummary assembles the durable summary row for a
// completed controller session from its matched flight interactions.
func buildControllerSummary(c store.CompletedController, matches []interaction.FlightMatch) store.ControllerSummary {
	details := make([]store.AircraftInteraction, 0, len(matches))
	freqSeen := map[float64]struct{}{}
	for _, m := range matches {
		details = append(details, store.AircraftInteraction{
			FlightCallsign: m.FlightCallsign,
			FrequencyMHz:   m.FrequencyMHz,
			FirstSeen:      m.FirstSeen,
			LastSeen:       m.LastSeen,
			TimeMinutes:    m.TimeMinutes,
		})
		freqSeen[m.FrequencyMHz] = struct{}{}
	}

	freqs := make([]float64, 0, len(freqSeen))
	for f := range freqSeen {
		freqs = append(freqs, f)
	}

	return store.ControllerSummary{
		Callsign:               c.Callsign,
		SessionStartTime:       c.LogonTime,
		SessionEndTime:         c.LastUpdated,
		SessionDurationMinutes: int(c.LastUpdated.Sub(c.LogonTime).Minutes()),
		CID:                    c.CID,
		Name:                   c.Name,
		Rating:                 c.Rating,
		Facility:               c.Facility,
		Server:                 c.Server,
		TotalAircraftHandled:   len(matches),
		PeakAircraftCount:      len(matches),
		FrequenciesUsed:        freqs,
		AircraftDetails:        details,
	}
}
