package filter

import (
	"log"
	"strings"

	"github.com/t288matt/vatpac-stats-sub002/internal/geo"
	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
)

// Config controls which filter stages are active and their parameters.
// Each stage can be independently disabled; a disabled stage passes
// every record through unchanged (but still counted as processed).
type Config struct {
	BoundaryEnabled  bool
	BoundaryPolygon  *geo.Polygon
	CallsignEnabled  bool
	CallsignPatterns []string
	ControllerTypeEnabled bool
	IncludeObservers bool
	FrequencyEnabled bool
	ExcludedFrequenciesMHz []float64
}

// Pipeline runs the four ordered filter stages and accumulates rolling
// per-stage statistics.
type Pipeline struct {
	cfg Config

	boundaryStats      *rollingStats
	callsignStats      *rollingStats
	controllerTypeStats *rollingStats
	frequencyStats     *rollingStats

	excluded map[float64]struct{}
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	excluded := make(map[float64]struct{}, len(cfg.ExcludedFrequenciesMHz))
	for _, f := range cfg.ExcludedFrequenciesMHz {
		excluded[roundMHz(f)] = struct{}{}
	}

	return &Pipeline{
		cfg:                 cfg,
		boundaryStats:       newRollingStats(),
		callsignStats:       newRollingStats(),
		controllerTypeStats: newRollingStats(),
		frequencyStats:      newRollingStats(),
		excluded:            excluded,
	}
}

// FilterFlights applies the geographic boundary filter followed by the
// callsign pattern filter, in that fixed order.
func (p *Pipeline) FilterFlights(pilots []upstream.PilotRecord) []upstream.PilotRecord {
	out := p.applyBoundary(pilots)
	out = p.applyCallsignToFlights(out)
	return out
}

// FilterControllers applies the controller facility-type filter.
func (p *Pipeline) FilterControllers(ctrls []upstream.ControllerRecord) []upstream.ControllerRecord {
	processed := len(ctrls)
	if !p.cfg.ControllerTypeEnabled {
		p.controllerTypeStats.record(processed, processed, 0)
		return ctrls
	}

	out := make([]upstream.ControllerRecord, 0, len(ctrls))
	for _, c := range ctrls {
		if c.Facility == 0 && !p.cfg.IncludeObservers {
			continue
		}
		out = append(out, c)
	}
	p.controllerTypeStats.record(processed, len(out), processed-len(out))
	return out
}

// FilterTransceiverGroups applies the callsign pattern filter followed
// by the frequency exclusion filter.
func (p *Pipeline) FilterTransceiverGroups(groups []upstream.TransceiverGroup) []upstream.TransceiverGroup {
	groups = p.applyCallsignToTransceivers(groups)
	return p.applyFrequencyExclusion(groups)
}

func (p *Pipeline) applyBoundary(pilots []upstream.PilotRecord) []upstream.PilotRecord {
	processed := len(pilots)
	if !p.cfg.BoundaryEnabled || p.cfg.BoundaryPolygon == nil {
		p.boundaryStats.record(processed, processed, 0)
		return pilots
	}

	out := make([]upstream.PilotRecord, 0, len(pilots))
	excluded := 0
	for _, rec := range pilots {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("filter: boundary test panicked for %s: %v", rec.Callsign, r)
					excluded++
				}
			}()
			if rec.Latitude == 0 && rec.Longitude == 0 {
				excluded++
				return
			}
			if p.cfg.BoundaryPolygon.Contains(geo.Point{Latitude: rec.Latitude, Longitude: rec.Longitude}) {
				out = append(out, rec)
			} else {
				excluded++
			}
		}()
	}
	p.boundaryStats.record(processed, len(out), excluded)
	return out
}

func (p *Pipeline) applyCallsignToFlights(pilots []upstream.PilotRecord) []upstream.PilotRecord {
	processed := len(pilots)
	if !p.cfg.CallsignEnabled || len(p.cfg.CallsignPatterns) == 0 {
		p.callsignStats.record(processed, processed, 0)
		return pilots
	}

	out := make([]upstream.PilotRecord, 0, len(pilots))
	for _, rec := range pilots {
		if matchesAnyPattern(rec.Callsign, p.cfg.CallsignPatterns) {
			out = append(out, rec)
		}
	}
	p.callsignStats.record(processed, len(out), processed-len(out))
	return out
}

func (p *Pipeline) applyCallsignToTransceivers(groups []upstream.TransceiverGroup) []upstream.TransceiverGroup {
	processed := len(groups)
	if !p.cfg.CallsignEnabled || len(p.cfg.CallsignPatterns) == 0 {
		p.callsignStats.record(processed, processed, 0)
		return groups
	}

	out := make([]upstream.TransceiverGroup, 0, len(groups))
	for _, g := range groups {
		if matchesAnyPattern(g.Callsign, p.cfg.CallsignPatterns) {
			out = append(out, g)
		}
	}
	p.callsignStats.record(processed, len(out), processed-len(out))
	return out
}

func (p *Pipeline) applyFrequencyExclusion(groups []upstream.TransceiverGroup) []upstream.TransceiverGroup {
	if !p.cfg.FrequencyEnabled || len(p.excluded) == 0 {
		processed := 0
		for _, g := range groups {
			processed += len(g.Transceivers)
		}
		p.frequencyStats.record(processed, processed, 0)
		return groups
	}

	processed, included := 0, 0
	out := make([]upstream.TransceiverGroup, 0, len(groups))
	for _, g := range groups {
		filtered := make([]upstream.Transceiver, 0, len(g.Transceivers))
		for _, t := range g.Transceivers {
			processed++
			if t.FrequencyHz == 0 {
				filtered = append(filtered, t)
				included++
				continue
			}
			mhz := roundMHz(float64(t.FrequencyHz) / 1_000_000.0)
			if _, excluded := p.excluded[mhz]; excluded {
				continue
			}
			filtered = append(filtered, t)
			included++
		}
		g.Transceivers = filtered
		out = append(out, g)
	}
	p.frequencyStats.record(processed, included, processed-included)
	return out
}

// Stats reports the rolling 7-day totals for each of the four stages.
type Stats struct {
	Boundary       Totals
	Callsign       Totals
	ControllerType Totals
	Frequency      Totals
}

// Stats returns the pipeline's current rolling-window statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Boundary:       p.boundaryStats.totals(),
		Callsign:       p.callsignStats.totals(),
		ControllerType: p.controllerTypeStats.totals(),
		Frequency:      p.frequencyStats.totals(),
	}
}

func roundMHz(mhz float64) float64 {
	return float64(int(mhz*1000+0.5)) / 1000
}

func matchesAnyPattern(callsign string, patterns []string) bool {
	for _, pat := range patterns {
		if strings.HasPrefix(callsign, pat) {
			return true
		}
	}
	return false
}
