package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/t288matt/vatpac-stats-sub002/internal/config"
	"github.com/t288matt/vatpac-stats-sub002/internal/filter"
	"github.com/t288matt/vatpac-stats-sub002/internal/geo"
	"github.com/t288matt/vatpac-stats-sub002/internal/interaction"
	"github.com/t288matt/vatpac-stats-sub002/internal/scheduler"
	"github.com/t288matt/vatpac-stats-sub002/internal/store"
	"github.com/t288matt/vatpac-stats-sub002/internal/summarize"
	"github.com/t288matt/vatpac-stats-sub002/internal/upstream"
	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// ingestd continuously polls the network data feeds, filters and
// persists what passes, and runs the completion/summarization passes
// on their own schedule. It runs as a single long-lived process; there
// is no separate worker or web tier.
func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	log.Println("===========================================")
	log.Println("  VATPAC Stats Ingestion Service")
	log.Println("===========================================")

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	log.Printf("Upstream: %s (poll every %ds)", cfg.Upstream.DataURL, cfg.Upstream.PollIntervalSeconds)
	log.Printf("Completion: flights after %dm, controllers after %dm", cfg.Completion.FlightCompletionMinutes, cfg.Completion.ControllerCompletionMinutes)
	log.Printf("Retention: flights %dh, controllers %dh", cfg.Completion.FlightRetentionHours, cfg.Completion.ControllerRetentionHours)
	log.Printf("Interaction match: freq tol %.3f MHz, time window %ds, proximity %.0f nm",
		cfg.Interaction.FrequencyToleranceMHz, cfg.Interaction.TimeWindowSeconds, cfg.Interaction.ProximityNM)

	log.Println("\nConnecting to database...")
	db, err := store.Connect(cfg.Database)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return 1
	}
	defer db.Close()
	log.Println("Database connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.ValidateSchema(ctx); err != nil {
		log.Printf("Schema validation failed: %v", err)
		return 1
	}
	log.Println("Schema validated")

	var boundary *geo.Polygon
	if cfg.Filters.BoundaryPolygonFile != "" {
		boundary, err = geo.LoadPolygon(cfg.Filters.BoundaryPolygonFile)
		if err != nil {
			log.Printf("Failed to load boundary polygon: %v", err)
			return 1
		}
		log.Printf("Boundary polygon loaded: %s (%d points)", cfg.Filters.BoundaryPolygonFile, len(boundary.Ring))
	}

	pipeline := filter.New(filter.Config{
		BoundaryEnabled:        boundary != nil,
		BoundaryPolygon:        boundary,
		CallsignEnabled:        len(cfg.Filters.CallsignPatterns) > 0,
		CallsignPatterns:       cfg.Filters.CallsignPatterns,
		ControllerTypeEnabled:  true,
		IncludeObservers:       cfg.Filters.IncludeObservers,
		FrequencyEnabled:       len(cfg.Filters.ExcludedFrequenciesMHz) > 0,
		ExcludedFrequenciesMHz: cfg.Filters.ExcludedFrequenciesMHz,
	})

	client := upstream.New(
		cfg.Upstream.DataURL, cfg.Upstream.TransceiversURL, cfg.Upstream.StatusURL,
		cfg.Upstream.UserAgent,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Upstream.PollIntervalSeconds)*time.Second,
	)

	flights := store.NewFlightRepository(db)
	controllers := store.NewControllerRepository(db)
	transceivers := store.NewTransceiverRepository(db)

	detector := interaction.New(db.DB, cfg.Interaction.FrequencyToleranceMHz, cfg.Interaction.TimeWindowSeconds, cfg.Interaction.ProximityNM)
	flightEngine := summarize.NewFlightEngine(flights, detector, cfg.Completion)
	controllerEngine := summarize.NewControllerEngine(controllers, detector, cfg.Completion)

	ingestor := &ingestTrack{
		client:       client,
		pipeline:     pipeline,
		flights:      flights,
		controllers:  controllers,
		transceivers: transceivers,
	}

	sched := scheduler.New(30*time.Second,
		&scheduler.Track{
			Name:     "ingest",
			Interval: time.Duration(cfg.Upstream.PollIntervalSeconds) * time.Second,
			Run:      ingestor.run,
		},
		&scheduler.Track{
			Name:     "summarize-flights",
			Interval: time.Duration(cfg.Completion.SummaryPassIntervalMinutes) * time.Minute,
			Run: func(ctx context.Context) error {
				result, err := flightEngine.RunPass(ctx)
				if err != nil {
					return err
				}
				log.Printf("summarize-flights: considered=%d summarized=%d archived_only=%d skipped=%d retired=%d",
					result.Considered, result.Summarized, result.ArchivedOnly, result.Skipped, result.Retired)
				return nil
			},
		},
		&scheduler.Track{
			Name:     "summarize-controllers",
			Interval: time.Duration(cfg.Completion.SummaryPassIntervalMinutes) * time.Minute,
			Run: func(ctx context.Context) error {
				result, err := controllerEngine.RunPass(ctx)
				if err != nil {
					return err
				}
				log.Printf("summarize-controllers: considered=%d summarized=%d skipped=%d retired=%d",
					result.Considered, result.Summarized, result.Skipped, result.Retired)
				return nil
			},
		},
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(runDone)
	}()

	log.Println("\n===========================================")
	log.Println("  Ingestion service started")
	log.Println("  Press Ctrl+C to stop")
	log.Println("===========================================")

	sig := <-sigCh
	log.Printf("\nReceived signal: %v, shutting down gracefully...", sig)
	cancel()
	<-runDone
	log.Println("Ingestion service stopped")
	return 0
}

// ingestTrack wires one fetch-filter-persist cycle: pull the network
// snapshot and transceiver feed, run both through the filter pipeline,
// and upsert/insert whatever survives.
type ingestTrack struct {
	client       *upstream.Client
	pipeline     *filter.Pipeline
	flights      *store.FlightRepository
	controllers  *store.ControllerRepository
	transceivers *store.TransceiverRepository
}

func (t *ingestTrack) run(ctx context.Context) error {
	now := time.Now().UTC()

	snapshot, err := t.client.FetchNetworkSnapshot(ctx)
	if err != nil {
		if _, ok := xerrors.IsUpstreamUnavailable(err); ok {
			log.Printf("ingest: upstream unavailable, will retry next cycle: %v", err)
			return nil
		}
		return err
	}

	pilots := t.pipeline.FilterFlights(snapshot.Pilots)
	ctrls := t.pipeline.FilterControllers(snapshot.Controllers)

	flightsWritten, flightsFailed := t.flights.UpsertBatch(ctx, pilots, now)
	ctrlsWritten, ctrlsFailed := t.controllers.UpsertBatch(ctx, ctrls, now)

	log.Printf("ingest: pilots fetched=%d kept=%d written=%d failed=%d; controllers fetched=%d kept=%d written=%d failed=%d; dropped=%d",
		len(snapshot.Pilots), len(pilots), flightsWritten, flightsFailed,
		len(snapshot.Controllers), len(ctrls), ctrlsWritten, ctrlsFailed,
		snapshot.DroppedRecords)

	transceiverSnapshot, err := t.client.FetchTransceivers(ctx)
	if err != nil {
		if _, ok := xerrors.IsUpstreamUnavailable(err); ok {
			log.Printf("ingest: transceiver feed unavailable, will retry next cycle: %v", err)
			return nil
		}
		return err
	}

	groups := t.pipeline.FilterTransceiverGroups(transceiverSnapshot.Groups)

	flightCallsigns := make(map[string]struct{}, len(pilots))
	for _, p := range pilots {
		flightCallsigns[p.Callsign] = struct{}{}
	}
	controllerCallsigns := make(map[string]struct{}, len(ctrls))
	for _, c := range ctrls {
		controllerCallsigns[c.Callsign] = struct{}{}
	}

	var obs []store.Observation
	for _, g := range groups {
		entityType := ""
		if _, ok := flightCallsigns[g.Callsign]; ok {
			entityType = "flight"
		} else if _, ok := controllerCallsigns[g.Callsign]; ok {
			entityType = "atc"
		} else {
			// Transceiver reported for a callsign that didn't survive
			// (or wasn't present in) this cycle's flight/controller
			// snapshot; nothing to correlate it against.
			continue
		}
		for _, tr := range g.Transceivers {
			obs = append(obs, store.Observation{
				Callsign:    g.Callsign,
				EntityType:  entityType,
				Transceiver: tr,
				Timestamp:   now,
			})
		}
	}

	txWritten, txFailed := t.transceivers.InsertBatch(ctx, obs)
	log.Printf("ingest: transceiver groups fetched=%d kept=%d observations written=%d failed=%d dropped=%d",
		len(transceiverSnapshot.Groups), len(groups), txWritten, txFailed, transceiverSnapshot.DroppedRecords)

	return nil
}
