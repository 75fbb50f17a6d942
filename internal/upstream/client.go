package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// Client fetches network snapshots and transceiver snapshots from the
// configured upstream endpoints.
//
// API documentation: https://vatsim.dev/
type Client struct {
	dataURL         string
	transceiversURL string
	statusURL       string
	userAgent       string
	httpClient      *http.Client
	limiter         *rate.Limiter
	retry           RetryConfig
}

// New creates a Client. pollInterval paces the limiter: the client
// allows one request per pollInterval with a burst of 1, so a
// mis-tuned scheduler cannot hammer the upstream faster than intended.
func New(dataURL, transceiversURL, statusURL, userAgent string, timeout time.Duration, pollInterval time.Duration) *Client {
	return &Client{
		dataURL:         dataURL,
		transceiversURL: transceiversURL,
		statusURL:       statusURL,
		userAgent:       userAgent,
		httpClient:      &http.Client{Timeout: timeout},
		limiter:         rate.NewLimiter(rate.Every(pollInterval), 1),
		retry:           DefaultRetryConfig(),
	}
}

// FetchNetworkSnapshot retrieves the current pilot and controller
// population. Each record that fails to parse is dropped and counted
// rather than failing the whole fetch.
func (c *Client) FetchNetworkSnapshot(ctx context.Context) (*NetworkSnapshot, error) {
	body, err := c.get(ctx, c.dataURL)
	if err != nil {
		return nil, &xerrors.UpstreamUnavailable{Endpoint: c.dataURL, Attempts: c.retry.MaxAttempts, Cause: err}
	}

	var raw networkSnapshotWire
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &xerrors.UpstreamUnavailable{Endpoint: c.dataURL, Attempts: c.retry.MaxAttempts, Cause: err}
	}

	snap := &NetworkSnapshot{}
	if t, err := time.Parse(time.RFC3339, raw.General.UpdateTimestamp); err == nil {
		snap.UpdateTimestamp = t
	}

	for _, p := range raw.Pilots {
		rec, err := p.toRecord()
		if err != nil {
			snap.DroppedRecords++
			continue
		}
		snap.Pilots = append(snap.Pilots, rec)
	}

	for _, ctl := range raw.Controllers {
		rec, err := ctl.toRecord()
		if err != nil {
			snap.DroppedRecords++
			continue
		}
		snap.Controllers = append(snap.Controllers, rec)
	}

	return snap, nil
}

// FetchTransceivers retrieves the current radio transceiver population.
func (c *Client) FetchTransceivers(ctx context.Context) (*TransceiverSnapshot, error) {
	body, err := c.get(ctx, c.transceiversURL)
	if err != nil {
		return nil, &xerrors.UpstreamUnavailable{Endpoint: c.transceiversURL, Attempts: c.retry.MaxAttempts, Cause: err}
	}

	var raw []transceiverGroupWire
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &xerrors.UpstreamUnavailable{Endpoint: c.transceiversURL, Attempts: c.retry.MaxAttempts, Cause: err}
	}

	snap := &TransceiverSnapshot{}
	for _, g := range raw {
		if g.Callsign == "" {
			snap.DroppedRecords++
			continue
		}
		group := TransceiverGroup{Callsign: g.Callsign}
		for _, tw := range g.Transceivers {
			t, err := tw.toTransceiver()
			if err != nil {
				snap.DroppedRecords++
				continue
			}
			group.Transceivers = append(group.Transceivers, t)
		}
		snap.Groups = append(snap.Groups, group)
	}

	return snap, nil
}

// get performs a rate-limited GET against url with retry/backoff,
// returning the raw response body on success.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return retryWithBackoff(ctx, c.retry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
		}

		return body, nil
	})
}

// networkSnapshotWire mirrors the upstream JSON feed's shape. Fields
// absent from this struct are tolerated and ignored by json.Unmarshal.
type networkSnapshotWire struct {
	General struct {
		UpdateTimestamp string `json:"update_timestamp"`
	} `json:"general"`
	Pilots      []pilotWire      `json:"pilots"`
	Controllers []controllerWire `json:"controllers"`
}

type pilotWire struct {
	Callsign   string      `json:"callsign"`
	CID        int         `json:"cid"`
	Name       string      `json:"name"`
	LogonTime  string      `json:"logon_time"`
	LastUpdate string      `json:"last_updated"`
	Latitude   float64     `json:"latitude"`
	Longitude  float64     `json:"longitude"`
	Altitude   int         `json:"altitude"`
	GroundSpd  int         `json:"groundspeed"`
	Heading    int         `json:"heading"`
	Transponder string     `json:"transponder"`
	FlightPlan *flightPlanWire `json:"flight_plan"`
}

type flightPlanWire struct {
	AircraftShort string `json:"aircraft_short"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	Route         string `json:"route"`
	Altitude      string `json:"altitude"`
	DepTime       string `json:"deptime"`
}

func (p pilotWire) toRecord() (PilotRecord, error) {
	if p.Callsign == "" {
		return PilotRecord{}, xerrors.NewParseError("callsign", "", "missing required field")
	}
	logon, err := time.Parse(time.RFC3339, p.LogonTime)
	if err != nil {
		return PilotRecord{}, xerrors.NewParseError("logon_time", p.LogonTime, "unrecognized timestamp")
	}
	lastUpdated, err := time.Parse(time.RFC3339, p.LastUpdate)
	if err != nil {
		return PilotRecord{}, xerrors.NewParseError("last_updated", p.LastUpdate, "unrecognized timestamp")
	}

	rec := PilotRecord{
		Callsign:       p.Callsign,
		CID:            p.CID,
		Name:           p.Name,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		Altitude:       p.Altitude,
		GroundSpeed:    p.GroundSpd,
		Heading:        p.Heading,
		Transponder:    p.Transponder,
		LogonTime:      logon,
		LastUpdatedAPI: lastUpdated,
	}
	if p.FlightPlan != nil {
		rec.AircraftType = p.FlightPlan.AircraftShort
		rec.Departure = p.FlightPlan.Departure
		rec.Arrival = p.FlightPlan.Arrival
		rec.Route = p.FlightPlan.Route
		rec.CruiseAltitude = p.FlightPlan.Altitude
		rec.PlannedDepTime = p.FlightPlan.DepTime
	}
	return rec, nil
}

type controllerWire struct {
	Callsign   string  `json:"callsign"`
	CID        int     `json:"cid"`
	Name       string  `json:"name"`
	Rating     int     `json:"rating"`
	Facility   int     `json:"facility"`
	Server     string  `json:"server"`
	Frequency  string  `json:"frequency"`
	LogonTime  string  `json:"logon_time"`
	LastUpdate string  `json:"last_updated"`
}

func (c controllerWire) toRecord() (ControllerRecord, error) {
	if c.Callsign == "" {
		return ControllerRecord{}, xerrors.NewParseError("callsign", "", "missing required field")
	}
	logon, err := time.Parse(time.RFC3339, c.LogonTime)
	if err != nil {
		return ControllerRecord{}, xerrors.NewParseError("logon_time", c.LogonTime, "unrecognized timestamp")
	}
	lastUpdated, err := time.Parse(time.RFC3339, c.LastUpdate)
	if err != nil {
		return ControllerRecord{}, xerrors.NewParseError("last_updated", c.LastUpdate, "unrecognized timestamp")
	}

	freq, _ := strconv.ParseFloat(c.Frequency, 64)

	return ControllerRecord{
		Callsign:       c.Callsign,
		CID:            c.CID,
		Name:           c.Name,
		Rating:         c.Rating,
		Facility:       c.Facility,
		Server:         c.Server,
		FrequencyMHz:   freq,
		LogonTime:      logon,
		LastUpdatedAPI: lastUpdated,
	}, nil
}

type transceiverGroupWire struct {
	Callsign     string             `json:"callsign"`
	Transceivers []transceiverWire  `json:"transceivers"`
}

type transceiverWire struct {
	ID          int     `json:"id"`
	FrequencyHz int64   `json:"frequency"`
	LatDeg      float64 `json:"latDeg"`
	LonDeg      float64 `json:"lonDeg"`
	HeightMSLM  float64 `json:"heightMslM"`
	HeightAGLM  float64 `json:"heightAglM"`
}

func (t transceiverWire) toTransceiver() (Transceiver, error) {
	if t.FrequencyHz <= 0 {
		return Transceiver{}, xerrors.NewParseError("frequency", fmt.Sprintf("%d", t.FrequencyHz), "missing or non-positive")
	}
	return Transceiver{
		ID:          t.ID,
		FrequencyHz: t.FrequencyHz,
		LatDeg:      t.LatDeg,
		LonDeg:      t.LonDeg,
		HeightMSLM:  t.HeightMSLM,
		HeightAGLM:  t.HeightAGLM,
	}, nil
}
