package application

import (
	"context"
	"errors"
	"log"
	"time"

	binding "thermoband-cloud/internal/binding/domain"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

// ResetQueue accepts device addresses for the background reset workflow.
// Enqueue must never block; it reports false when the task was dropped.
type ResetQueue interface {
	Enqueue(macAddress string) bool
}

// IngestRequest is a reported reading. Temperature is a pointer so a missing
// field can be told apart from 0.
type IngestRequest struct {
	MACAddress  string   `json:"macAddress"`
	Temperature *float64 `json:"temperature"`
}

// IngestResult is the directive-carrying outcome of an ingest attempt. The
// interval/reset pair is always usable, also on failures, so the device's
// reporting loop never stalls.
type IngestResult struct {
	Reading         *telemetry.Reading
	IntervalSeconds int
	Reset           bool
}

// IngestService validates a reading, consults the throttle gate, persists the
// reading against the device's binding and answers with sampling directives.
type IngestService struct {
	gate     *Gate
	bindings binding.Repository
	readings telemetry.ReadingRepository
	resets   ResetQueue
	logger   *log.Logger
	now      func() time.Time
}

// NewIngestService constructs the ingestion pipeline.
func NewIngestService(gate *Gate, bindings binding.Repository, readings telemetry.ReadingRepository, resets ResetQueue, logger *log.Logger) (*IngestService, error) {
	if gate == nil {
		return nil, errors.New("ingest: nil gate")
	}
	if bindings == nil {
		return nil, errors.New("ingest: nil binding repository")
	}
	if readings == nil {
		return nil, errors.New("ingest: nil reading repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestService{
		gate:     gate,
		bindings: bindings,
		readings: readings,
		resets:   resets,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Tests only.
func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	if now != nil {
		s.now = now
	}
	return s
}

// Ingest runs the pipeline for one reported reading. The returned result is
// never nil. The lookup, insert and directive read are separate atomic
// statements; a lifecycle mutation observed mid-sequence is accepted because
// directives are advisory and re-fetched on the device's next cycle.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	result := &IngestResult{IntervalSeconds: binding.DefaultIntervalSeconds}

	if req.MACAddress == "" || req.Temperature == nil {
		return result, telemetry.ErrInvalidReading
	}

	arrival := s.now().UTC()
	if !s.gate.Accept(req.MACAddress, arrival) {
		return result, telemetry.ErrRateLimited
	}

	bound, err := s.bindings.Get(ctx, req.MACAddress)
	if err != nil {
		return result, err
	}
	if bound == nil {
		return result, telemetry.ErrUnboundDevice
	}

	reading := &telemetry.Reading{
		PatientID:   bound.PatientID,
		MACAddress:  req.MACAddress,
		Temperature: *req.Temperature,
		RecordedAt:  arrival,
	}
	if err := s.readings.Insert(ctx, reading); err != nil {
		// The device still needs a directive pair. Re-read it; fall back to
		// the documented defaults when the store stays unreachable.
		if fresh, rerr := s.bindings.Get(ctx, req.MACAddress); rerr == nil && fresh != nil {
			result.IntervalSeconds = fresh.IntervalSeconds
			result.Reset = fresh.ResetRequested
		}
		return result, err
	}

	result.Reading = reading
	result.IntervalSeconds = bound.IntervalSeconds
	result.Reset = bound.ResetRequested

	if bound.ResetRequested {
		s.scheduleReset(req.MACAddress)
	}
	return result, nil
}

// scheduleReset hands the device to the reset worker once the directive has
// been included in the response. Best effort: a dropped task is only logged,
// a later manual reset can still clean up.
func (s *IngestService) scheduleReset(macAddress string) {
	if s.resets == nil {
		return
	}
	if !s.resets.Enqueue(macAddress) {
		s.logger.Printf("ingest: reset queue full, dropped task for %s", macAddress)
	}
}
