package telemetry

import (
	"context"
	"errors"
	"time"
)

// Reading is an immutable temperature report attributed to a patient. Rows
// are append-only; they disappear only through the reset workflow or patient
// deletion.
type Reading struct {
	ID          int64
	PatientID   *string
	MACAddress  string
	Temperature float64
	RecordedAt  time.Time
}

var (
	// ErrInvalidReading indicates a report missing its device address or value.
	ErrInvalidReading = errors.New("telemetry: mac address and temperature are required")
	// ErrUnboundDevice indicates a report from a device with no binding row.
	ErrUnboundDevice = errors.New("telemetry: device not registered")
	// ErrRateLimited indicates a report rejected by the throttle gate.
	ErrRateLimited = errors.New("telemetry: reading rate limited")
)

// ReadingRepository persists temperature readings.
type ReadingRepository interface {
	Insert(ctx context.Context, reading *Reading) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]Reading, error)
	DeleteByPatient(ctx context.Context, patientID string) (int64, error)
}
