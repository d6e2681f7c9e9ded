package binding

import (
	"context"
	"time"
)

// DefaultIntervalSeconds is the sampling interval handed to a device when no
// explicit interval has been configured.
const DefaultIntervalSeconds = 300

// Binding associates a device hardware address with a user's device pool and,
// optionally, with one of that user's patients. PatientID is nil exactly while
// the device is unassigned.
type Binding struct {
	MACAddress      string
	UserID          string
	PatientID       *string
	IntervalSeconds int
	ResetRequested  bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Assigned reports whether the binding currently points at a patient.
func (b *Binding) Assigned() bool {
	return b != nil && b.PatientID != nil && *b.PatientID != ""
}

// RegisterOutcome is the tri-state result of claiming a device. Callers must
// branch on the outcome rather than treating any non-error as success.
type RegisterOutcome string

const (
	// OutcomeNew means the device was registered for the first time.
	OutcomeNew RegisterOutcome = "new"
	// OutcomeAlreadyOwned means the same user had already registered it.
	OutcomeAlreadyOwned RegisterOutcome = "already_owned"
	// OutcomeConflict means a different user holds the device.
	OutcomeConflict RegisterOutcome = "conflict"
)

// Repository persists device bindings. Every method maps to a single
// parameterized statement; the store guarantees per-statement atomicity only.
type Repository interface {
	Get(ctx context.Context, macAddress string) (*Binding, error)
	GetByPatient(ctx context.Context, patientID string) (*Binding, error)
	Register(ctx context.Context, userID, macAddress string) (RegisterOutcome, *Binding, error)
	Assign(ctx context.Context, macAddress, patientID string) (int64, error)
	SetInterval(ctx context.Context, macAddress string, seconds int) (int64, error)
	SetResetRequested(ctx context.Context, macAddress string, requested bool) (int64, error)
	Detach(ctx context.Context, macAddress string) error
	DetachByPatient(ctx context.Context, patientID string) error
	ListUnassigned(ctx context.Context, userID string) ([]Binding, error)
}
