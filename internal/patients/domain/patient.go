package patients

import (
	"context"
	"errors"
	"time"
)

// Patient is a monitored person owned by exactly one clinical user.
type Patient struct {
	ID        string
	UserID    string
	Name      string
	Age       int
	CreatedAt time.Time
}

var (
	// ErrNotFound indicates a missing patient record.
	ErrNotFound = errors.New("patients: not found")
	// ErrInvalidID is returned for a malformed patient identifier.
	ErrInvalidID = errors.New("patients: invalid patient id")
	// ErrMissingFields is returned when name or age is absent.
	ErrMissingFields = errors.New("patients: name and age are required")
)

// Repository persists patient records.
type Repository interface {
	Create(ctx context.Context, patient *Patient) error
	Get(ctx context.Context, userID, patientID string) (*Patient, error)
	List(ctx context.Context, userID string) ([]Patient, error)
	Delete(ctx context.Context, patientID string) (int64, error)
	ExistsForUser(ctx context.Context, userID, patientID string) (bool, error)
}
