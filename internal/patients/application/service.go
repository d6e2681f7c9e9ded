package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	patients "thermoband-cloud/internal/patients/domain"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

// ReadingSource is the slice of the reading store the patient service needs.
type ReadingSource interface {
	ListByPatient(ctx context.Context, patientID string, limit int) ([]telemetry.Reading, error)
	DeleteByPatient(ctx context.Context, patientID string) (int64, error)
}

// BindingDetacher returns a patient's devices to the unassigned pool.
type BindingDetacher interface {
	DetachByPatient(ctx context.Context, patientID string) error
}

// Service handles patient records for clinical users. Persistence is
// pass-through; the only non-trivial behavior is the deletion cascade.
type Service struct {
	patients  patients.Repository
	readings  ReadingSource
	bindings  BindingDetacher
	pageLimit int
}

// NewService constructs a patient service.
func NewService(repo patients.Repository, readings ReadingSource, bindings BindingDetacher, pageLimit int) (*Service, error) {
	if repo == nil {
		return nil, errors.New("patients service: nil repository")
	}
	if readings == nil {
		return nil, errors.New("patients service: nil reading source")
	}
	if bindings == nil {
		return nil, errors.New("patients service: nil binding detacher")
	}
	if pageLimit <= 0 {
		pageLimit = 500
	}
	return &Service{patients: repo, readings: readings, bindings: bindings, pageLimit: pageLimit}, nil
}

// Create stores a new patient under the given user.
func (s *Service) Create(ctx context.Context, userID, name string, age int) (*patients.Patient, error) {
	if userID == "" {
		return nil, errors.New("patients service: empty user id")
	}
	if name == "" || age <= 0 {
		return nil, patients.ErrMissingFields
	}
	patient := &patients.Patient{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Age:       age,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// Get loads one of the user's patients.
func (s *Service) Get(ctx context.Context, userID, patientID string) (*patients.Patient, error) {
	if _, err := uuid.Parse(patientID); err != nil {
		return nil, patients.ErrInvalidID
	}
	patient, err := s.patients.Get(ctx, userID, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, patients.ErrNotFound
	}
	return patient, nil
}

// List loads all of the user's patients.
func (s *Service) List(ctx context.Context, userID string) ([]patients.Patient, error) {
	return s.patients.List(ctx, userID)
}

// Delete removes a patient with its cascade: readings first, then the
// device bindings are returned to the pool, then the record itself.
func (s *Service) Delete(ctx context.Context, userID, patientID string) error {
	patient, err := s.Get(ctx, userID, patientID)
	if err != nil {
		return err
	}
	if _, err := s.readings.DeleteByPatient(ctx, patient.ID); err != nil {
		return err
	}
	if err := s.bindings.DetachByPatient(ctx, patient.ID); err != nil {
		return err
	}
	if _, err := s.patients.Delete(ctx, patient.ID); err != nil {
		return err
	}
	return nil
}

// Readings loads the most recent temperature readings for one of the user's
// patients.
func (s *Service) Readings(ctx context.Context, userID, patientID string) ([]telemetry.Reading, error) {
	patient, err := s.Get(ctx, userID, patientID)
	if err != nil {
		return nil, err
	}
	return s.readings.ListByPatient(ctx, patient.ID, s.pageLimit)
}
