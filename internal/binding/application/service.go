package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	binding "thermoband-cloud/internal/binding/domain"
	"thermoband-cloud/internal/observability/metrics"
)

// PatientDirectory answers ownership checks against the patient store.
type PatientDirectory interface {
	ExistsForUser(ctx context.Context, userID, patientID string) (bool, error)
}

// Service implements the binding lifecycle operations invoked by clinical
// users: claim a device, bind it to a patient, flag it for reset, tune its
// sampling interval.
type Service struct {
	bindings binding.Repository
	patients PatientDirectory
}

// NewService constructs a lifecycle service.
func NewService(bindings binding.Repository, patients PatientDirectory) (*Service, error) {
	if bindings == nil {
		return nil, errors.New("binding service: nil repository")
	}
	if patients == nil {
		return nil, errors.New("binding service: nil patient directory")
	}
	return &Service{bindings: bindings, patients: patients}, nil
}

// RegisterDevice claims a device for a user's pool. The outcome is tri-state:
// newly registered, already owned by this user, or held by another user.
func (s *Service) RegisterDevice(ctx context.Context, userID, macAddress string) (binding.RegisterOutcome, *binding.Binding, error) {
	if userID == "" {
		return "", nil, errors.New("binding service: empty user id")
	}
	if macAddress == "" {
		return "", nil, binding.ErrEmptyMAC
	}
	outcome, bound, err := s.bindings.Register(ctx, userID, macAddress)
	if err != nil {
		metrics.IncLifecycleOp("register", "error")
		return "", nil, err
	}
	metrics.IncLifecycleOp("register", string(outcome))
	return outcome, bound, nil
}

// AssignDevice binds an unassigned device to one of the requesting user's
// patients. The conditional update keeps the unassigned check and the write a
// single atomic statement.
func (s *Service) AssignDevice(ctx context.Context, userID, patientID, macAddress string) error {
	if macAddress == "" {
		return binding.ErrEmptyMAC
	}
	if _, err := uuid.Parse(patientID); err != nil {
		return binding.ErrNotFound
	}

	owned, err := s.patients.ExistsForUser(ctx, userID, patientID)
	if err != nil {
		return err
	}
	if !owned {
		metrics.IncLifecycleOp("assign", "patient_not_found")
		return binding.ErrNotFound
	}

	rows, err := s.bindings.Assign(ctx, macAddress, patientID)
	if err != nil {
		metrics.IncLifecycleOp("assign", "error")
		return err
	}
	if rows > 0 {
		metrics.IncLifecycleOp("assign", "ok")
		return nil
	}

	existing, err := s.bindings.Get(ctx, macAddress)
	if err != nil {
		return err
	}
	if existing == nil {
		metrics.IncLifecycleOp("assign", "device_not_found")
		return binding.ErrNotFound
	}
	metrics.IncLifecycleOp("assign", "conflict")
	return binding.ErrConflict
}

// RequestReset flags a binding for deferred reset. Data is destroyed only
// after the device has acknowledged the directive on its next report.
func (s *Service) RequestReset(ctx context.Context, macAddress string) error {
	if macAddress == "" {
		return binding.ErrEmptyMAC
	}
	rows, err := s.bindings.SetResetRequested(ctx, macAddress, true)
	if err != nil {
		metrics.IncLifecycleOp("reset_request", "error")
		return err
	}
	if rows == 0 {
		metrics.IncLifecycleOp("reset_request", "not_found")
		return binding.ErrNotFound
	}
	metrics.IncLifecycleOp("reset_request", "ok")
	return nil
}

// SetInterval updates the advisory sampling interval for a device.
func (s *Service) SetInterval(ctx context.Context, macAddress string, seconds int) error {
	if macAddress == "" {
		return binding.ErrEmptyMAC
	}
	if seconds <= 0 {
		return binding.ErrInvalidInterval
	}
	rows, err := s.bindings.SetInterval(ctx, macAddress, seconds)
	if err != nil {
		metrics.IncLifecycleOp("set_interval", "error")
		return err
	}
	if rows == 0 {
		metrics.IncLifecycleOp("set_interval", "not_found")
		return binding.ErrNotFound
	}
	metrics.IncLifecycleOp("set_interval", "ok")
	return nil
}

// ListUnassigned returns the user's registered devices with no patient bound.
func (s *Service) ListUnassigned(ctx context.Context, userID string) ([]binding.Binding, error) {
	return s.bindings.ListUnassigned(ctx, userID)
}

// DeviceForPatient returns the binding pointing at one of the user's
// patients, or nil when the patient has no device.
func (s *Service) DeviceForPatient(ctx context.Context, userID, patientID string) (*binding.Binding, error) {
	if _, err := uuid.Parse(patientID); err != nil {
		return nil, binding.ErrNotFound
	}
	owned, err := s.patients.ExistsForUser(ctx, userID, patientID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, binding.ErrNotFound
	}
	return s.bindings.GetByPatient(ctx, patientID)
}
