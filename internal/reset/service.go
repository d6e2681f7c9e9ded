package reset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	binding "thermoband-cloud/internal/binding/domain"
)

// Result classifies a finished reset task.
type Result string

const (
	// ResultCompleted means patient data was purged and the device detached.
	ResultCompleted Result = "completed"
	// ResultNoop means the binding was already unassigned (or gone).
	ResultNoop Result = "noop"
)

// BindingStore is the slice of the binding repository the workflow needs.
type BindingStore interface {
	Get(ctx context.Context, macAddress string) (*binding.Binding, error)
	Detach(ctx context.Context, macAddress string) error
}

// ReadingStore purges a patient's readings.
type ReadingStore interface {
	DeleteByPatient(ctx context.Context, patientID string) (int64, error)
}

// PatientStore removes patient records.
type PatientStore interface {
	Delete(ctx context.Context, patientID string) (int64, error)
}

// Service performs the acknowledged-reset cleanup: once the ingestion
// pipeline has answered a device with reset=true, the device's patient and
// readings are removed and the binding returns to the unassigned pool.
type Service struct {
	bindings BindingStore
	readings ReadingStore
	patients PatientStore
	notifier Notifier
	logger   *log.Logger
}

// NewService constructs a reset service. The notifier may be nil.
func NewService(bindings BindingStore, readings ReadingStore, patients PatientStore, notifier Notifier, logger *log.Logger) (*Service, error) {
	if bindings == nil {
		return nil, errors.New("reset: nil binding store")
	}
	if readings == nil {
		return nil, errors.New("reset: nil reading store")
	}
	if patients == nil {
		return nil, errors.New("reset: nil patient store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		bindings: bindings,
		readings: readings,
		patients: patients,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// PerformReset cleans up server-side state for a device whose reset has been
// acknowledged. Idempotent: against a binding with no linked patient it only
// clears the flag. Readings are deleted before the patient record; the store
// enforces a referential constraint between them.
func (s *Service) PerformReset(ctx context.Context, macAddress string) (Result, error) {
	if macAddress == "" {
		return ResultNoop, errors.New("reset: empty mac address")
	}

	bound, err := s.bindings.Get(ctx, macAddress)
	if err != nil {
		return ResultNoop, fmt.Errorf("reset: load binding %s: %w", macAddress, err)
	}
	if bound == nil {
		s.logger.Printf("reset: no binding for %s, nothing to do", macAddress)
		return ResultNoop, nil
	}
	if !bound.Assigned() {
		if err := s.bindings.Detach(ctx, macAddress); err != nil {
			return ResultNoop, fmt.Errorf("reset: clear flag for %s: %w", macAddress, err)
		}
		return ResultNoop, nil
	}

	patientID := *bound.PatientID
	deleted, err := s.readings.DeleteByPatient(ctx, patientID)
	if err != nil {
		return ResultNoop, fmt.Errorf("reset: purge readings for %s: %w", patientID, err)
	}
	if _, err := s.patients.Delete(ctx, patientID); err != nil {
		return ResultNoop, fmt.Errorf("reset: delete patient %s: %w", patientID, err)
	}
	if err := s.bindings.Detach(ctx, macAddress); err != nil {
		return ResultNoop, fmt.Errorf("reset: detach %s: %w", macAddress, err)
	}

	s.logger.Printf("reset: device %s detached, patient %s and %d readings removed", macAddress, patientID, deleted)
	s.notify(ctx, Notice{
		MACAddress:      macAddress,
		PatientID:       patientID,
		ReadingsDeleted: deleted,
		CompletedAt:     time.Now().UTC(),
	})
	return ResultCompleted, nil
}

func (s *Service) notify(ctx context.Context, notice Notice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Printf("reset: notify failed for %s: %v", notice.MACAddress, err)
	}
}
