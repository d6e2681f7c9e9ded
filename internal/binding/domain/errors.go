package binding

import "errors"

var (
	// ErrNotFound indicates a missing binding row.
	ErrNotFound = errors.New("binding: not found")
	// ErrConflict indicates the device is already assigned to a patient.
	ErrConflict = errors.New("binding: already assigned")
	// ErrInvalidInterval is returned for a non-positive sampling interval.
	ErrInvalidInterval = errors.New("binding: interval must be a positive integer")
	// ErrEmptyMAC is returned when the device address is missing.
	ErrEmptyMAC = errors.New("binding: empty mac address")
)
