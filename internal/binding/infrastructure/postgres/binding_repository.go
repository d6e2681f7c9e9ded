package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	binding "thermoband-cloud/internal/binding/domain"
)

const defaultBindingsTable = "device_bindings"

// BindingRepository is a Postgres implementation for device bindings.
type BindingRepository struct {
	db    *sql.DB
	table string
}

// NewBindingRepository constructs a repository with the default table name.
func NewBindingRepository(db *sql.DB, opts ...BindingOption) *BindingRepository {
	repo := &BindingRepository{db: db, table: defaultBindingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BindingOption configures the repository.
type BindingOption func(*BindingRepository)

// WithBindingsTable overrides the default table name.
func WithBindingsTable(table string) BindingOption {
	return func(repo *BindingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const bindingColumns = "mac_address, user_id, patient_id, interval_seconds, reset_requested, created_at, updated_at"

// Get loads a binding by device address. Returns (nil, nil) when absent.
func (r *BindingRepository) Get(ctx context.Context, macAddress string) (*binding.Binding, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("binding repo: nil db")
	}
	if macAddress == "" {
		return nil, binding.ErrEmptyMAC
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE mac_address = $1
LIMIT 1`, bindingColumns, r.table)

	return scanBinding(r.db.QueryRowContext(ctx, query, macAddress))
}

// GetByPatient loads the binding currently pointing at a patient.
func (r *BindingRepository) GetByPatient(ctx context.Context, patientID string) (*binding.Binding, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("binding repo: nil db")
	}
	if patientID == "" {
		return nil, errors.New("binding repo: empty patient id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE patient_id = $1
LIMIT 1`, bindingColumns, r.table)

	return scanBinding(r.db.QueryRowContext(ctx, query, patientID))
}

// Register claims a device for a user's pool. The insert and the fallback
// lookup are separate atomic statements; a concurrent claim between them is
// resolved by the unique mac_address key, never by duplicate rows.
func (r *BindingRepository) Register(ctx context.Context, userID, macAddress string) (binding.RegisterOutcome, *binding.Binding, error) {
	if r == nil || r.db == nil {
		return "", nil, errors.New("binding repo: nil db")
	}
	if userID == "" {
		return "", nil, errors.New("binding repo: empty user id")
	}
	if macAddress == "" {
		return "", nil, binding.ErrEmptyMAC
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (mac_address, user_id, patient_id, interval_seconds, reset_requested, created_at, updated_at)
VALUES ($1, $2, NULL, $3, false, NOW(), NOW())
ON CONFLICT (mac_address) DO NOTHING
RETURNING %s`, r.table, bindingColumns)

	created, err := scanBinding(r.db.QueryRowContext(ctx, insert, macAddress, userID, binding.DefaultIntervalSeconds))
	if err != nil {
		return "", nil, err
	}
	if created != nil {
		return binding.OutcomeNew, created, nil
	}

	existing, err := r.Get(ctx, macAddress)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		return "", nil, binding.ErrNotFound
	}
	if existing.UserID == userID {
		return binding.OutcomeAlreadyOwned, existing, nil
	}
	return binding.OutcomeConflict, existing, nil
}

// Assign binds a device to a patient only while it is unassigned. Returns the
// number of rows updated; zero means the row is missing or already assigned.
func (r *BindingRepository) Assign(ctx context.Context, macAddress, patientID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("binding repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET patient_id = $1, updated_at = NOW()
WHERE mac_address = $2 AND patient_id IS NULL`, r.table)

	result, err := r.db.ExecContext(ctx, query, patientID, macAddress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetInterval updates the advisory sampling interval.
func (r *BindingRepository) SetInterval(ctx context.Context, macAddress string, seconds int) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("binding repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET interval_seconds = $1, updated_at = NOW()
WHERE mac_address = $2`, r.table)

	result, err := r.db.ExecContext(ctx, query, seconds, macAddress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetResetRequested flips the deferred-reset flag.
func (r *BindingRepository) SetResetRequested(ctx context.Context, macAddress string, requested bool) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("binding repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET reset_requested = $1, updated_at = NOW()
WHERE mac_address = $2`, r.table)

	result, err := r.db.ExecContext(ctx, query, requested, macAddress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Detach returns a device to the unassigned pool and clears the reset flag.
// The row is kept so the device stays registered to its user.
func (r *BindingRepository) Detach(ctx context.Context, macAddress string) error {
	if r == nil || r.db == nil {
		return errors.New("binding repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET patient_id = NULL, reset_requested = false, updated_at = NOW()
WHERE mac_address = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, macAddress)
	return err
}

// DetachByPatient clears every binding pointing at a patient. Used by the
// patient-deletion cascade.
func (r *BindingRepository) DetachByPatient(ctx context.Context, patientID string) error {
	if r == nil || r.db == nil {
		return errors.New("binding repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET patient_id = NULL, reset_requested = false, updated_at = NOW()
WHERE patient_id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, patientID)
	return err
}

// ListUnassigned loads bindings with no patient. An empty userID lists the
// whole pool.
func (r *BindingRepository) ListUnassigned(ctx context.Context, userID string) ([]binding.Binding, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("binding repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE patient_id IS NULL AND ($1 = '' OR user_id = $1)
ORDER BY mac_address ASC`, bindingColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []binding.Binding
	for rows.Next() {
		item, err := scanBindingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row *sql.Row) (*binding.Binding, error) {
	item, err := scanBindingRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func scanBindingRow(scanner rowScanner) (*binding.Binding, error) {
	var item binding.Binding
	var patientID sql.NullString
	if err := scanner.Scan(
		&item.MACAddress,
		&item.UserID,
		&patientID,
		&item.IntervalSeconds,
		&item.ResetRequested,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if patientID.Valid {
		value := patientID.String
		item.PatientID = &value
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}
