package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "thermoband-cloud/internal/telemetry/domain"
)

const defaultReadingsTable = "temperature_readings"

// ReadingRepository is a Postgres implementation for temperature readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingsTable overrides the default table name.
func WithReadingsTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends a reading and fills in its generated id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if reading.MACAddress == "" || reading.RecordedAt.IsZero() {
		return errors.New("reading repo: invalid reading")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (patient_id, mac_address, temperature, recorded_at)
VALUES ($1, $2, $3, $4)
RETURNING id`, r.table)

	patientID := sql.NullString{}
	if reading.PatientID != nil {
		patientID = sql.NullString{String: *reading.PatientID, Valid: true}
	}

	return r.db.QueryRowContext(ctx, query,
		patientID, reading.MACAddress, reading.Temperature, reading.RecordedAt,
	).Scan(&reading.ID)
}

// ListByPatient loads the most recent readings for a patient.
func (r *ReadingRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if patientID == "" {
		return nil, errors.New("reading repo: empty patient id")
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT id, patient_id, mac_address, temperature, recorded_at
FROM %s
WHERE patient_id = $1
ORDER BY recorded_at DESC
LIMIT $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.Reading
	for rows.Next() {
		var reading telemetry.Reading
		var scanned sql.NullString
		if err := rows.Scan(
			&reading.ID,
			&scanned,
			&reading.MACAddress,
			&reading.Temperature,
			&reading.RecordedAt,
		); err != nil {
			return nil, err
		}
		if scanned.Valid {
			value := scanned.String
			reading.PatientID = &value
		}
		reading.RecordedAt = reading.RecordedAt.UTC()
		result = append(result, reading)
	}
	return result, rows.Err()
}

// DeleteByPatient purges all readings for a patient. Returns rows deleted.
func (r *ReadingRepository) DeleteByPatient(ctx context.Context, patientID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("reading repo: nil db")
	}
	if patientID == "" {
		return 0, errors.New("reading repo: empty patient id")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, patientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
