package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	patients "thermoband-cloud/internal/patients/domain"
)

const defaultPatientsTable = "patients"

// PatientRepository is a Postgres implementation for patient records.
type PatientRepository struct {
	db    *sql.DB
	table string
}

// NewPatientRepository constructs a repository with the default table name.
func NewPatientRepository(db *sql.DB, opts ...PatientOption) *PatientRepository {
	repo := &PatientRepository{db: db, table: defaultPatientsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// PatientOption configures the repository.
type PatientOption func(*PatientRepository)

// WithPatientsTable overrides the default table name.
func WithPatientsTable(table string) PatientOption {
	return func(repo *PatientRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a patient record.
func (r *PatientRepository) Create(ctx context.Context, patient *patients.Patient) error {
	if r == nil || r.db == nil {
		return errors.New("patient repo: nil db")
	}
	if patient == nil {
		return errors.New("patient repo: nil patient")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (patient_id, user_id, name, age, created_at)
VALUES ($1, $2, $3, $4, $5)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		patient.ID, patient.UserID, patient.Name, patient.Age, patient.CreatedAt)
	return err
}

// Get loads a patient owned by the given user. Returns (nil, nil) when absent.
func (r *PatientRepository) Get(ctx context.Context, userID, patientID string) (*patients.Patient, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("patient repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT patient_id, user_id, name, age, created_at
FROM %s
WHERE patient_id = $1 AND user_id = $2
LIMIT 1`, r.table)

	var patient patients.Patient
	if err := r.db.QueryRowContext(ctx, query, patientID, userID).Scan(
		&patient.ID,
		&patient.UserID,
		&patient.Name,
		&patient.Age,
		&patient.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	patient.CreatedAt = patient.CreatedAt.UTC()
	return &patient, nil
}

// List loads all patients owned by a user.
func (r *PatientRepository) List(ctx context.Context, userID string) ([]patients.Patient, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("patient repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT patient_id, user_id, name, age, created_at
FROM %s
WHERE user_id = $1
ORDER BY created_at ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []patients.Patient
	for rows.Next() {
		var patient patients.Patient
		if err := rows.Scan(
			&patient.ID,
			&patient.UserID,
			&patient.Name,
			&patient.Age,
			&patient.CreatedAt,
		); err != nil {
			return nil, err
		}
		patient.CreatedAt = patient.CreatedAt.UTC()
		result = append(result, patient)
	}
	return result, rows.Err()
}

// Delete removes a patient record. Returns the number of rows deleted.
func (r *PatientRepository) Delete(ctx context.Context, patientID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("patient repo: nil db")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, patientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExistsForUser reports whether a patient exists and is owned by the user.
func (r *PatientRepository) ExistsForUser(ctx context.Context, userID, patientID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("patient repo: nil db")
	}

	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE patient_id = $1 AND user_id = $2 LIMIT 1`, r.table)
	var one int
	if err := r.db.QueryRowContext(ctx, query, patientID, userID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
