package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	telemetry "thermoband-cloud/internal/telemetry/domain"
)

func setupReadingRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ReadingRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, NewReadingRepository(db)
}

func TestReadingInsertFillsID(t *testing.T) {
	db, mock, repo := setupReadingRepo(t)
	defer db.Close()

	recordedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	patientID := "patient-1"

	mock.ExpectQuery(`INSERT INTO temperature_readings`).
		WithArgs(sql.NullString{String: patientID, Valid: true}, "AA:BB:CC:DD:EE:FF", 36.8, recordedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	reading := &telemetry.Reading{
		PatientID:   &patientID,
		MACAddress:  "AA:BB:CC:DD:EE:FF",
		Temperature: 36.8,
		RecordedAt:  recordedAt,
	}
	if err := repo.Insert(context.Background(), reading); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if reading.ID != 42 {
		t.Fatalf("expected generated id 42, got %d", reading.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReadingInsertNullPatient(t *testing.T) {
	db, mock, repo := setupReadingRepo(t)
	defer db.Close()

	recordedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO temperature_readings`).
		WithArgs(sql.NullString{}, "AA:BB:CC:DD:EE:FF", 36.8, recordedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	reading := &telemetry.Reading{
		MACAddress:  "AA:BB:CC:DD:EE:FF",
		Temperature: 36.8,
		RecordedAt:  recordedAt,
	}
	if err := repo.Insert(context.Background(), reading); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestReadingListByPatientNewestFirst(t *testing.T) {
	db, mock, repo := setupReadingRepo(t)
	defer db.Close()

	later := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "mac_address", "temperature", "recorded_at"}).
		AddRow(int64(2), "patient-1", "AA:BB:CC:DD:EE:FF", 37.2, later).
		AddRow(int64(1), "patient-1", "AA:BB:CC:DD:EE:FF", 36.8, earlier)

	mock.ExpectQuery(`SELECT id, patient_id, mac_address, temperature, recorded_at FROM temperature_readings`).
		WithArgs("patient-1", 100).
		WillReturnRows(rows)

	list, err := repo.ListByPatient(context.Background(), "patient-1", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(list))
	}
	if !list[0].RecordedAt.After(list[1].RecordedAt) {
		t.Fatalf("expected newest first")
	}
}

func TestReadingDeleteByPatientReturnsCount(t *testing.T) {
	db, mock, repo := setupReadingRepo(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM temperature_readings WHERE patient_id = \$1`).
		WithArgs("patient-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteByPatient(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 rows deleted, got %d", deleted)
	}
}
