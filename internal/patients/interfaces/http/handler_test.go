package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"thermoband-cloud/internal/auth"
	binding "thermoband-cloud/internal/binding/domain"
	patientsapp "thermoband-cloud/internal/patients/application"
	patients "thermoband-cloud/internal/patients/domain"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

type memPatientRepo struct {
	store map[string]*patients.Patient
}

func (m *memPatientRepo) Create(_ context.Context, patient *patients.Patient) error {
	m.store[patient.ID] = patient
	return nil
}

func (m *memPatientRepo) Get(_ context.Context, userID, patientID string) (*patients.Patient, error) {
	patient, ok := m.store[patientID]
	if !ok || patient.UserID != userID {
		return nil, nil
	}
	return patient, nil
}

func (m *memPatientRepo) List(_ context.Context, userID string) ([]patients.Patient, error) {
	var out []patients.Patient
	for _, patient := range m.store {
		if patient.UserID == userID {
			out = append(out, *patient)
		}
	}
	return out, nil
}

func (m *memPatientRepo) Delete(_ context.Context, patientID string) (int64, error) {
	if _, ok := m.store[patientID]; !ok {
		return 0, nil
	}
	delete(m.store, patientID)
	return 1, nil
}

func (m *memPatientRepo) ExistsForUser(_ context.Context, userID, patientID string) (bool, error) {
	patient, ok := m.store[patientID]
	return ok && patient.UserID == userID, nil
}

type memReadingSource struct {
	readings map[string][]telemetry.Reading
}

func (m *memReadingSource) ListByPatient(_ context.Context, patientID string, _ int) ([]telemetry.Reading, error) {
	return m.readings[patientID], nil
}

func (m *memReadingSource) DeleteByPatient(_ context.Context, patientID string) (int64, error) {
	deleted := int64(len(m.readings[patientID]))
	delete(m.readings, patientID)
	return deleted, nil
}

type memDetacher struct{}

func (memDetacher) DetachByPatient(context.Context, string) error { return nil }

type stubDeviceLookup struct {
	bound *binding.Binding
}

func (s stubDeviceLookup) DeviceForPatient(context.Context, string, string) (*binding.Binding, error) {
	return s.bound, nil
}

func newHandlerUnderTest(t *testing.T, repo *memPatientRepo, readings *memReadingSource, devices DeviceLookup) *Handler {
	t.Helper()
	service, err := patientsapp.NewService(repo, readings, memDetacher{}, 500)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if devices == nil {
		devices = stubDeviceLookup{}
	}
	handler, err := NewHandler(service, devices, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func doRequest(handler http.Handler, method, path, userID string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPatientsRequireUser(t *testing.T) {
	handler := newHandlerUnderTest(t, &memPatientRepo{store: map[string]*patients.Patient{}}, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)
	rec := doRequest(handler, http.MethodGet, "/api/v1/patients", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", rec.Code)
	}
}

func TestPatientCreateAndGet(t *testing.T) {
	repo := &memPatientRepo{store: map[string]*patients.Patient{}}
	handler := newHandlerUnderTest(t, repo, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)

	rec := doRequest(handler, http.MethodPost, "/api/v1/patients", "user-1", []byte(`{"name":"Alice","age":30}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Patient patientPayload `json:"patient"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Patient.PatientID == "" {
		t.Fatalf("expected a generated patient id")
	}

	rec = doRequest(handler, http.MethodGet, "/api/v1/patients/"+created.Patient.PatientID, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Another user must not see the record.
	rec = doRequest(handler, http.MethodGet, "/api/v1/patients/"+created.Patient.PatientID, "user-2", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a foreign user, got %d", rec.Code)
	}
}

func TestPatientCreateValidation(t *testing.T) {
	handler := newHandlerUnderTest(t, &memPatientRepo{store: map[string]*patients.Patient{}}, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)

	rec := doRequest(handler, http.MethodPost, "/api/v1/patients", "user-1", []byte(`{"name":"","age":0}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
}

func TestPatientMalformedIDIsBadRequest(t *testing.T) {
	handler := newHandlerUnderTest(t, &memPatientRepo{store: map[string]*patients.Patient{}}, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)

	rec := doRequest(handler, http.MethodGet, "/api/v1/patients/not-a-uuid", "user-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rec.Code)
	}
}

func TestPatientDelete(t *testing.T) {
	patientID := uuid.NewString()
	repo := &memPatientRepo{store: map[string]*patients.Patient{
		patientID: {ID: patientID, UserID: "user-1", Name: "Alice", Age: 30},
	}}
	handler := newHandlerUnderTest(t, repo, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)

	rec := doRequest(handler, http.MethodDelete, "/api/v1/patients/"+patientID, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(repo.store) != 0 {
		t.Fatalf("expected the record gone")
	}

	rec = doRequest(handler, http.MethodGet, "/api/v1/patients/"+patientID, "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deletion, got %d", rec.Code)
	}
}

func TestPatientDeviceRoute(t *testing.T) {
	patientID := uuid.NewString()
	repo := &memPatientRepo{store: map[string]*patients.Patient{
		patientID: {ID: patientID, UserID: "user-1", Name: "Alice", Age: 30},
	}}
	handler := newHandlerUnderTest(t, repo, &memReadingSource{readings: map[string][]telemetry.Reading{}},
		stubDeviceLookup{bound: &binding.Binding{MACAddress: "AA:BB:CC:DD:EE:FF", IntervalSeconds: 120}})

	rec := doRequest(handler, http.MethodGet, "/api/v1/patients/"+patientID+"/device", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["macAddress"] != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("unexpected device payload: %v", resp)
	}
}

func TestPatientReadingsExportXLSX(t *testing.T) {
	patientID := uuid.NewString()
	repo := &memPatientRepo{store: map[string]*patients.Patient{
		patientID: {ID: patientID, UserID: "user-1", Name: "Alice", Age: 30},
	}}
	readings := &memReadingSource{readings: map[string][]telemetry.Reading{
		patientID: {
			{ID: 1, MACAddress: "AA:BB:CC:DD:EE:FF", Temperature: 36.8, RecordedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
	}}
	handler := newHandlerUnderTest(t, repo, readings, nil)

	rec := doRequest(handler, http.MethodGet, "/api/v1/patients/"+patientID+"/readings/export.xlsx", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer workbook.Close()
	name, err := workbook.GetCellValue("readings", "B1")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if name != "Alice" {
		t.Fatalf("expected patient name in the workbook, got %q", name)
	}
}

func TestPatientReadingsExportPDF(t *testing.T) {
	patientID := uuid.NewString()
	repo := &memPatientRepo{store: map[string]*patients.Patient{
		patientID: {ID: patientID, UserID: "user-1", Name: "Alice", Age: 30},
	}}
	handler := newHandlerUnderTest(t, repo, &memReadingSource{readings: map[string][]telemetry.Reading{}}, nil)

	rec := doRequest(handler, http.MethodGet, "/api/v1/patients/"+patientID+"/readings/export.pdf", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a pdf document")
	}
}
