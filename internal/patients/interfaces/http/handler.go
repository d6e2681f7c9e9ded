package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"thermoband-cloud/internal/audit"
	"thermoband-cloud/internal/auth"
	binding "thermoband-cloud/internal/binding/domain"
	patientsapp "thermoband-cloud/internal/patients/application"
	patients "thermoband-cloud/internal/patients/domain"
	patientsinterfaces "thermoband-cloud/internal/patients/interfaces"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

// DeviceLookup resolves the device currently bound to a patient.
type DeviceLookup interface {
	DeviceForPatient(ctx context.Context, userID, patientID string) (*binding.Binding, error)
}

// Handler provides the patient HTTP endpoints.
type Handler struct {
	service     *patientsapp.Service
	devices     DeviceLookup
	auditLogger audit.Logger
}

// NewHandler constructs a patient handler.
func NewHandler(service *patientsapp.Service, devices DeviceLookup, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("patients handler: nil service")
	}
	if devices == nil {
		return nil, errors.New("patients handler: nil device lookup")
	}
	return &Handler{service: service, devices: devices, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/patients requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/patients"), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r, userID)
		case http.MethodPost:
			h.handleCreate(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(rest, "/")
	patientID := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, userID, patientID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, userID, patientID)
	case len(parts) == 2 && parts[1] == "device" && r.Method == http.MethodGet:
		h.handleDevice(w, r, userID, patientID)
	case len(parts) == 2 && parts[1] == "readings" && r.Method == http.MethodGet:
		h.handleReadings(w, r, userID, patientID)
	case len(parts) == 3 && parts[1] == "readings" && r.Method == http.MethodGet:
		h.handleExport(w, r, userID, patientID, parts[2])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type patientPayload struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	CreatedAt string `json:"createdAt"`
}

func toPatientPayload(patient *patients.Patient) patientPayload {
	return patientPayload{
		PatientID: patient.ID,
		Name:      patient.Name,
		Age:       patient.Age,
		CreatedAt: patient.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to fetch patients", http.StatusInternalServerError)
		return
	}
	payload := make([]patientPayload, 0, len(list))
	for i := range list {
		payload = append(payload, toPatientPayload(&list[i]))
	}
	respondJSON(w, http.StatusOK, payload)
}

type createRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	patient, err := h.service.Create(r.Context(), userID, req.Name, req.Age)
	if err != nil {
		respondPatientError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Patient added",
		"patient": toPatientPayload(patient),
	})
	h.logAudit(r, userID, "patient.create", patient.ID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, userID, patientID string) {
	patient, err := h.service.Get(r.Context(), userID, patientID)
	if err != nil {
		respondPatientError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPatientPayload(patient))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, userID, patientID string) {
	if err := h.service.Delete(r.Context(), userID, patientID); err != nil {
		respondPatientError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Patient deleted"})
	h.logAudit(r, userID, "patient.delete", patientID)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request, userID, patientID string) {
	bound, err := h.devices.DeviceForPatient(r.Context(), userID, patientID)
	if err != nil {
		if errors.Is(err, binding.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch device info", http.StatusInternalServerError)
		return
	}
	if bound == nil {
		respondJSON(w, http.StatusOK, map[string]any{"macAddress": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"macAddress": bound.MACAddress,
		"interval":   bound.IntervalSeconds,
	})
}

type readingItem struct {
	Temperature float64 `json:"temperature"`
	MACAddress  string  `json:"macAddress"`
	RecordedAt  string  `json:"recordedAt"`
}

func (h *Handler) handleReadings(w http.ResponseWriter, r *http.Request, userID, patientID string) {
	readings, err := h.service.Readings(r.Context(), userID, patientID)
	if err != nil {
		respondPatientError(w, err)
		return
	}
	payload := make([]readingItem, 0, len(readings))
	for _, reading := range readings {
		payload = append(payload, readingItem{
			Temperature: reading.Temperature,
			MACAddress:  reading.MACAddress,
			RecordedAt:  reading.RecordedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, userID, patientID, format string) {
	patient, err := h.service.Get(r.Context(), userID, patientID)
	if err != nil {
		respondPatientError(w, err)
		return
	}
	readings, err := h.service.Readings(r.Context(), userID, patientID)
	if err != nil {
		respondPatientError(w, err)
		return
	}
	exportReadings(w, patient, readings, format)
}

func exportReadings(w http.ResponseWriter, patient *patients.Patient, readings []telemetry.Reading, format string) {
	switch format {
	case "export.xlsx":
		data, err := patientsinterfaces.BuildReadingsXLSX(patient, readings)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
		_, _ = w.Write(data)
	case "export.pdf":
		data, err := patientsinterfaces.BuildReadingsPDF(patient, readings)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="readings.pdf"`)
		_, _ = w.Write(data)
	default:
		http.Error(w, "unknown export format", http.StatusNotFound)
	}
}

func (h *Handler) logAudit(r *http.Request, userID, action, patientID string) {
	if h.auditLogger == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        userID,
		Action:       action,
		ResourceType: "patient",
		ResourceID:   patientID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondPatientError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, patients.ErrInvalidID), errors.Is(err, patients.ErrMissingFields):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, patients.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
