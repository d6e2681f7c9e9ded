package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	bindingapp "thermoband-cloud/internal/binding/application"
	binding "thermoband-cloud/internal/binding/domain"
	"thermoband-cloud/internal/observability/metrics"
	telemetryapp "thermoband-cloud/internal/telemetry/application"
	telemetry "thermoband-cloud/internal/telemetry/domain"
)

// IngestHandler handles temperature reports from devices.
type IngestHandler struct {
	service *telemetryapp.IngestService
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *telemetryapp.IngestService) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	return &IngestHandler{service: service}, nil
}

type readingPayload struct {
	ID          int64   `json:"id"`
	PatientID   *string `json:"patientId"`
	MACAddress  string  `json:"macAddress"`
	Temperature float64 `json:"temperature"`
	RecordedAt  string  `json:"recordedAt"`
}

// ingestResponse always carries a usable directive pair, also on failures,
// so the device keeps a sane reporting loop.
type ingestResponse struct {
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Reading  *readingPayload `json:"reading,omitempty"`
	Interval int             `json:"interval"`
	Reset    bool            `json:"reset"`
}

// ServeHTTP ingests one reported reading.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultAccepted
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = metrics.IngestResultError
		metrics.IncIngestError("read_body")
		respondIngest(w, http.StatusBadRequest, ingestResponse{
			Error:    "read body error",
			Interval: binding.DefaultIntervalSeconds,
		})
		return
	}
	defer r.Body.Close()

	var req telemetryapp.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		result = metrics.IngestResultError
		metrics.IncIngestError("invalid_json")
		respondIngest(w, http.StatusBadRequest, ingestResponse{
			Error:    "invalid json",
			Interval: binding.DefaultIntervalSeconds,
		})
		return
	}

	outcome, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		reason := "storage_failure"
		switch {
		case errors.Is(err, telemetry.ErrInvalidReading):
			status = http.StatusBadRequest
			reason = "missing_fields"
		case errors.Is(err, telemetry.ErrUnboundDevice):
			status = http.StatusNotFound
			reason = "unbound_device"
		case errors.Is(err, telemetry.ErrRateLimited):
			status = http.StatusTooManyRequests
			reason = "rate_limited"
		}
		if reason == "rate_limited" {
			result = metrics.IngestResultThrottled
		} else {
			result = metrics.IngestResultError
		}
		metrics.IncIngestError(reason)
		respondIngest(w, status, ingestResponse{
			Error:    err.Error(),
			Interval: outcome.IntervalSeconds,
			Reset:    outcome.Reset,
		})
		return
	}

	respondIngest(w, http.StatusCreated, ingestResponse{
		Message:  "Temperature recorded",
		Reading:  toReadingPayload(outcome.Reading),
		Interval: outcome.IntervalSeconds,
		Reset:    outcome.Reset,
	})
}

// RegisterHandler handles device self-registration on the device path. The
// firmware sends the owning user's id alongside the hardware address.
type RegisterHandler struct {
	service *bindingapp.Service
}

// NewRegisterHandler constructs a device registration handler.
func NewRegisterHandler(service *bindingapp.Service) (*RegisterHandler, error) {
	if service == nil {
		return nil, errors.New("register handler: nil service")
	}
	return &RegisterHandler{service: service}, nil
}

type registerRequest struct {
	UserID     string `json:"userId"`
	MACAddress string `json:"macAddress"`
}

type registerResponse struct {
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	MACAddress string `json:"macAddress,omitempty"`
}

// ServeHTTP registers a device into a user's pool.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, registerResponse{Error: "invalid json"})
		return
	}
	defer r.Body.Close()
	if req.UserID == "" || req.MACAddress == "" {
		respondJSON(w, http.StatusBadRequest, registerResponse{Error: "Missing required fields"})
		return
	}

	outcome, bound, err := h.service.RegisterDevice(r.Context(), req.UserID, req.MACAddress)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, registerResponse{Error: "Failed to register device"})
		return
	}

	status := http.StatusCreated
	message := "Device registered"
	switch outcome {
	case binding.OutcomeAlreadyOwned:
		status = http.StatusOK
		message = "Device already registered"
	case binding.OutcomeConflict:
		status = http.StatusConflict
		message = "Device registered to another user"
	}
	respondJSON(w, status, registerResponse{
		Message:    message,
		Outcome:    string(outcome),
		MACAddress: bound.MACAddress,
	})
}

func toReadingPayload(reading *telemetry.Reading) *readingPayload {
	if reading == nil {
		return nil
	}
	return &readingPayload{
		ID:          reading.ID,
		PatientID:   reading.PatientID,
		MACAddress:  reading.MACAddress,
		Temperature: reading.Temperature,
		RecordedAt:  reading.RecordedAt.Format(time.RFC3339),
	}
}

func respondIngest(w http.ResponseWriter, status int, resp ingestResponse) {
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
