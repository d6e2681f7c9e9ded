package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"thermoband-cloud/internal/audit"
	"thermoband-cloud/internal/auth"
	bindingapp "thermoband-cloud/internal/binding/application"
	binding "thermoband-cloud/internal/binding/domain"
)

// Handler provides the binding lifecycle HTTP endpoints for clinical users.
type Handler struct {
	service     *bindingapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a lifecycle handler.
func NewHandler(service *bindingapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("binding handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/devices requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/v1/devices")
	action = strings.Trim(action, "/")

	switch {
	case action == "register" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case action == "assign" && r.Method == http.MethodPost:
		h.handleAssign(w, r)
	case action == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r)
	case action == "interval" && r.Method == http.MethodPost:
		h.handleInterval(w, r)
	case action == "unassigned" && r.Method == http.MethodGet:
		h.handleUnassigned(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type registerRequest struct {
	MACAddress string `json:"macAddress"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.MACAddress == "" {
		http.Error(w, "macAddress required", http.StatusBadRequest)
		return
	}

	outcome, bound, err := h.service.RegisterDevice(r.Context(), userID, req.MACAddress)
	if err != nil {
		http.Error(w, "failed to register device", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	switch outcome {
	case binding.OutcomeAlreadyOwned:
		status = http.StatusOK
	case binding.OutcomeConflict:
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]any{
		"outcome":    string(outcome),
		"macAddress": bound.MACAddress,
		"interval":   bound.IntervalSeconds,
	})
	h.logAudit(r, userID, "device.register", req.MACAddress, map[string]any{"outcome": string(outcome)})
}

type assignRequest struct {
	PatientID  string `json:"patientId"`
	MACAddress string `json:"macAddress"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.PatientID == "" || req.MACAddress == "" {
		http.Error(w, "patientId and macAddress required", http.StatusBadRequest)
		return
	}

	if err := h.service.AssignDevice(r.Context(), userID, req.PatientID, req.MACAddress); err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "Device assigned to patient",
		"macAddress": req.MACAddress,
	})
	h.logAudit(r, userID, "device.assign", req.MACAddress, map[string]any{"patient_id": req.PatientID})
}

type resetRequest struct {
	MACAddress string `json:"macAddress"`
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.MACAddress == "" {
		http.Error(w, "macAddress required", http.StatusBadRequest)
		return
	}

	if err := h.service.RequestReset(r.Context(), req.MACAddress); err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Reset requested, device will be detached after it acknowledges",
		"macAddress": req.MACAddress,
	})
	h.logAudit(r, userID, "device.reset_request", req.MACAddress, nil)
}

type intervalRequest struct {
	MACAddress string `json:"macAddress"`
	Interval   int    `json:"interval"`
}

func (h *Handler) handleInterval(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.MACAddress == "" {
		http.Error(w, "macAddress required", http.StatusBadRequest)
		return
	}

	if err := h.service.SetInterval(r.Context(), req.MACAddress, req.Interval); err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Interval updated",
		"macAddress": req.MACAddress,
		"interval":   req.Interval,
	})
	h.logAudit(r, userID, "device.set_interval", req.MACAddress, map[string]any{"interval": req.Interval})
}

func (h *Handler) handleUnassigned(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.service.ListUnassigned(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	macs := make([]string, 0, len(list))
	for _, item := range list {
		macs = append(macs, item.MACAddress)
	}
	respondJSON(w, http.StatusOK, map[string]any{"devices": macs})
}

func (h *Handler) logAudit(r *http.Request, userID, action, macAddress string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var metadata json.RawMessage
	if meta != nil {
		metadata, _ = json.Marshal(meta)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        userID,
		Action:       action,
		ResourceType: "device",
		ResourceID:   macAddress,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, binding.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, binding.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, binding.ErrInvalidInterval), errors.Is(err, binding.ErrEmptyMAC):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
