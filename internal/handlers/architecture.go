package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"seaop/internal/workflow"
	"seaop/models"
)

type architectureRequest struct {
	ClientName         string     `json:"clientName"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	City               string     `json:"city"`
	BuildingType       string     `json:"buildingType"`
	BuildingArea       float64    `json:"buildingArea"`
	Floors             int        `json:"floors"`
	StructuralEng      bool       `json:"structuralEng"`
	MechanicalEng      bool       `json:"mechanicalEng"`
	ElectricalEng      bool       `json:"electricalEng"`
	CivilEng           bool       `json:"civilEng"`
	SubmissionDeadline *time.Time `json:"submissionDeadline"`
	DesiredStartDate   *time.Time `json:"desiredStartDate"`
}

// CreateArchitectureRequestHandler handles POST /api/architecture/new.
func (h *Handler) CreateArchitectureRequestHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req architectureRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	created, err := h.Workflow.CreateArchitectureRequest(r.Context(), workflow.ArchitectureInput{
		ClientName:         req.ClientName,
		Email:              req.Email,
		Phone:              req.Phone,
		City:               req.City,
		BuildingType:       req.BuildingType,
		BuildingArea:       req.BuildingArea,
		Floors:             req.Floors,
		StructuralEng:      req.StructuralEng,
		MechanicalEng:      req.MechanicalEng,
		ElectricalEng:      req.ElectricalEng,
		CivilEng:           req.CivilEng,
		SubmissionDeadline: req.SubmissionDeadline,
		DesiredStartDate:   req.DesiredStartDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetArchitectureRequestHandler handles GET /api/architecture/{requestId}.
func (h *Handler) GetArchitectureRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestId")
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := h.Workflow.GetArchitectureRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetArchitectureRequestsHandler handles GET /api/architecture.
func (h *Handler) GetArchitectureRequestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	reqs, err := h.Workflow.ListArchitectureRequests(r.Context(), params.Limit, params.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type advanceRequest struct {
	Status          models.RequestStatus `json:"status"`
	PercentComplete *int                 `json:"percentComplete"`
}

// AdvanceRequestHandler handles POST /api/architecture/{requestId}/status.
func (h *Handler) AdvanceRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestId")
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req advanceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "Missing status", http.StatusBadRequest)
		return
	}

	updated, err := h.Workflow.AdvanceRequest(r.Context(), requestID, req.Status, req.PercentComplete)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
