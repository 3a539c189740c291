package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"seaop/db"
	"seaop/internal/apperr"
	"seaop/internal/workflow"
)

type leadRequest struct {
	ClientName         string     `json:"clientName"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	PostalCode         string     `json:"postalCode"`
	ProjectType        string     `json:"projectType"`
	Description        string     `json:"description"`
	Budget             string     `json:"budget"`
	CompletionWindow   string     `json:"completionWindow"`
	SubmissionDeadline *time.Time `json:"submissionDeadline"`
	DesiredStartDate   *time.Time `json:"desiredStartDate"`
}

// CreateLeadHandler handles POST /api/leads/new.
func (h *Handler) CreateLeadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req leadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	lead, err := h.Workflow.SubmitLead(r.Context(), workflow.LeadInput{
		ClientName:         req.ClientName,
		Email:              req.Email,
		Phone:              req.Phone,
		PostalCode:         req.PostalCode,
		ProjectType:        req.ProjectType,
		Description:        req.Description,
		Budget:             req.Budget,
		CompletionWindow:   req.CompletionWindow,
		SubmissionDeadline: req.SubmissionDeadline,
		DesiredStartDate:   req.DesiredStartDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// GetLeadsHandler handles GET /api/leads with project_type and open filters.
func (h *Handler) GetLeadsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	filter := db.LeadFilter{
		ProjectTypes: r.URL.Query()["project_type"],
		OpenOnly:     r.URL.Query().Get("open") == "true",
		Limit:        params.Limit,
		Offset:       params.Offset,
	}

	leads, err := h.Workflow.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

// GetLeadHandler handles GET /api/leads/{leadId}.
func (h *Handler) GetLeadHandler(w http.ResponseWriter, r *http.Request) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}

	lead, err := h.Workflow.GetLead(r.Context(), leadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// CloseBiddingHandler handles POST /api/leads/{leadId}/close.
func (h *Handler) CloseBiddingHandler(w http.ResponseWriter, r *http.Request) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := queryInt(r, "clientId")
	if err != nil {
		writeError(w, err)
		return
	}

	lead, err := h.Workflow.CloseBidding(r.Context(), leadID, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, apperr.Validation("missing %s parameter", name)
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}
