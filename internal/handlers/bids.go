package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"seaop/internal/workflow"
	"seaop/models"
)

type bidRequest struct {
	ContractorID int     `json:"contractorId"`
	Amount       float64 `json:"amount"`
	Scope        string  `json:"scope"`
	Timeframe    string  `json:"timeframe"`
	ValidUntil   string  `json:"validUntil"`
	Inclusions   string  `json:"inclusions"`
	Exclusions   string  `json:"exclusions"`
	PaymentTerms string  `json:"paymentTerms"`
	Documents    string  `json:"documents"`
}

// CreateBidHandler handles POST /api/leads/{leadId}/bids/new.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req bidRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	bid, err := h.Workflow.SubmitBid(r.Context(), workflow.BidInput{
		LeadID:       leadID,
		ContractorID: req.ContractorID,
		Amount:       req.Amount,
		Scope:        req.Scope,
		Timeframe:    req.Timeframe,
		ValidUntil:   req.ValidUntil,
		Inclusions:   req.Inclusions,
		Exclusions:   req.Exclusions,
		PaymentTerms: req.PaymentTerms,
		Documents:    req.Documents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// GetLeadBidsHandler handles GET /api/leads/{leadId}/bids.
func (h *Handler) GetLeadBidsHandler(w http.ResponseWriter, r *http.Request) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}

	bids, err := h.Workflow.GetBidsForLead(r.Context(), leadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// AcceptBidHandler handles POST /api/leads/{leadId}/bids/{bidId}/accept.
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	h.bidDecision(w, r, h.Workflow.AcceptBid)
}

// RejectBidHandler handles POST /api/leads/{leadId}/bids/{bidId}/reject.
func (h *Handler) RejectBidHandler(w http.ResponseWriter, r *http.Request) {
	h.bidDecision(w, r, h.Workflow.RejectBid)
}

func (h *Handler) bidDecision(w http.ResponseWriter, r *http.Request,
	decide func(ctx context.Context, leadID, bidID, actingClientID int) (*models.Bid, error)) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}
	bidID, err := pathID(r, "bidId")
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := queryInt(r, "clientId")
	if err != nil {
		writeError(w, err)
		return
	}

	bid, err := decide(r.Context(), leadID, bidID, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// MarkBidViewedHandler handles POST /api/leads/{leadId}/bids/{bidId}/viewed.
func (h *Handler) MarkBidViewedHandler(w http.ResponseWriter, r *http.Request) {
	leadID, err := pathID(r, "leadId")
	if err != nil {
		writeError(w, err)
		return
	}
	bidID, err := pathID(r, "bidId")
	if err != nil {
		writeError(w, err)
		return
	}

	bid, err := h.Workflow.MarkBidViewed(r.Context(), leadID, bidID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
