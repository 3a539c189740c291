package models

import "time"

// UrgencyTier is derived from a lead's deadlines and is never authoritative:
// it must always be recomputable from the dates.
type UrgencyTier string

const (
	UrgencyLow      UrgencyTier = "low"
	UrgencyNormal   UrgencyTier = "normal"
	UrgencyHigh     UrgencyTier = "high"
	UrgencyCritical UrgencyTier = "critical"
)

// severity orders tiers for escalation checks.
var severity = map[UrgencyTier]int{
	UrgencyLow:      0,
	UrgencyNormal:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

// IsEscalation reports whether moving from old to next crosses from the calm
// tiers into the severe ones. Only that crossing triggers notifications.
func IsEscalation(old, next UrgencyTier) bool {
	return severity[old] <= severity[UrgencyNormal] && severity[next] >= severity[UrgencyHigh]
}

// MoreSevere reports whether a ranks strictly above b.
func MoreSevere(a, b UrgencyTier) bool {
	return severity[a] > severity[b]
}

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadInReview  LeadStatus = "in_review"
	LeadClosed    LeadStatus = "closed"
	LeadAwarded   LeadStatus = "awarded"
	LeadCancelled LeadStatus = "cancelled"
)

type BidStatus string

const (
	BidSubmitted BidStatus = "submitted"
	BidViewed    BidStatus = "viewed"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
)

// RequestStatus is the architecture-service request vocabulary. Requests
// advance through exactly this sequence, with revision optional and
// repeatable between in_progress and approved.
type RequestStatus string

const (
	RequestReceived    RequestStatus = "received"
	RequestUnderReview RequestStatus = "under_review"
	RequestAccepted    RequestStatus = "accepted"
	RequestInProgress  RequestStatus = "in_progress"
	RequestRevision    RequestStatus = "revision"
	RequestApproved    RequestStatus = "approved"
	RequestDelivered   RequestStatus = "delivered"
	RequestCompleted   RequestStatus = "completed"
)

// requestTransitions is the single legal-transition table for architecture
// requests. Anything not listed is an out-of-order jump.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestReceived:    {RequestUnderReview},
	RequestUnderReview: {RequestAccepted},
	RequestAccepted:    {RequestInProgress},
	RequestInProgress:  {RequestRevision, RequestApproved},
	RequestRevision:    {RequestInProgress, RequestApproved},
	RequestApproved:    {RequestDelivered},
	RequestDelivered:   {RequestCompleted},
}

// CanTransitionRequest reports whether from -> to is a legal step.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type RecipientKind string

const (
	RecipientClient     RecipientKind = "client"
	RecipientContractor RecipientKind = "contractor"
	RecipientAdmin      RecipientKind = "admin"
)

// Lead is a client-posted project seeking contractor bids.
type Lead struct {
	ID               int    `db:"id" json:"id"`
	Reference        string `db:"reference" json:"reference"`
	ClientName       string `db:"client_name" json:"clientName" validate:"required,max=100"`
	Email            string `db:"email" json:"email" validate:"required"`
	Phone            string `db:"phone" json:"phone"`
	PostalCode       string `db:"postal_code" json:"postalCode"`
	ProjectType      string `db:"project_type" json:"projectType" validate:"required,max=100"`
	Description      string `db:"description" json:"description" validate:"required,max=2000"`
	Budget           string `db:"budget" json:"budget"`
	CompletionWindow string `db:"completion_window" json:"completionWindow"`

	SubmissionDeadline *time.Time `db:"submission_deadline" json:"submissionDeadline,omitempty"`
	DesiredStartDate   *time.Time `db:"desired_start_date" json:"desiredStartDate,omitempty"`

	Urgency              UrgencyTier `db:"urgency" json:"urgency"`
	Status               LeadStatus  `db:"status" json:"status"`
	VisibleToContractors bool        `db:"visible_to_contractors" json:"visibleToContractors"`
	AcceptingBids        bool        `db:"accepting_bids" json:"acceptingBids"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// Bid (soumission) is a contractor's priced proposal against a lead.
// At most one bid per (lead, contractor) pair; the constraint lives in the
// database, not in application code.
type Bid struct {
	ID           int       `db:"id" json:"id"`
	LeadID       int       `db:"lead_id" json:"leadId" validate:"required"`
	ContractorID int       `db:"contractor_id" json:"contractorId" validate:"required"`
	Amount       float64   `db:"amount" json:"amount" validate:"required"`
	Scope        string    `db:"scope" json:"scope" validate:"required,max=2000"`
	Timeframe    string    `db:"timeframe" json:"timeframe"`
	ValidUntil   string    `db:"valid_until" json:"validUntil"`
	Inclusions   string    `db:"inclusions" json:"inclusions"`
	Exclusions   string    `db:"exclusions" json:"exclusions"`
	PaymentTerms string    `db:"payment_terms" json:"paymentTerms"`
	Documents    string    `db:"documents" json:"documents"`
	Status       BidStatus `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// ArchitectureRequest is the large-project (>= 6000 sq ft) variant of Lead,
// handled by licensed architects with a richer status sequence.
type ArchitectureRequest struct {
	ID           int     `db:"id" json:"id"`
	Reference    string  `db:"reference" json:"reference"`
	ClientName   string  `db:"client_name" json:"clientName" validate:"required,max=100"`
	Email        string  `db:"email" json:"email" validate:"required"`
	Phone        string  `db:"phone" json:"phone"`
	City         string  `db:"city" json:"city"`
	BuildingType string  `db:"building_type" json:"buildingType" validate:"required"`
	BuildingArea float64 `db:"building_area" json:"buildingArea" validate:"required"`
	Floors       int     `db:"floors" json:"floors"`

	StructuralEng bool `db:"structural_eng" json:"structuralEng"`
	MechanicalEng bool `db:"mechanical_eng" json:"mechanicalEng"`
	ElectricalEng bool `db:"electrical_eng" json:"electricalEng"`
	CivilEng      bool `db:"civil_eng" json:"civilEng"`

	EstimatedPrice float64 `db:"estimated_price" json:"estimatedPrice"`

	SubmissionDeadline *time.Time  `db:"submission_deadline" json:"submissionDeadline,omitempty"`
	DesiredStartDate   *time.Time  `db:"desired_start_date" json:"desiredStartDate,omitempty"`
	Urgency            UrgencyTier `db:"urgency" json:"urgency"`

	Status          RequestStatus `db:"status" json:"status"`
	PercentComplete int           `db:"percent_complete" json:"percentComplete"`

	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	AcceptedAt  *time.Time `db:"accepted_at" json:"acceptedAt,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"startedAt,omitempty"`
	RevisedAt   *time.Time `db:"revised_at" json:"revisedAt,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// Notification is a persisted per-recipient record. Write-once plus a single
// read/unread flip; never deleted by the core.
type Notification struct {
	ID            int           `db:"id" json:"id"`
	RecipientKind RecipientKind `db:"recipient_kind" json:"recipientKind"`
	RecipientID   int           `db:"recipient_id" json:"recipientId"`
	Category      string        `db:"category" json:"category"`
	Title         string        `db:"title" json:"title"`
	Message       string        `db:"message" json:"message"`
	RelatedID     *int          `db:"related_id" json:"relatedId,omitempty"`
	Read          bool          `db:"is_read" json:"read"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}
