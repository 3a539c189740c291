// Package workflow owns the lead lifecycle: urgency refresh, bid
// acceptance side effects, bidding open/close, and the architecture-service
// request state machine.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seaop/db"
	"seaop/internal/apperr"
	"seaop/internal/metrics"
	"seaop/internal/notify"
	"seaop/internal/urgency"
	"seaop/models"
)

// Notification categories. Stable tags stored with each row so the UI can
// route and the reporting side can group.
const (
	CategoryProjectUrgency     = "project_urgency"
	CategoryNewBid             = "new_bid"
	CategoryBidAccepted        = "bid_accepted"
	CategoryBidRejected        = "bid_rejected"
	CategoryArchitectureNew    = "architecture_request"
	CategoryArchitectureStatus = "architecture_status"
)

type Service struct {
	store      Storage
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for deterministic urgency tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Storage, dispatcher Dispatcher, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dispatch is the single fail-open funnel: a dispatch error is logged,
// never returned. The state change that triggered it has already committed.
func (s *Service) dispatch(ctx context.Context, req notify.Request) {
	if _, err := s.dispatcher.Dispatch(ctx, req); err != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("category", req.Category),
			zap.String("recipientKind", string(req.RecipientKind)),
			zap.Int("recipientId", req.RecipientID),
			zap.Error(err))
	}
}

// LeadInput carries the client-supplied fields of a new lead.
type LeadInput struct {
	ClientName         string
	Email              string
	Phone              string
	PostalCode         string
	ProjectType        string
	Description        string
	Budget             string
	CompletionWindow   string
	SubmissionDeadline *time.Time
	DesiredStartDate   *time.Time
}

// SubmitLead creates a lead with a generated reference code, open for bids
// and with its urgency computed from the deadlines.
func (s *Service) SubmitLead(ctx context.Context, in LeadInput) (*models.Lead, error) {
	if in.ClientName == "" || in.Email == "" {
		return nil, apperr.Validation("client name and email are required")
	}
	if in.ProjectType == "" || in.Description == "" {
		return nil, apperr.Validation("project type and description are required")
	}

	now := s.now()
	lead := &models.Lead{
		Reference:            newReference("SEAOP", now, 8),
		ClientName:           in.ClientName,
		Email:                in.Email,
		Phone:                in.Phone,
		PostalCode:           in.PostalCode,
		ProjectType:          in.ProjectType,
		Description:          in.Description,
		Budget:               in.Budget,
		CompletionWindow:     in.CompletionWindow,
		SubmissionDeadline:   in.SubmissionDeadline,
		DesiredStartDate:     in.DesiredStartDate,
		Urgency:              urgency.Classify(in.SubmissionDeadline, in.DesiredStartDate, now),
		Status:               models.LeadNew,
		VisibleToContractors: true,
		AcceptingBids:        true,
	}
	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, err
	}
	s.log.Info("lead submitted",
		zap.Int("leadId", lead.ID),
		zap.String("reference", lead.Reference),
		zap.String("urgency", string(lead.Urgency)))
	return lead, nil
}

// GetLead fetches a lead with its urgency refreshed.
func (s *Service) GetLead(ctx context.Context, id int) (*models.Lead, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RefreshUrgency(ctx, lead)
}

// ListLeads returns urgency-refreshed leads sorted critical-first, then by
// soonest effective deadline. One clock read covers the whole listing.
func (s *Service) ListLeads(ctx context.Context, f db.LeadFilter) ([]models.Lead, error) {
	leads, err := s.store.GetLeads(ctx, f)
	if err != nil {
		return nil, err
	}
	today := s.now()
	for i := range leads {
		refreshed, err := s.refreshUrgencyAt(ctx, &leads[i], today)
		if err != nil {
			return nil, err
		}
		leads[i] = *refreshed
	}
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if a.Urgency != b.Urgency {
			return models.MoreSevere(a.Urgency, b.Urgency)
		}
		return urgency.EffectiveDays(a.SubmissionDeadline, a.DesiredStartDate, today) <
			urgency.EffectiveDays(b.SubmissionDeadline, b.DesiredStartDate, today)
	})
	return leads, nil
}

// RefreshUrgency recomputes the lead's tier from its deadlines. A tier
// escalation notifies the client and every contractor with a live bid;
// unchanged or de-escalated tiers persist silently.
func (s *Service) RefreshUrgency(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	return s.refreshUrgencyAt(ctx, lead, s.now())
}

func (s *Service) refreshUrgencyAt(ctx context.Context, lead *models.Lead, today time.Time) (*models.Lead, error) {
	tier := urgency.Classify(lead.SubmissionDeadline, lead.DesiredStartDate, today)
	if tier == lead.Urgency {
		return lead, nil
	}
	old := lead.Urgency
	if err := s.store.UpdateLeadUrgency(ctx, lead.ID, tier); err != nil {
		return nil, err
	}
	lead.Urgency = tier

	if models.IsEscalation(old, tier) {
		metrics.UrgencyEscalations.WithLabelValues(string(tier)).Inc()
		s.notifyEscalation(ctx, lead, today)
	}
	return lead, nil
}

func (s *Service) notifyEscalation(ctx context.Context, lead *models.Lead, today time.Time) {
	days := urgency.EffectiveDays(lead.SubmissionDeadline, lead.DesiredStartDate, today)

	var title, message string
	if lead.Urgency == models.UrgencyCritical {
		title = fmt.Sprintf("Urgent - project %s", lead.Reference)
		if days < 0 {
			message = fmt.Sprintf("The deadline for project %q passed %d day(s) ago.", lead.ProjectType, -days)
		} else {
			message = fmt.Sprintf("Project %q reaches its deadline in %d day(s).", lead.ProjectType, days)
		}
	} else {
		title = fmt.Sprintf("Priority - project %s", lead.Reference)
		message = fmt.Sprintf("Project %q needs attention: %d day(s) remaining.", lead.ProjectType, days)
	}

	relatedID := lead.ID
	s.dispatch(ctx, notify.Request{
		RecipientKind: models.RecipientClient,
		RecipientID:   lead.ID,
		Category:      CategoryProjectUrgency,
		Title:         title,
		Message:       message,
		RelatedID:     &relatedID,
		Email:         lead.Email,
	})

	// Fan-out to bidders is not transactional: one failed recipient does
	// not stop the next.
	bids, err := s.store.GetBidsForLead(ctx, lead.ID)
	if err != nil {
		s.log.Warn("escalation fan-out skipped", zap.Int("leadId", lead.ID), zap.Error(err))
		return
	}
	for _, bid := range bids {
		if bid.Status == models.BidRejected {
			continue
		}
		s.dispatch(ctx, notify.Request{
			RecipientKind: models.RecipientContractor,
			RecipientID:   bid.ContractorID,
			Category:      CategoryProjectUrgency,
			Title:         title,
			Message:       "A project you bid on escalated: " + message,
			RelatedID:     &relatedID,
		})
	}
}

// BidInput carries the contractor-supplied fields of a new bid.
type BidInput struct {
	LeadID       int
	ContractorID int
	Amount       float64
	Scope        string
	Timeframe    string
	ValidUntil   string
	Inclusions   string
	Exclusions   string
	PaymentTerms string
	Documents    string
}

// SubmitBid creates a bid against an open lead and notifies the client.
// The one-bid-per-contractor rule is the database's: a duplicate surfaces
// as a conflict, never as a silent second insert.
func (s *Service) SubmitBid(ctx context.Context, in BidInput) (*models.Bid, error) {
	if in.ContractorID <= 0 {
		return nil, apperr.Validation("contractorId must be positive")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if in.Scope == "" {
		return nil, apperr.Validation("scope is required")
	}

	lead, err := s.store.GetLead(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if lead.Status != models.LeadNew && lead.Status != models.LeadInReview {
		return nil, apperr.InvalidState("lead %d is %s and no longer accepts bids", lead.ID, lead.Status)
	}
	if !lead.AcceptingBids {
		return nil, apperr.InvalidState("lead %d is not accepting bids", lead.ID)
	}
	if lead.SubmissionDeadline != nil && urgency.DaysRemaining(lead.SubmissionDeadline, s.now()) < 0 {
		return nil, apperr.InvalidState("submission deadline for lead %d has passed", lead.ID)
	}

	bid := &models.Bid{
		LeadID:       in.LeadID,
		ContractorID: in.ContractorID,
		Amount:       in.Amount,
		Scope:        in.Scope,
		Timeframe:    in.Timeframe,
		ValidUntil:   in.ValidUntil,
		Inclusions:   in.Inclusions,
		Exclusions:   in.Exclusions,
		PaymentTerms: in.PaymentTerms,
		Documents:    in.Documents,
		Status:       models.BidSubmitted,
	}
	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, err
	}
	metrics.BidsSubmitted.Inc()

	relatedID := lead.ID
	s.dispatch(ctx, notify.Request{
		RecipientKind: models.RecipientClient,
		RecipientID:   lead.ID,
		Category:      CategoryNewBid,
		Title:         "New bid received",
		Message:       fmt.Sprintf("You received a new bid on your project %q.", lead.ProjectType),
		RelatedID:     &relatedID,
		Email:         lead.Email,
	})

	s.log.Info("bid submitted",
		zap.Int("leadId", lead.ID),
		zap.Int("bidId", bid.ID),
		zap.Int("contractorId", bid.ContractorID))
	return bid, nil
}

// GetBidsForLead lists a lead's bids, newest first.
func (s *Service) GetBidsForLead(ctx context.Context, leadID int) ([]models.Bid, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.store.GetBidsForLead(ctx, leadID)
}

func (s *Service) bidOnLead(ctx context.Context, leadID, bidID int) (*models.Bid, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.LeadID != leadID {
		return nil, apperr.NotFound("bid %d does not belong to lead %d", bidID, leadID)
	}
	return bid, nil
}

// AcceptBid marks the bid accepted and moves the lead to awarded, both in
// one storage transaction. Sibling bids stay untouched; the client rejects
// them explicitly if desired. Idempotent: re-accepting an accepted bid
// returns it unchanged.
func (s *Service) AcceptBid(ctx context.Context, leadID, bidID, actingClientID int) (*models.Bid, error) {
	bid, err := s.bidOnLead(ctx, leadID, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status == models.BidAccepted {
		return bid, nil
	}
	if bid.Status == models.BidRejected {
		return nil, apperr.InvalidState("bid %d is already rejected", bidID)
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if err := s.store.AwardBid(ctx, leadID, bidID); err != nil {
		return nil, err
	}
	bid.Status = models.BidAccepted
	lead.Status = models.LeadAwarded
	lead.AcceptingBids = false

	relatedID := bid.ID
	s.dispatch(ctx, notify.Request{
		RecipientKind: models.RecipientContractor,
		RecipientID:   bid.ContractorID,
		Category:      CategoryBidAccepted,
		Title:         "Bid accepted",
		Message:       fmt.Sprintf("Your bid of $%.2f on project %q was accepted.", bid.Amount, lead.ProjectType),
		RelatedID:     &relatedID,
	})

	s.log.Info("bid accepted",
		zap.Int("leadId", leadID),
		zap.Int("bidId", bidID),
		zap.Int("actingClientId", actingClientID))
	return bid, nil
}

// RejectBid marks the bid rejected. An accepted bid must be un-accepted
// through an explicit separate operation first; it is never silently
// overridden here.
func (s *Service) RejectBid(ctx context.Context, leadID, bidID, actingClientID int) (*models.Bid, error) {
	bid, err := s.bidOnLead(ctx, leadID, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status == models.BidRejected {
		return bid, nil
	}
	if bid.Status == models.BidAccepted {
		return nil, apperr.InvalidState("bid %d is accepted and cannot be rejected", bidID)
	}

	// Fetch the lead before mutating: once the rejection commits, nothing
	// left on this path may fail.
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateBidStatus(ctx, bidID, models.BidRejected); err != nil {
		return nil, err
	}
	bid.Status = models.BidRejected

	relatedID := bid.ID
	s.dispatch(ctx, notify.Request{
		RecipientKind: models.RecipientContractor,
		RecipientID:   bid.ContractorID,
		Category:      CategoryBidRejected,
		Title:         "Bid not retained",
		Message:       fmt.Sprintf("Your bid on project %q was not retained.", lead.ProjectType),
		RelatedID:     &relatedID,
	})

	s.log.Info("bid rejected",
		zap.Int("leadId", leadID),
		zap.Int("bidId", bidID),
		zap.Int("actingClientId", actingClientID))
	return bid, nil
}

// MarkBidViewed flips a submitted bid to viewed when the client first opens
// it. Any other status is left alone; no notification.
func (s *Service) MarkBidViewed(ctx context.Context, leadID, bidID int) (*models.Bid, error) {
	bid, err := s.bidOnLead(ctx, leadID, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status != models.BidSubmitted {
		return bid, nil
	}
	if err := s.store.UpdateBidStatus(ctx, bidID, models.BidViewed); err != nil {
		return nil, err
	}
	bid.Status = models.BidViewed
	return bid, nil
}

// CloseBidding stops new bids on a lead. Idempotent and silent: the client
// initiated it, the client already knows.
func (s *Service) CloseBidding(ctx context.Context, leadID, actingClientID int) (*models.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !lead.AcceptingBids && lead.Status != models.LeadNew {
		return lead, nil
	}
	lead.AcceptingBids = false
	if lead.Status == models.LeadNew || lead.Status == models.LeadInReview {
		lead.Status = models.LeadClosed
	}
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	s.log.Info("bidding closed",
		zap.Int("leadId", leadID),
		zap.Int("actingClientId", actingClientID))
	return lead, nil
}

// newReference builds a unique human-readable code such as
// SEAOP-20250602-3F2A91BC.
func newReference(prefix string, now time.Time, n int) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), id[:n])
}
