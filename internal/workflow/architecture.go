package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"seaop/internal/apperr"
	"seaop/internal/metrics"
	"seaop/internal/notify"
	"seaop/internal/urgency"
	"seaop/models"
)

// MinBuildingArea is the program threshold in square feet: smaller projects
// go through the regular lead flow instead.
const MinBuildingArea = 6000

// ArchitectureInput carries the client-supplied fields of a new
// architecture-service request.
type ArchitectureInput struct {
	ClientName         string
	Email              string
	Phone              string
	City               string
	BuildingType       string
	BuildingArea       float64
	Floors             int
	StructuralEng      bool
	MechanicalEng      bool
	ElectricalEng      bool
	CivilEng           bool
	SubmissionDeadline *time.Time
	DesiredStartDate   *time.Time
}

// EstimatePrice computes the architecture service price from the building
// area bracket plus per-square-foot engineering add-ons.
func EstimatePrice(in ArchitectureInput) float64 {
	area := in.BuildingArea

	var base, perSqFt float64
	switch {
	case area < 10000:
		base, perSqFt = 15000, 1.50
	case area < 25000:
		base, perSqFt = 25000, 1.25
	case area < 50000:
		base, perSqFt = 40000, 1.00
	default:
		base, perSqFt = 60000, 0.85
	}
	price := base + area*perSqFt

	if in.StructuralEng {
		price += area * 0.25
	}
	if in.MechanicalEng {
		price += area * 0.20
	}
	if in.ElectricalEng {
		price += area * 0.15
	}
	if in.CivilEng {
		price += area * 0.10
	}
	return price
}

// CreateArchitectureRequest validates the size threshold, estimates the
// service price, and registers the request. Admin gets notified of every
// new request.
func (s *Service) CreateArchitectureRequest(ctx context.Context, in ArchitectureInput) (*models.ArchitectureRequest, error) {
	if in.ClientName == "" || in.Email == "" {
		return nil, apperr.Validation("client name and email are required")
	}
	if in.BuildingType == "" {
		return nil, apperr.Validation("building type is required")
	}
	if in.BuildingArea < MinBuildingArea {
		return nil, apperr.Validation("building area %.0f sq ft is below the %d sq ft program threshold", in.BuildingArea, MinBuildingArea)
	}

	now := s.now()
	req := &models.ArchitectureRequest{
		Reference:          newReference("SEAOP-ARCH", now, 6),
		ClientName:         in.ClientName,
		Email:              in.Email,
		Phone:              in.Phone,
		City:               in.City,
		BuildingType:       in.BuildingType,
		BuildingArea:       in.BuildingArea,
		Floors:             in.Floors,
		StructuralEng:      in.StructuralEng,
		MechanicalEng:      in.MechanicalEng,
		ElectricalEng:      in.ElectricalEng,
		CivilEng:           in.CivilEng,
		EstimatedPrice:     EstimatePrice(in),
		SubmissionDeadline: in.SubmissionDeadline,
		DesiredStartDate:   in.DesiredStartDate,
		Urgency:            urgency.Classify(in.SubmissionDeadline, in.DesiredStartDate, now),
		Status:             models.RequestReceived,
	}
	if err := s.store.CreateArchitectureRequest(ctx, req); err != nil {
		return nil, err
	}

	relatedID := req.ID
	s.dispatch(ctx, notify.Request{
		RecipientKind: models.RecipientAdmin,
		RecipientID:   0,
		Category:      CategoryArchitectureNew,
		Title:         "New architecture request",
		Message:       fmt.Sprintf("%s - %s of %.0f sq ft", req.ClientName, req.BuildingType, req.BuildingArea),
		RelatedID:     &relatedID,
	})

	s.log.Info("architecture request created",
		zap.Int("requestId", req.ID),
		zap.String("reference", req.Reference),
		zap.Float64("estimatedPrice", req.EstimatedPrice))
	return req, nil
}

// GetArchitectureRequest fetches a request with its urgency refreshed.
func (s *Service) GetArchitectureRequest(ctx context.Context, id int) (*models.ArchitectureRequest, error) {
	req, err := s.store.GetArchitectureRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refreshRequestUrgency(ctx, req, s.now())
}

// ListArchitectureRequests returns requests newest-first with urgency
// refreshed.
func (s *Service) ListArchitectureRequests(ctx context.Context, limit, offset int) ([]models.ArchitectureRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	reqs, err := s.store.GetArchitectureRequests(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	today := s.now()
	for i := range reqs {
		refreshed, err := s.refreshRequestUrgency(ctx, &reqs[i], today)
		if err != nil {
			return nil, err
		}
		reqs[i] = *refreshed
	}
	return reqs, nil
}

func (s *Service) refreshRequestUrgency(ctx context.Context, req *models.ArchitectureRequest, today time.Time) (*models.ArchitectureRequest, error) {
	tier := urgency.Classify(req.SubmissionDeadline, req.DesiredStartDate, today)
	if tier == req.Urgency {
		return req, nil
	}
	old := req.Urgency
	req.Urgency = tier
	if err := s.store.UpdateArchitectureRequest(ctx, req); err != nil {
		return nil, err
	}
	if models.IsEscalation(old, tier) {
		metrics.UrgencyEscalations.WithLabelValues(string(tier)).Inc()
		relatedID := req.ID
		s.dispatch(ctx, notify.Request{
			RecipientKind: models.RecipientClient,
			RecipientID:   req.ID,
			Category:      CategoryProjectUrgency,
			Title:         fmt.Sprintf("Urgent - request %s", req.Reference),
			Message:       fmt.Sprintf("Your architecture request %q approaches its deadline.", req.BuildingType),
			RelatedID:     &relatedID,
			Email:         req.Email,
		})
	}
	return req, nil
}

// notify the client only on the milestones they act on or wait for.
var clientVisibleTransitions = map[models.RequestStatus]string{
	models.RequestAccepted:  "Your architecture request was accepted.",
	models.RequestRevision:  "Your plans are under revision.",
	models.RequestDelivered: "Your plans have been delivered.",
	models.RequestCompleted: "Your architecture request is complete.",
}

// AdvanceRequest moves a request one legal step through its status
// sequence, stamps the per-state timestamp, and optionally updates the
// completion percentage. Out-of-order jumps are rejected.
func (s *Service) AdvanceRequest(ctx context.Context, id int, to models.RequestStatus, percentComplete *int) (*models.ArchitectureRequest, error) {
	if percentComplete != nil && (*percentComplete < 0 || *percentComplete > 100) {
		return nil, apperr.Validation("percent complete must be between 0 and 100")
	}

	req, err := s.store.GetArchitectureRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if to == req.Status {
		return req, nil
	}
	if !models.CanTransitionRequest(req.Status, to) {
		return nil, apperr.InvalidState("request %d cannot move from %s to %s", id, req.Status, to)
	}

	now := s.now()
	from := req.Status
	req.Status = to
	switch to {
	case models.RequestUnderReview:
		req.ReviewedAt = &now
	case models.RequestAccepted:
		req.AcceptedAt = &now
	case models.RequestInProgress:
		req.StartedAt = &now
	case models.RequestRevision:
		req.RevisedAt = &now
	case models.RequestApproved:
		req.ApprovedAt = &now
	case models.RequestDelivered:
		req.DeliveredAt = &now
	case models.RequestCompleted:
		req.CompletedAt = &now
		req.PercentComplete = 100
	}
	if percentComplete != nil {
		req.PercentComplete = *percentComplete
	}

	if err := s.store.UpdateArchitectureRequest(ctx, req); err != nil {
		return nil, err
	}

	if msg, ok := clientVisibleTransitions[to]; ok {
		relatedID := req.ID
		s.dispatch(ctx, notify.Request{
			RecipientKind: models.RecipientClient,
			RecipientID:   req.ID,
			Category:      CategoryArchitectureStatus,
			Title:         fmt.Sprintf("Request %s: %s", req.Reference, to),
			Message:       msg,
			RelatedID:     &relatedID,
			Email:         req.Email,
		})
	}

	s.log.Info("architecture request advanced",
		zap.Int("requestId", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("percentComplete", req.PercentComplete))
	return req, nil
}
