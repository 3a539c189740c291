package workflow

import (
	"context"

	"seaop/db"
	"seaop/internal/notify"
	"seaop/models"
)

// Storage is the persistence surface the lifecycle service depends on.
// db.Storage implements it; tests substitute a mock.
type Storage interface {
	CreateLead(ctx context.Context, l *models.Lead) error
	GetLead(ctx context.Context, id int) (*models.Lead, error)
	UpdateLead(ctx context.Context, l *models.Lead) error
	UpdateLeadUrgency(ctx context.Context, id int, tier models.UrgencyTier) error
	GetLeads(ctx context.Context, f db.LeadFilter) ([]models.Lead, error)

	CreateBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id int) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, id int, status models.BidStatus) error
	AwardBid(ctx context.Context, leadID, bidID int) error
	GetBidsForLead(ctx context.Context, leadID int) ([]models.Bid, error)

	CreateArchitectureRequest(ctx context.Context, r *models.ArchitectureRequest) error
	GetArchitectureRequest(ctx context.Context, id int) (*models.ArchitectureRequest, error)
	UpdateArchitectureRequest(ctx context.Context, r *models.ArchitectureRequest) error
	GetArchitectureRequests(ctx context.Context, limit, offset int) ([]models.ArchitectureRequest, error)
}

// Dispatcher persists notifications for lifecycle events. Failures are
// logged and swallowed by the service: the state change always wins.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notify.Request) (*models.Notification, error)
}
