package handlers

import (
	"context"

	"seaop/db"
	"seaop/internal/workflow"
	"seaop/models"
)

// LifecycleService is the slice of the workflow service the handlers use.
// workflow.Service implements it; tests substitute a mock.
type LifecycleService interface {
	SubmitLead(ctx context.Context, in workflow.LeadInput) (*models.Lead, error)
	GetLead(ctx context.Context, id int) (*models.Lead, error)
	ListLeads(ctx context.Context, f db.LeadFilter) ([]models.Lead, error)
	CloseBidding(ctx context.Context, leadID, actingClientID int) (*models.Lead, error)

	SubmitBid(ctx context.Context, in workflow.BidInput) (*models.Bid, error)
	GetBidsForLead(ctx context.Context, leadID int) ([]models.Bid, error)
	AcceptBid(ctx context.Context, leadID, bidID, actingClientID int) (*models.Bid, error)
	RejectBid(ctx context.Context, leadID, bidID, actingClientID int) (*models.Bid, error)
	MarkBidViewed(ctx context.Context, leadID, bidID int) (*models.Bid, error)

	CreateArchitectureRequest(ctx context.Context, in workflow.ArchitectureInput) (*models.ArchitectureRequest, error)
	GetArchitectureRequest(ctx context.Context, id int) (*models.ArchitectureRequest, error)
	ListArchitectureRequests(ctx context.Context, limit, offset int) ([]models.ArchitectureRequest, error)
	AdvanceRequest(ctx context.Context, id int, to models.RequestStatus, percentComplete *int) (*models.ArchitectureRequest, error)
}

// NotificationService is the read/ack surface of the dispatcher.
type NotificationService interface {
	List(ctx context.Context, kind models.RecipientKind, recipientID, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, kind models.RecipientKind, recipientID int) (int, error)
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context, kind models.RecipientKind, recipientID int) error
}
