// Package notify persists notification records for lifecycle events and
// exposes the read side (list, unread count, mark read).
//
// Dispatch is best-effort relative to the state change that caused it: the
// lifecycle service never rolls back because a notification failed. An
// un-sent notification is recoverable; an inconsistent lead state is not.
package notify

import (
	"context"

	"go.uber.org/zap"

	"seaop/internal/metrics"
	"seaop/models"
)

// DefaultListLimit bounds notification listings when the caller gives none.
const DefaultListLimit = 10

// Store is the persistence surface the dispatcher needs.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotifications(ctx context.Context, kind models.RecipientKind, recipientID, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, kind models.RecipientKind, recipientID int) (int, error)
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context, kind models.RecipientKind, recipientID int) error
}

// Request describes one notification to dispatch. Email is optional; when
// set and a forwarder is configured, a copy goes out by mail best-effort.
type Request struct {
	RecipientKind models.RecipientKind
	RecipientID   int
	Category      string
	Title         string
	Message       string
	RelatedID     *int
	Email         string
}

type Service struct {
	store Store
	email *EmailForwarder
	log   *zap.Logger
}

func NewService(store Store, email *EmailForwarder, log *zap.Logger) *Service {
	return &Service{store: store, email: email, log: log}
}

// Dispatch persists one notification row. It fails only when the store is
// unavailable; email forwarding failures are logged and swallowed.
func (s *Service) Dispatch(ctx context.Context, req Request) (*models.Notification, error) {
	n := &models.Notification{
		RecipientKind: req.RecipientKind,
		RecipientID:   req.RecipientID,
		Category:      req.Category,
		Title:         req.Title,
		Message:       req.Message,
		RelatedID:     req.RelatedID,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		metrics.NotificationDispatchFailures.WithLabelValues(req.Category).Inc()
		return nil, err
	}
	metrics.NotificationsDispatched.WithLabelValues(req.Category, string(req.RecipientKind)).Inc()

	if s.email != nil && req.Email != "" {
		if err := s.email.Forward(ctx, req.Email, req.Title, req.Message); err != nil {
			s.log.Warn("email forward failed",
				zap.String("category", req.Category),
				zap.Int("notificationId", n.ID),
				zap.Error(err))
		}
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, kind models.RecipientKind, recipientID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.GetNotifications(ctx, kind, recipientID, limit)
}

func (s *Service) UnreadCount(ctx context.Context, kind models.RecipientKind, recipientID int) (int, error) {
	return s.store.CountUnreadNotifications(ctx, kind, recipientID)
}

func (s *Service) MarkRead(ctx context.Context, id int) error {
	return s.store.MarkNotificationRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, kind models.RecipientKind, recipientID int) error {
	return s.store.MarkAllNotificationsRead(ctx, kind, recipientID)
}
