package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"seaop/internal/apperr"
	"seaop/models"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// uniqueViolation is the Postgres error code for a violated unique
// constraint. Duplicate bids surface through it rather than through a
// check-then-act lookup.
const uniqueViolation = "23505"

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s: no matching row", op)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.Conflict("%s: duplicate entry", op)
	}
	return apperr.Storage(op, err)
}

// Lead

func (s *Storage) CreateLead(ctx context.Context, l *models.Lead) error {
	query := `
        INSERT INTO leads
            (reference, client_name, email, phone, postal_code, project_type,
             description, budget, completion_window, submission_deadline,
             desired_start_date, urgency, status, visible_to_contractors, accepting_bids)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		l.Reference, l.ClientName, l.Email, l.Phone, l.PostalCode, l.ProjectType,
		l.Description, l.Budget, l.CompletionWindow, l.SubmissionDeadline,
		l.DesiredStartDate, l.Urgency, l.Status, l.VisibleToContractors, l.AcceptingBids).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return wrapErr("create lead", err)
}

func (s *Storage) GetLead(ctx context.Context, id int) (*models.Lead, error) {
	l := &models.Lead{}
	query := `SELECT * FROM leads WHERE id=$1`
	if err := s.db.GetContext(ctx, l, query, id); err != nil {
		return nil, wrapErr("get lead", err)
	}
	return l, nil
}

func (s *Storage) UpdateLead(ctx context.Context, l *models.Lead) error {
	query := `
        UPDATE leads
        SET status=$1, accepting_bids=$2, visible_to_contractors=$3, urgency=$4, updated_at=NOW()
        WHERE id=$5`
	_, err := s.db.ExecContext(ctx, query,
		l.Status, l.AcceptingBids, l.VisibleToContractors, l.Urgency, l.ID)
	return wrapErr("update lead", err)
}

func (s *Storage) UpdateLeadUrgency(ctx context.Context, id int, tier models.UrgencyTier) error {
	query := `UPDATE leads SET urgency=$1, updated_at=NOW() WHERE id=$2`
	_, err := s.db.ExecContext(ctx, query, tier, id)
	return wrapErr("update lead urgency", err)
}

// LeadFilter narrows GetLeads. Zero value lists everything.
type LeadFilter struct {
	ProjectTypes []string
	OpenOnly     bool
	Limit        int
	Offset       int
}

func (s *Storage) GetLeads(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	baseQuery := `SELECT * FROM leads`
	var args []interface{}
	var where []string

	if len(f.ProjectTypes) > 0 {
		placeholders := make([]string, len(f.ProjectTypes))
		for i, v := range f.ProjectTypes {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("project_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.OpenOnly {
		where = append(where, "visible_to_contractors = TRUE AND accepting_bids = TRUE")
	}

	query := baseQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submission_deadline ASC NULLS LAST"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	leads := []models.Lead{}
	if err := s.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, wrapErr("get leads", err)
	}
	return leads, nil
}

// Bid

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bids
            (lead_id, contractor_id, amount, scope, timeframe, valid_until,
             inclusions, exclusions, payment_terms, documents, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		b.LeadID, b.ContractorID, b.Amount, b.Scope, b.Timeframe, b.ValidUntil,
		b.Inclusions, b.Exclusions, b.PaymentTerms, b.Documents, b.Status).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return wrapErr("create bid", err)
}

func (s *Storage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT * FROM bids WHERE id=$1`
	if err := s.db.GetContext(ctx, b, query, id); err != nil {
		return nil, wrapErr("get bid", err)
	}
	return b, nil
}

func (s *Storage) UpdateBidStatus(ctx context.Context, id int, status models.BidStatus) error {
	query := `UPDATE bids SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := s.db.ExecContext(ctx, query, status, id)
	return wrapErr("update bid status", err)
}

// AwardBid accepts the bid and moves the lead to awarded in one
// transaction: a half-awarded lead must never be observable.
func (s *Storage) AwardBid(ctx context.Context, leadID, bidID int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr("award bid", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE bids SET status=$1, updated_at=NOW() WHERE id=$2`,
		models.BidAccepted, bidID); err != nil {
		return wrapErr("award bid", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET status=$1, accepting_bids=FALSE, updated_at=NOW() WHERE id=$2`,
		models.LeadAwarded, leadID); err != nil {
		return wrapErr("award bid", err)
	}
	return wrapErr("award bid", tx.Commit())
}

func (s *Storage) GetBidsForLead(ctx context.Context, leadID int) ([]models.Bid, error) {
	query := `SELECT * FROM bids WHERE lead_id=$1 ORDER BY created_at DESC`
	bids := []models.Bid{}
	if err := s.db.SelectContext(ctx, &bids, query, leadID); err != nil {
		return nil, wrapErr("get bids for lead", err)
	}
	return bids, nil
}

// ArchitectureRequest

func (s *Storage) CreateArchitectureRequest(ctx context.Context, r *models.ArchitectureRequest) error {
	query := `
        INSERT INTO architecture_requests
            (reference, client_name, email, phone, city, building_type,
             building_area, floors, structural_eng, mechanical_eng,
             electrical_eng, civil_eng, estimated_price, submission_deadline,
             desired_start_date, urgency, status, percent_complete)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		r.Reference, r.ClientName, r.Email, r.Phone, r.City, r.BuildingType,
		r.BuildingArea, r.Floors, r.StructuralEng, r.MechanicalEng,
		r.ElectricalEng, r.CivilEng, r.EstimatedPrice, r.SubmissionDeadline,
		r.DesiredStartDate, r.Urgency, r.Status, r.PercentComplete).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return wrapErr("create architecture request", err)
}

func (s *Storage) GetArchitectureRequest(ctx context.Context, id int) (*models.ArchitectureRequest, error) {
	r := &models.ArchitectureRequest{}
	query := `SELECT * FROM architecture_requests WHERE id=$1`
	if err := s.db.GetContext(ctx, r, query, id); err != nil {
		return nil, wrapErr("get architecture request", err)
	}
	return r, nil
}

func (s *Storage) UpdateArchitectureRequest(ctx context.Context, r *models.ArchitectureRequest) error {
	query := `
        UPDATE architecture_requests
        SET status=$1, percent_complete=$2, urgency=$3,
            reviewed_at=$4, accepted_at=$5, started_at=$6, revised_at=$7,
            approved_at=$8, delivered_at=$9, completed_at=$10, updated_at=NOW()
        WHERE id=$11`
	_, err := s.db.ExecContext(ctx, query,
		r.Status, r.PercentComplete, r.Urgency,
		r.ReviewedAt, r.AcceptedAt, r.StartedAt, r.RevisedAt,
		r.ApprovedAt, r.DeliveredAt, r.CompletedAt, r.ID)
	return wrapErr("update architecture request", err)
}

func (s *Storage) GetArchitectureRequests(ctx context.Context, limit, offset int) ([]models.ArchitectureRequest, error) {
	query := `SELECT * FROM architecture_requests ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	reqs := []models.ArchitectureRequest{}
	if err := s.db.SelectContext(ctx, &reqs, query, limit, offset); err != nil {
		return nil, wrapErr("get architecture requests", err)
	}
	return reqs, nil
}

// Notification

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
        INSERT INTO notifications
            (recipient_kind, recipient_id, category, title, message, related_id)
        VALUES
            ($1, $2, $3, $4, $5, $6)
        RETURNING id, is_read, created_at`
	err := s.db.QueryRowContext(ctx, query,
		n.RecipientKind, n.RecipientID, n.Category, n.Title, n.Message, n.RelatedID).
		Scan(&n.ID, &n.Read, &n.CreatedAt)
	return wrapErr("create notification", err)
}

func (s *Storage) GetNotifications(ctx context.Context, kind models.RecipientKind, recipientID, limit int) ([]models.Notification, error) {
	query := `
        SELECT * FROM notifications
        WHERE recipient_kind=$1 AND recipient_id=$2
        ORDER BY created_at DESC
        LIMIT $3`
	notifs := []models.Notification{}
	if err := s.db.SelectContext(ctx, &notifs, query, kind, recipientID, limit); err != nil {
		return nil, wrapErr("get notifications", err)
	}
	return notifs, nil
}

func (s *Storage) CountUnreadNotifications(ctx context.Context, kind models.RecipientKind, recipientID int) (int, error) {
	var count int
	query := `SELECT COUNT(1) FROM notifications WHERE recipient_kind=$1 AND recipient_id=$2 AND is_read=FALSE`
	if err := s.db.GetContext(ctx, &count, query, kind, recipientID); err != nil {
		return 0, wrapErr("count unread notifications", err)
	}
	return count, nil
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id int) error {
	query := `UPDATE notifications SET is_read=TRUE WHERE id=$1`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapErr("mark notification read", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("notification %d", id)
	}
	return nil
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, kind models.RecipientKind, recipientID int) error {
	query := `UPDATE notifications SET is_read=TRUE WHERE recipient_kind=$1 AND recipient_id=$2 AND is_read=FALSE`
	_, err := s.db.ExecContext(ctx, query, kind, recipientID)
	return wrapErr("mark all notifications read", err)
}
