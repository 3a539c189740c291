package workflow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seaop/db"
	"seaop/internal/apperr"
	"seaop/internal/notify"
	"seaop/models"
)

// mockStore is an in-memory Storage for service tests.
type mockStore struct {
	leads    map[int]*models.Lead
	bids     map[int]*models.Bid
	requests map[int]*models.ArchitectureRequest
	nextID   int

	failAwardBid error
	failGetLead  error
}

func newMockStore() *mockStore {
	return &mockStore{
		leads:    make(map[int]*models.Lead),
		bids:     make(map[int]*models.Bid),
		requests: make(map[int]*models.ArchitectureRequest),
		nextID:   1,
	}
}

func (m *mockStore) CreateLead(_ context.Context, l *models.Lead) error {
	l.ID = m.nextID
	m.nextID++
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockStore) GetLead(_ context.Context, id int) (*models.Lead, error) {
	if m.failGetLead != nil {
		return nil, m.failGetLead
	}
	l, ok := m.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead %d not found", id)
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) UpdateLead(_ context.Context, l *models.Lead) error {
	if _, ok := m.leads[l.ID]; !ok {
		return apperr.NotFound("lead %d not found", l.ID)
	}
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockStore) UpdateLeadUrgency(_ context.Context, id int, tier models.UrgencyTier) error {
	l, ok := m.leads[id]
	if !ok {
		return apperr.NotFound("lead %d not found", id)
	}
	l.Urgency = tier
	return nil
}

func (m *mockStore) GetLeads(_ context.Context, f db.LeadFilter) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range m.leads {
		if f.OpenOnly && !(l.Status == models.LeadNew || l.Status == models.LeadInReview) {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateBid(_ context.Context, b *models.Bid) error {
	for _, existing := range m.bids {
		if existing.LeadID == b.LeadID && existing.ContractorID == b.ContractorID {
			return apperr.Conflict("contractor %d already bid on lead %d", b.ContractorID, b.LeadID)
		}
	}
	b.ID = m.nextID
	m.nextID++
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *mockStore) GetBid(_ context.Context, id int) (*models.Bid, error) {
	b, ok := m.bids[id]
	if !ok {
		return nil, apperr.NotFound("bid %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (m *mockStore) UpdateBidStatus(_ context.Context, id int, status models.BidStatus) error {
	b, ok := m.bids[id]
	if !ok {
		return apperr.NotFound("bid %d not found", id)
	}
	b.Status = status
	return nil
}

func (m *mockStore) AwardBid(_ context.Context, leadID, bidID int) error {
	if m.failAwardBid != nil {
		return m.failAwardBid
	}
	b, ok := m.bids[bidID]
	if !ok {
		return apperr.NotFound("bid %d not found", bidID)
	}
	l, ok := m.leads[leadID]
	if !ok {
		return apperr.NotFound("lead %d not found", leadID)
	}
	b.Status = models.BidAccepted
	l.Status = models.LeadAwarded
	l.AcceptingBids = false
	return nil
}

func (m *mockStore) GetBidsForLead(_ context.Context, leadID int) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range m.bids {
		if b.LeadID == leadID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateArchitectureRequest(_ context.Context, r *models.ArchitectureRequest) error {
	r.ID = m.nextID
	m.nextID++
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockStore) GetArchitectureRequest(_ context.Context, id int) (*models.ArchitectureRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("architecture request %d not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) UpdateArchitectureRequest(_ context.Context, r *models.ArchitectureRequest) error {
	if _, ok := m.requests[r.ID]; !ok {
		return apperr.NotFound("architecture request %d not found", r.ID)
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockStore) GetArchitectureRequests(_ context.Context, limit, offset int) ([]models.ArchitectureRequest, error) {
	var out []models.ArchitectureRequest
	for _, r := range m.requests {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// recorder captures dispatched notifications.
type recorder struct {
	sent []notify.Request
	err  error
}

func (r *recorder) Dispatch(_ context.Context, req notify.Request) (*models.Notification, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.sent = append(r.sent, req)
	return &models.Notification{ID: len(r.sent)}, nil
}

func (r *recorder) byCategory(category string) []notify.Request {
	var out []notify.Request
	for _, req := range r.sent {
		if req.Category == category {
			out = append(out, req)
		}
	}
	return out
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func newTestService(store *mockStore, rec *recorder, clock *fixedClock) *Service {
	return NewService(store, rec, zap.NewNop(), WithClock(clock.now))
}

func days(base time.Time, n int) *time.Time {
	d := base.AddDate(0, 0, n)
	return &d
}

func TestSubmitLeadClassifiesUrgency(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName:         "Marie Tremblay",
		Email:              "marie@example.com",
		ProjectType:        "roofing",
		Description:        "Full roof replacement",
		SubmissionDeadline: days(clock.t, 2),
		DesiredStartDate:   days(clock.t, 30),
	})
	require.NoError(t, err)
	require.Equal(t, models.UrgencyCritical, lead.Urgency)
	require.Equal(t, models.LeadNew, lead.Status)
	require.True(t, lead.AcceptingBids)
	require.Contains(t, lead.Reference, "SEAOP-20250602-")
}

func TestSubmitLeadValidation(t *testing.T) {
	svc := newTestService(newMockStore(), &recorder{}, &fixedClock{t: time.Now()})

	_, err := svc.SubmitLead(context.Background(), LeadInput{ClientName: "X"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "X", Email: "x@example.com", ProjectType: "roofing",
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRefreshUrgencyIsIdempotent(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName:         "Marie Tremblay",
		Email:              "marie@example.com",
		ProjectType:        "roofing",
		Description:        "Full roof replacement",
		SubmissionDeadline: days(clock.t, 10),
	})
	require.NoError(t, err)
	require.Equal(t, models.UrgencyNormal, lead.Urgency)

	// Deadline slips inside the high window.
	clock.t = clock.t.AddDate(0, 0, 5)

	for i := 0; i < 3; i++ {
		refreshed, err := svc.GetLead(context.Background(), lead.ID)
		require.NoError(t, err)
		require.Equal(t, models.UrgencyHigh, refreshed.Urgency)
	}

	// Only the first refresh crossed the escalation boundary.
	require.Len(t, rec.byCategory(CategoryProjectUrgency), 1)
}

func TestEscalationNotifiesClientAndLiveBidders(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName:         "Marie Tremblay",
		Email:              "marie@example.com",
		ProjectType:        "roofing",
		Description:        "Full roof replacement",
		SubmissionDeadline: days(clock.t, 12),
	})
	require.NoError(t, err)
	require.Equal(t, models.UrgencyNormal, lead.Urgency)

	for _, contractorID := range []int{101, 102, 103} {
		_, err := svc.SubmitBid(context.Background(), BidInput{
			LeadID: lead.ID, ContractorID: contractorID, Amount: 12000, Scope: "Shingle tear-off",
		})
		require.NoError(t, err)
	}
	// Contractor 103 was turned down before the escalation.
	bids, err := svc.GetBidsForLead(context.Background(), lead.ID)
	require.NoError(t, err)
	_, err = svc.RejectBid(context.Background(), lead.ID, bids[2].ID, lead.ID)
	require.NoError(t, err)

	rec.sent = nil
	clock.t = clock.t.AddDate(0, 0, 6)

	refreshed, err := svc.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.UrgencyHigh, refreshed.Urgency)

	urgent := rec.byCategory(CategoryProjectUrgency)
	require.Len(t, urgent, 3)
	require.Equal(t, models.RecipientClient, urgent[0].RecipientKind)
	require.Equal(t, lead.ID, urgent[0].RecipientID)
	require.Equal(t, "marie@example.com", urgent[0].Email)
	require.Equal(t, models.RecipientContractor, urgent[1].RecipientKind)
	require.ElementsMatch(t, []int{101, 102}, []int{urgent[1].RecipientID, urgent[2].RecipientID})
}

func TestSubmitBidOnClosedLead(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	_, err = svc.CloseBidding(context.Background(), lead.ID, lead.ID)
	require.NoError(t, err)

	_, err = svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	require.Empty(t, store.bids)
}

func TestSubmitBidAfterDeadline(t *testing.T) {
	store := newMockStore()
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, &recorder{}, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
		SubmissionDeadline: days(clock.t, 3),
	})
	require.NoError(t, err)

	clock.t = clock.t.AddDate(0, 0, 4)
	_, err = svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestDuplicateBidConflicts(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)

	_, err = svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	_, err = svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9500, Scope: "Tear-off, revised",
	})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	require.Len(t, store.bids, 1)
}

func TestAcceptBidAwardsLead(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	accepted, err := svc.AcceptBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidAccepted, accepted.Status)

	updated, err := svc.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeadAwarded, updated.Status)
	require.False(t, updated.AcceptingBids)

	won := rec.byCategory(CategoryBidAccepted)
	require.Len(t, won, 1)
	require.Equal(t, models.RecipientContractor, won[0].RecipientKind)
	require.Equal(t, 101, won[0].RecipientID)

	// Re-accepting is a no-op: no second notification, status unchanged.
	again, err := svc.AcceptBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidAccepted, again.Status)
	require.Len(t, rec.byCategory(CategoryBidAccepted), 1)
}

func TestAcceptBidFailureLeavesNoPartialState(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	store.failAwardBid = apperr.Storage("award bid", context.DeadlineExceeded)
	_, err = svc.AcceptBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.True(t, apperr.Is(err, apperr.KindStorage))

	// Neither side of the award committed.
	storedBid, err := store.GetBid(context.Background(), bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidSubmitted, storedBid.Status)
	storedLead, err := store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeadNew, storedLead.Status)
	require.True(t, storedLead.AcceptingBids)
	require.Empty(t, rec.byCategory(CategoryBidAccepted))

	// A retry after the store recovers completes the whole award.
	store.failAwardBid = nil
	accepted, err := svc.AcceptBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidAccepted, accepted.Status)
	storedLead, err = store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeadAwarded, storedLead.Status)
	require.False(t, storedLead.AcceptingBids)
	require.Len(t, rec.byCategory(CategoryBidAccepted), 1)
}

func TestRejectBidLeadFetchFailureMutatesNothing(t *testing.T) {
	store := newMockStore()
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, &recorder{}, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	store.failGetLead = apperr.Storage("get lead", context.DeadlineExceeded)
	_, err = svc.RejectBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.True(t, apperr.Is(err, apperr.KindStorage))

	// The lead lookup happens before the status update, so an error here
	// means the bid was not touched.
	storedBid, err := store.GetBid(context.Background(), bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidSubmitted, storedBid.Status)
}

func TestRejectAcceptedBidFails(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)
	_, err = svc.AcceptBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)

	_, err = svc.RejectBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	stored, err := store.GetBid(context.Background(), bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidAccepted, stored.Status)
}

func TestRejectBidIsIdempotent(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	_, err = svc.RejectBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)
	_, err = svc.RejectBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)
	require.Len(t, rec.byCategory(CategoryBidRejected), 1)
}

func TestBidMustBelongToLead(t *testing.T) {
	store := newMockStore()
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, &recorder{}, clock)

	leadA, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	leadB, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Jean Roy", Email: "jean@example.com",
		ProjectType: "fencing", Description: "Backyard fence",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: leadA.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	_, err = svc.AcceptBid(context.Background(), leadB.ID, bid.ID, leadB.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMarkBidViewed(t *testing.T) {
	store := newMockStore()
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, &recorder{}, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)
	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)

	viewed, err := svc.MarkBidViewed(context.Background(), lead.ID, bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidViewed, viewed.Status)

	_, err = svc.RejectBid(context.Background(), lead.ID, bid.ID, lead.ID)
	require.NoError(t, err)

	// A rejected bid never drops back to viewed.
	after, err := svc.MarkBidViewed(context.Background(), lead.ID, bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidRejected, after.Status)
}

func TestListLeadsSortsBySeverity(t *testing.T) {
	store := newMockStore()
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, &recorder{}, clock)

	mk := func(name string, deadline *time.Time) *models.Lead {
		lead, err := svc.SubmitLead(context.Background(), LeadInput{
			ClientName: name, Email: name + "@example.com",
			ProjectType: "roofing", Description: "work",
			SubmissionDeadline: deadline,
		})
		require.NoError(t, err)
		return lead
	}
	low := mk("low", nil)
	critical := mk("critical", days(clock.t, 1))
	high := mk("high", days(clock.t, 6))

	leads, err := svc.ListLeads(context.Background(), db.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 3)
	require.Equal(t, critical.ID, leads[0].ID)
	require.Equal(t, high.ID, leads[1].ID)
	require.Equal(t, low.ID, leads[2].ID)
}

func TestDispatchFailureDoesNotBlockStateChange(t *testing.T) {
	store := newMockStore()
	rec := &recorder{err: apperr.Storage("insert notification", context.DeadlineExceeded)}
	clock := &fixedClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, rec, clock)

	lead, err := svc.SubmitLead(context.Background(), LeadInput{
		ClientName: "Marie Tremblay", Email: "marie@example.com",
		ProjectType: "roofing", Description: "Full roof replacement",
	})
	require.NoError(t, err)

	bid, err := svc.SubmitBid(context.Background(), BidInput{
		LeadID: lead.ID, ContractorID: 101, Amount: 9000, Scope: "Tear-off",
	})
	require.NoError(t, err)
	require.Equal(t, models.BidSubmitted, bid.Status)
}
