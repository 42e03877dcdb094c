package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

const (
	testPlanMonthly = "price_monthly_v1"
	testPlanYearly  = "price_yearly_v1"
)

func testCatalog() *Catalog {
	product := Product{
		ID:                  "premium_subscription_v1",
		Name:                "Premium Subscription v1",
		StatementDescriptor: "badmintontv plan",
	}
	return &Catalog{
		Product: product,
		Plans: []Plan{
			{ID: testPlanMonthly, ProductID: product.ID, Name: "Monthly", Amount: 245, Currency: "usd", Interval: "month", IntervalCount: 1},
			{ID: testPlanYearly, ProductID: product.ID, Name: "Yearly", Amount: 2495, Currency: "usd", Interval: "year", IntervalCount: 1, Recommended: true},
		},
	}
}

// fakeGateway records calls and serves canned responses so the lifecycle
// logic can be exercised without a provider.
type fakeGateway struct {
	createCustomerCalls     int
	retrieveCustomerCalls   int
	updateCardCalls         int
	createSubscriptionCalls int
	cancelCalls             int
	scheduleCalls           int
	releaseCalls            int

	lastScheduleID string
	lastNewPlanID  string
	lastOldPlanID  string
	lastStart      int64
	lastEnd        int64
	lastTestClock  string

	customer *gateway.Customer
	sub      *gateway.Subscription
	schedule *gateway.Schedule
	upcoming *gateway.UpcomingInvoice
	events   map[string]*gateway.Event

	createCustomerErr     error
	createSubscriptionErr error
	cancelErr             error
	retrieveEventErr      error
	releaseErr            error
	releaseFailuresLeft   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customer: &gateway.Customer{
			ID: "cus_test",
			DefaultCard: &gateway.Card{
				ID:       "card_test",
				Brand:    "Visa",
				Last4:    "4242",
				ExpMonth: 6,
				ExpYear:  2030,
			},
		},
		sub: &gateway.Subscription{
			ID:                 "sub_test",
			CustomerID:         "cus_test",
			PlanID:             testPlanMonthly,
			CurrentPeriodStart: 1700000000,
			CurrentPeriodEnd:   1702592000,
		},
		schedule: &gateway.Schedule{ID: "sched_test", SubscriptionID: "sub_test"},
		events:   map[string]*gateway.Event{},
	}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, name, email, _, testClockID string) (*gateway.Customer, error) {
	g.createCustomerCalls++
	g.lastTestClock = testClockID
	if g.createCustomerErr != nil {
		return nil, g.createCustomerErr
	}
	out := *g.customer
	out.Name = name
	out.Email = email
	return &out, nil
}

func (g *fakeGateway) RetrieveCustomer(_ context.Context, _ string) (*gateway.Customer, error) {
	g.retrieveCustomerCalls++
	return g.customer, nil
}

func (g *fakeGateway) UpdateCard(_ context.Context, _, _, _ string) (*gateway.Card, error) {
	g.updateCardCalls++
	return g.customer.DefaultCard, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, _, planID string) (*gateway.Subscription, error) {
	g.createSubscriptionCalls++
	if g.createSubscriptionErr != nil {
		return nil, g.createSubscriptionErr
	}
	out := *g.sub
	out.PlanID = planID
	return &out, nil
}

func (g *fakeGateway) RetrieveSubscription(_ context.Context, _ string) (*gateway.Subscription, error) {
	return g.sub, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, _ string) (*gateway.Subscription, error) {
	g.cancelCalls++
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return g.sub, nil
}

func (g *fakeGateway) CreateOrUpdateSchedule(_ context.Context, _, scheduleID, newPlanID, oldPlanID string, start, end int64) (*gateway.Schedule, error) {
	g.scheduleCalls++
	g.lastScheduleID = scheduleID
	g.lastNewPlanID = newPlanID
	g.lastOldPlanID = oldPlanID
	g.lastStart = start
	g.lastEnd = end
	return g.schedule, nil
}

func (g *fakeGateway) ReleaseSchedule(_ context.Context, _ string) (*gateway.Schedule, error) {
	g.releaseCalls++
	if g.releaseFailuresLeft > 0 {
		g.releaseFailuresLeft--
		return nil, &gateway.Error{Code: gateway.CodeGateway, Message: "clock advancing"}
	}
	if g.releaseErr != nil {
		return nil, g.releaseErr
	}
	return g.schedule, nil
}

func (g *fakeGateway) UpcomingInvoice(_ context.Context, _ string) (*gateway.UpcomingInvoice, error) {
	return g.upcoming, nil
}

func (g *fakeGateway) RetrieveEvent(_ context.Context, eventID string) (*gateway.Event, error) {
	if g.retrieveEventErr != nil {
		return nil, g.retrieveEventErr
	}
	ev, ok := g.events[eventID]
	if !ok {
		return nil, &gateway.Error{Code: gateway.CodeInvalidRequest, Message: "no such event: " + eventID}
	}
	return ev, nil
}

func (g *fakeGateway) SyncProduct(_ context.Context, _ gateway.Product) error { return nil }
func (g *fakeGateway) SyncPrice(_ context.Context, _ gateway.Price) error     { return nil }

func (g *fakeGateway) CreateTestClock(_ context.Context, _ string, _ int64) (string, error) {
	return "clock_test", nil
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	users    map[uint]*models.User
	subs     map[uint]*models.Subscription
	cards    map[uint]*models.Card
	invoices []models.Invoice
	events   map[string]*models.WebhookEvent

	createSubscriptionErr error
	renewalsSaved         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  map[uint]*models.User{},
		subs:   map[uint]*models.Subscription{},
		cards:  map[uint]*models.Card{},
		events: map[string]*models.WebhookEvent{},
	}
}

func (r *fakeRepo) UserByID(id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UserByPaymentID(paymentID string) (*models.User, error) {
	for _, u := range r.users {
		if u.PaymentID == paymentID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SubscriptionByUserID(userID uint) (*models.Subscription, error) {
	if s, ok := r.subs[userID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SubscriptionBySubscriptionID(subscriptionID string) (*models.Subscription, error) {
	for _, s := range r.subs {
		if s.SubscriptionID == subscriptionID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CardByUserID(userID uint) (*models.Card, error) {
	if c, ok := r.cards[userID]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateSubscription(user *models.User, sub *models.Subscription, card *models.Card) error {
	if r.createSubscriptionErr != nil {
		return r.createSubscriptionErr
	}
	r.users[user.ID] = user
	r.subs[user.ID] = sub
	r.cards[user.ID] = card
	return nil
}

func (r *fakeRepo) SavePlanChange(sub *models.Subscription) error {
	r.subs[sub.UserID] = sub
	return nil
}

func (r *fakeRepo) SaveRenewal(sub *models.Subscription) error {
	r.renewalsSaved++
	r.subs[sub.UserID] = sub
	return nil
}

func (r *fakeRepo) DeleteSubscription(user *models.User, sub *models.Subscription, card *models.Card) error {
	r.users[user.ID] = user
	delete(r.subs, sub.UserID)
	if card != nil {
		delete(r.cards, card.UserID)
	}
	return nil
}

func (r *fakeRepo) UpdatePaymentMethod(user *models.User, card *models.Card) error {
	r.users[user.ID] = user
	r.cards[card.UserID] = card
	return nil
}

func (r *fakeRepo) CreateInvoice(invoice *models.Invoice) error {
	r.invoices = append(r.invoices, *invoice)
	return nil
}

func (r *fakeRepo) InvoicesByUser(userID uint, offset, limit int) ([]models.Invoice, int64, error) {
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeRepo) MarkExpiringCards(threshold time.Time) (int64, error) {
	var flagged int64
	for _, c := range r.cards {
		if !c.IsExpiring && !c.ExpDate.After(threshold) {
			c.IsExpiring = true
			flagged++
		}
	}
	return flagged, nil
}

func (r *fakeRepo) RecordWebhookEvent(event *models.WebhookEvent) error {
	if _, ok := r.events[event.EventID]; ok {
		return nil
	}
	r.events[event.EventID] = event
	return nil
}

func (r *fakeRepo) MarkWebhookProcessed(eventID, processingError string) error {
	if ev, ok := r.events[eventID]; ok {
		now := time.Now()
		ev.ProcessedAt = &now
		ev.ProcessingError = processingError
	}
	return nil
}

func newTestService(repo *fakeRepo, gw *fakeGateway) *Service {
	return NewService(repo, gw, testCatalog(), false, "")
}

func TestSubscribeEmptyToken(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", Email: "dana@example.com"}
	err := svc.Subscribe(context.Background(), user, "Dana Kim", testPlanMonthly, "")

	assert.ErrorIs(t, err, ErrEmptyPaymentToken)
	assert.Zero(t, gw.createCustomerCalls)
	assert.Zero(t, gw.createSubscriptionCalls)
	assert.Empty(t, repo.subs)
}

func TestSubscribeNewCustomer(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	cancelled := time.Now()
	user := &models.User{ID: 1, Username: "dana", Email: "dana@example.com", CancelledSubscriptionOn: &cancelled}
	err := svc.Subscribe(context.Background(), user, "Dana Kim", testPlanMonthly, "tok_visa")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.createCustomerCalls)
	assert.Zero(t, gw.updateCardCalls)
	assert.Equal(t, "cus_test", user.PaymentID)
	assert.Equal(t, "Dana Kim", user.Name)
	assert.Nil(t, user.CancelledSubscriptionOn)

	sub := repo.subs[1]
	require.NotNil(t, sub)
	assert.Equal(t, testPlanMonthly, sub.PlanID)
	assert.Equal(t, testPlanMonthly, sub.NewPlanID)
	assert.Equal(t, "sub_test", sub.SubscriptionID)
	assert.Empty(t, sub.SubscriptionScheduleID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), sub.CurrentPeriodEnd)

	card := repo.cards[1]
	require.NotNil(t, card)
	assert.Equal(t, "Visa", card.Brand)
	assert.Equal(t, "4242", card.Last4)
	assert.Equal(t, models.CardExpiryDate(2030, 6), card.ExpDate)
	assert.False(t, card.IsExpiring)
}

func TestSubscribeExistingCustomer(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", Email: "dana@example.com", PaymentID: "cus_test"}
	err := svc.Subscribe(context.Background(), user, "Dana Kim", testPlanYearly, "tok_visa")
	require.NoError(t, err)

	assert.Zero(t, gw.createCustomerCalls)
	assert.Equal(t, 1, gw.updateCardCalls)
	assert.Equal(t, 1, gw.retrieveCustomerCalls)
	assert.Equal(t, testPlanYearly, repo.subs[1].PlanID)
}

func TestSubscribeProviderFailureLeavesNoLocalState(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	gw.createSubscriptionErr = &gateway.Error{Code: gateway.CodeCardDeclined, Message: "declined"}
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", Email: "dana@example.com"}
	err := svc.Subscribe(context.Background(), user, "Dana Kim", testPlanMonthly, "tok_visa")

	assert.True(t, gateway.IsCardDeclined(err))
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.cards)
}

func TestSubscribeUsesTestClockOnlyInDebug(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := NewService(repo, gw, testCatalog(), false, "clock_1")

	user := &models.User{ID: 1, Username: "dana", Email: "dana@example.com"}
	require.NoError(t, svc.Subscribe(context.Background(), user, "Dana Kim", testPlanMonthly, "tok_visa"))
	assert.Empty(t, gw.lastTestClock)

	debugSvc := NewService(newFakeRepo(), gw, testCatalog(), true, "clock_1")
	user2 := &models.User{ID: 2, Username: "kim", Email: "kim@example.com"}
	require.NoError(t, debugSvc.Subscribe(context.Background(), user2, "Kim Lee", testPlanMonthly, "tok_visa"))
	assert.Equal(t, "clock_1", gw.lastTestClock)
}

func TestChangePlanStagesScheduleOnly(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	start := time.Unix(1700000000, 0).UTC()
	end := time.Unix(1702592000, 0).UTC()
	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	repo.users[1] = user
	repo.subs[1] = &models.Subscription{
		UserID:             1,
		PlanID:             testPlanMonthly,
		NewPlanID:          testPlanMonthly,
		SubscriptionID:     "sub_test",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}

	err := svc.ChangePlan(context.Background(), user, testPlanYearly)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.scheduleCalls)
	assert.Equal(t, testPlanYearly, gw.lastNewPlanID)
	assert.Equal(t, testPlanMonthly, gw.lastOldPlanID)
	assert.Equal(t, start.Unix(), gw.lastStart)
	assert.Equal(t, end.Unix(), gw.lastEnd)

	sub := repo.subs[1]
	assert.Equal(t, testPlanMonthly, sub.PlanID, "active plan must not flip before renewal")
	assert.Equal(t, testPlanYearly, sub.NewPlanID)
	assert.Equal(t, "sched_test", sub.SubscriptionScheduleID)
}

func TestChangePlanReusesExistingSchedule(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	repo.subs[1] = &models.Subscription{
		UserID:                 1,
		PlanID:                 testPlanMonthly,
		NewPlanID:              testPlanYearly,
		SubscriptionID:         "sub_test",
		SubscriptionScheduleID: "sched_existing",
	}

	require.NoError(t, svc.ChangePlan(context.Background(), user, testPlanMonthly))
	assert.Equal(t, "sched_existing", gw.lastScheduleID)
}

func TestChangePlanWithoutSubscription(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeGateway())
	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}

	err := svc.ChangePlan(context.Background(), user, testPlanYearly)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestCancelDeletesSubscriptionAndCard(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	repo.users[1] = user
	repo.subs[1] = &models.Subscription{UserID: 1, SubscriptionID: "sub_test"}
	repo.cards[1] = &models.Card{UserID: 1, Brand: "Visa", Last4: "4242"}

	err := svc.Cancel(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.cancelCalls)
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.cards)
	require.NotNil(t, user.CancelledSubscriptionOn)
	assert.WithinDuration(t, time.Now(), *user.CancelledSubscriptionOn, 5*time.Second)
}

func TestCancelWithoutCardRow(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	repo.users[1] = user
	repo.subs[1] = &models.Subscription{UserID: 1, SubscriptionID: "sub_test"}

	require.NoError(t, svc.Cancel(context.Background(), user))
	assert.Empty(t, repo.subs)
}

func TestCancelProviderFailureLeavesLocalState(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	gw.cancelErr = &gateway.Error{Code: gateway.CodeConnection, Message: "timeout"}
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	repo.subs[1] = &models.Subscription{UserID: 1, SubscriptionID: "sub_test"}

	err := svc.Cancel(context.Background(), user)
	assert.True(t, gateway.IsConnection(err))
	assert.NotEmpty(t, repo.subs)
	assert.Nil(t, user.CancelledSubscriptionOn)
}

func TestUpdatePaymentMethod(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test", Name: "Old Name"}
	card := &models.Card{UserID: 1, Brand: "Mastercard", Last4: "1111"}

	err := svc.UpdatePaymentMethod(context.Background(), user, card, "Dana Kim", "tok_new")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.updateCardCalls)
	assert.Equal(t, "Dana Kim", user.Name)
	assert.Equal(t, "Visa", card.Brand)
	assert.Equal(t, "4242", card.Last4)
	assert.Equal(t, models.CardExpiryDate(2030, 6), card.ExpDate)
}

func TestUpdatePaymentMethodEmptyToken(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(newFakeRepo(), gw)

	err := svc.UpdatePaymentMethod(context.Background(), &models.User{ID: 1}, &models.Card{UserID: 1}, "Dana", "")
	assert.ErrorIs(t, err, ErrEmptyPaymentToken)
	assert.Zero(t, gw.updateCardCalls)
}

func TestMarkExpiringCards(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeGateway())

	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	repo.cards[1] = &models.Card{UserID: 1, ExpDate: models.CardExpiryDate(2026, 7)}
	repo.cards[2] = &models.Card{UserID: 2, ExpDate: models.CardExpiryDate(2027, 1)}
	repo.cards[3] = &models.Card{UserID: 3, ExpDate: models.CardExpiryDate(2026, 8), IsExpiring: true}

	flagged, err := svc.MarkExpiringCards(now)
	require.NoError(t, err)

	assert.Equal(t, int64(1), flagged)
	assert.True(t, repo.cards[1].IsExpiring)
	assert.False(t, repo.cards[2].IsExpiring)
}

func TestUpcomingInvoice(t *testing.T) {
	gw := newFakeGateway()
	gw.upcoming = &gateway.UpcomingInvoice{
		PlanID:             testPlanYearly,
		AmountDue:          2495,
		Currency:           "usd",
		NextPaymentAttempt: 1702592000,
	}
	svc := newTestService(newFakeRepo(), gw)

	next, err := svc.UpcomingInvoice(context.Background(), "cus_test")
	require.NoError(t, err)

	assert.Equal(t, "Yearly", next.PlanName)
	assert.Equal(t, int64(2495), next.AmountDue)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), next.NextBillOn)
}
