package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

func subscriptionUpdatedEvent(start, end int64) *gateway.Event {
	return &gateway.Event{
		ID:   "evt_sub_updated",
		Type: "customer.subscription.updated",
		Object: gateway.EventObject{
			ObjectID:           "sub_test",
			CustomerID:         "cus_test",
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
		},
	}
}

func invoiceEvent(id, eventType string) *gateway.Event {
	return &gateway.Event{
		ID:   id,
		Type: eventType,
		Object: gateway.EventObject{
			ObjectID:         "in_test",
			CustomerID:       "cus_test",
			SubscriptionID:   "sub_test",
			HostedInvoiceURL: "https://pay.example.com/in_test",
			Number:           "F9E6D8C-0001",
			ReceiptNumber:    "2354-6542",
			Currency:         "usd",
			Total:            245,
			Lines: []gateway.EventLine{
				{PlanID: testPlanMonthly, PeriodStart: 1702592000, PeriodEnd: 1705270400},
			},
		},
	}
}

func seedSubscription(repo *fakeRepo) (*models.User, *models.Subscription) {
	user := &models.User{ID: 1, Username: "dana", PaymentID: "cus_test"}
	sub := &models.Subscription{
		UserID:                 1,
		PlanID:                 testPlanMonthly,
		NewPlanID:              testPlanYearly,
		SubscriptionID:         "sub_test",
		SubscriptionScheduleID: "sched_test",
		CurrentPeriodStart:     time.Unix(1700000000, 0).UTC(),
		CurrentPeriodEnd:       time.Unix(1702592000, 0).UTC(),
	}
	repo.users[1] = user
	repo.subs[1] = sub
	repo.cards[1] = &models.Card{UserID: 1, Brand: "Visa", Last4: "4242", ExpDate: models.CardExpiryDate(2030, 6)}
	return user, sub
}

func TestSubscriptionUpdatedRenewal(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	seedSubscription(repo)

	// New period bounds mean the cycle rolled over.
	gw.events["evt_sub_updated"] = subscriptionUpdatedEvent(1702592000, 1705270400)

	err := rec.SubscriptionUpdated(context.Background(), "evt_sub_updated")
	require.NoError(t, err)

	sub := repo.subs[1]
	assert.Equal(t, testPlanYearly, sub.PlanID, "pending plan becomes active at rollover")
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1705270400, 0).UTC(), sub.CurrentPeriodEnd)
	assert.Empty(t, sub.SubscriptionScheduleID)
	assert.Equal(t, 1, gw.releaseCalls)
	assert.Equal(t, 1, repo.renewalsSaved)

	recorded := repo.events["evt_sub_updated"]
	require.NotNil(t, recorded)
	assert.NotNil(t, recorded.ProcessedAt)
	assert.Empty(t, recorded.ProcessingError)
}

func TestSubscriptionUpdatedSameCycleIsNoop(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	_, sub := seedSubscription(repo)

	// Bounds match the stored ones, e.g. a card swap on the subscription.
	gw.events["evt_sub_updated"] = subscriptionUpdatedEvent(1700000000, 1702592000)

	err := rec.SubscriptionUpdated(context.Background(), "evt_sub_updated")
	require.NoError(t, err)

	assert.Equal(t, testPlanMonthly, sub.PlanID)
	assert.Equal(t, "sched_test", sub.SubscriptionScheduleID)
	assert.Zero(t, gw.releaseCalls)
	assert.Zero(t, repo.renewalsSaved)
}

func TestSubscriptionUpdatedReplayIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	seedSubscription(repo)

	gw.events["evt_sub_updated"] = subscriptionUpdatedEvent(1702592000, 1705270400)

	require.NoError(t, rec.SubscriptionUpdated(context.Background(), "evt_sub_updated"))
	require.NoError(t, rec.SubscriptionUpdated(context.Background(), "evt_sub_updated"))

	// The second delivery sees matching bounds and does nothing.
	assert.Equal(t, 1, repo.renewalsSaved)
	assert.Equal(t, 1, gw.releaseCalls)
}

func TestSubscriptionUpdatedWithoutSchedule(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	_, sub := seedSubscription(repo)
	sub.SubscriptionScheduleID = ""

	gw.events["evt_sub_updated"] = subscriptionUpdatedEvent(1702592000, 1705270400)

	require.NoError(t, rec.SubscriptionUpdated(context.Background(), "evt_sub_updated"))
	assert.Zero(t, gw.releaseCalls)
	assert.Equal(t, 1, repo.renewalsSaved)
}

func TestSubscriptionUpdatedDebugRetriesRelease(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	gw.releaseFailuresLeft = 1
	rec := NewReconciler(NewService(repo, gw, testCatalog(), true, ""))
	seedSubscription(repo)

	gw.events["evt_sub_updated"] = subscriptionUpdatedEvent(1702592000, 1705270400)

	require.NoError(t, rec.SubscriptionUpdated(context.Background(), "evt_sub_updated"))
	assert.Equal(t, 2, gw.releaseCalls)
	assert.Empty(t, repo.subs[1].SubscriptionScheduleID)
}

func TestSubscriptionUpdatedUnverifiableEvent(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	seedSubscription(repo)

	err := rec.SubscriptionUpdated(context.Background(), "evt_unknown")
	assert.True(t, gateway.IsInvalidRequest(err))
	assert.Empty(t, repo.events)
}

func TestInvoicePaymentSucceeded(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	seedSubscription(repo)

	gw.events["evt_invoice"] = invoiceEvent("evt_invoice", "invoice.payment_succeeded")

	err := rec.InvoicePaymentSucceeded(context.Background(), "evt_invoice")
	require.NoError(t, err)

	require.Len(t, repo.invoices, 1)
	inv := repo.invoices[0]
	assert.Equal(t, uint(1), inv.UserID)
	assert.Equal(t, "https://pay.example.com/in_test", inv.DownloadURL)
	assert.Equal(t, "F9E6D8C-0001", inv.InvoiceNumber)
	assert.Equal(t, "2354-6542", inv.ReceiptNumber)
	assert.Equal(t, testPlanMonthly, inv.PlanID)
	assert.Equal(t, "Monthly", inv.PlanName)
	assert.Equal(t, "badmintontv plan", inv.Description)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), inv.PeriodStartOn)
	assert.Equal(t, time.Unix(1705270400, 0).UTC(), inv.PeriodEndOn)
	assert.Equal(t, "usd", inv.Currency)
	assert.Equal(t, int64(245), inv.Total)
	assert.Equal(t, "Visa", inv.Brand)
	assert.Equal(t, "4242", inv.Last4)
	assert.Equal(t, models.CardExpiryDate(2030, 6), inv.ExpDate)
}

func TestInvoicePaymentSucceededUnknownCustomer(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))

	gw.events["evt_invoice"] = invoiceEvent("evt_invoice", "invoice.payment_succeeded")

	err := rec.InvoicePaymentSucceeded(context.Background(), "evt_invoice")
	require.NoError(t, err)
	assert.Empty(t, repo.invoices)
}

func TestInvoicePaymentSucceededUserWithoutCard(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	seedSubscription(repo)
	delete(repo.cards, 1)

	gw.events["evt_invoice"] = invoiceEvent("evt_invoice", "invoice.payment_succeeded")

	err := rec.InvoicePaymentSucceeded(context.Background(), "evt_invoice")
	require.NoError(t, err)
	assert.Empty(t, repo.invoices)
}

func TestInvoicePaymentFailedCancelsSubscription(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))
	user, _ := seedSubscription(repo)

	gw.events["evt_failed"] = invoiceEvent("evt_failed", "invoice.payment_failed")

	err := rec.InvoicePaymentFailed(context.Background(), "evt_failed")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.cancelCalls)
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.cards)
	assert.NotNil(t, user.CancelledSubscriptionOn)
}

func TestInvoicePaymentFailedUnknownSubscription(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	rec := NewReconciler(newTestService(repo, gw))

	gw.events["evt_failed"] = invoiceEvent("evt_failed", "invoice.payment_failed")

	err := rec.InvoicePaymentFailed(context.Background(), "evt_failed")
	assert.Error(t, err)
	assert.False(t, gateway.IsInvalidRequest(err))
	assert.Zero(t, gw.cancelCalls)

	recorded := repo.events["evt_failed"]
	require.NotNil(t, recorded)
	assert.NotEmpty(t, recorded.ProcessingError)
}
