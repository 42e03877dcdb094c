package gateway

import "context"

// Gateway is the payment provider surface the billing core depends on. Every
// operation is a remote call and may return a *Error describing how it failed.
type Gateway interface {
	// CreateCustomer creates a customer with token as its default card.
	// testClockID optionally attaches a simulated billing clock (debug only).
	CreateCustomer(ctx context.Context, name, email, token, testClockID string) (*Customer, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)

	// UpdateCard attaches a new card from token and makes it the customer's
	// default, updating the billing name at the same time.
	UpdateCard(ctx context.Context, customerID, name, token string) (*Card, error)

	CreateSubscription(ctx context.Context, customerID, planID string) (*Subscription, error)
	// RetrieveSubscription returns the customer's subscription. A customer is
	// expected to hold at most one; if the provider ever reports several, the
	// first in list order is returned.
	RetrieveSubscription(ctx context.Context, customerID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, customerID string) (*Subscription, error)

	// CreateOrUpdateSchedule stages a plan change: phase 1 keeps oldPlanID for
	// [periodStart, periodEnd), phase 2 starts newPlanID at periodEnd with an
	// open end. No proration; the schedule releases itself after phase 2
	// starts. When scheduleID is empty a schedule is first created from the
	// customer's subscription.
	CreateOrUpdateSchedule(ctx context.Context, customerID, scheduleID, newPlanID, oldPlanID string, periodStart, periodEnd int64) (*Schedule, error)
	// ReleaseSchedule detaches a schedule, leaving the subscription running on
	// whatever plan is active.
	ReleaseSchedule(ctx context.Context, scheduleID string) (*Schedule, error)

	UpcomingInvoice(ctx context.Context, customerID string) (*UpcomingInvoice, error)

	// RetrieveEvent looks an event up by ID directly with the provider. This
	// is the trust anchor for webhook handling: only the looked-up event, not
	// the delivered body, is acted on.
	RetrieveEvent(ctx context.Context, eventID string) (*Event, error)

	// SyncProduct and SyncPrice create the catalog objects on the provider if
	// they do not exist yet (products are updated in place, prices are
	// immutable once created).
	SyncProduct(ctx context.Context, p Product) error
	SyncPrice(ctx context.Context, p Price) error

	// CreateTestClock creates a simulated billing clock and returns its ID.
	CreateTestClock(ctx context.Context, name string, frozenTime int64) (string, error)
}

// Customer is a provider customer snapshot.
type Customer struct {
	ID          string
	Name        string
	Email       string
	DefaultCard *Card
}

// Card is a provider payment-method snapshot.
type Card struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// Subscription is a provider subscription snapshot. Period bounds are epoch
// seconds as reported by the provider.
type Subscription struct {
	ID                 string
	CustomerID         string
	PlanID             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
}

// Schedule is a provider subscription-schedule snapshot.
type Schedule struct {
	ID             string
	SubscriptionID string
}

// UpcomingInvoice previews the next bill for a customer.
type UpcomingInvoice struct {
	PlanID             string
	AmountDue          int64
	Currency           string
	NextPaymentAttempt int64
}

// Event is a verified provider event. Object carries the fields of the
// event's data.object that the reconciler consumes.
type Event struct {
	ID     string
	Type   string
	Object EventObject
}

// EventObject flattens the provider event payload. ObjectID is the id of
// data.object itself (the subscription id for subscription events, the
// invoice id for invoice events); SubscriptionID is the subscription the
// object references, where applicable.
type EventObject struct {
	ObjectID       string
	CustomerID     string
	SubscriptionID string

	CurrentPeriodStart int64
	CurrentPeriodEnd   int64

	// Invoice fields
	HostedInvoiceURL string
	Number           string
	ReceiptNumber    string
	Currency         string
	Total            int64
	Lines            []EventLine
}

// EventLine is one invoice line item.
type EventLine struct {
	PlanID      string
	PeriodStart int64
	PeriodEnd   int64
}

// Product mirrors the provider product object used for plan sync.
type Product struct {
	ID                  string
	Name                string
	StatementDescriptor string
}

// Price mirrors the provider price object used for plan sync.
type Price struct {
	ID            string
	ProductID     string
	Nickname      string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int64
}
