package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/event"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/paymentsource"
	"github.com/stripe/stripe-go/v76/plan"
	"github.com/stripe/stripe-go/v76/product"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/subscriptionschedule"
	"github.com/stripe/stripe-go/v76/testhelpers/testclock"

	"github.com/badmintontv/badmintontv/internal/pkg/env"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct{}

// NewStripeGateway creates a Stripe-backed gateway with the given secret key.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// NewStripeGatewayFromEnv creates a Stripe-backed gateway configured from
// STRIPE_SECRET_KEY.
func NewStripeGatewayFromEnv() *StripeGateway {
	return NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", ""))
}

var _ Gateway = (*StripeGateway)(nil)

func (g *StripeGateway) CreateCustomer(ctx context.Context, name, email, token, testClockID string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(name),
		Email:  stripe.String(email),
		Source: stripe.String(token),
	}
	if testClockID != "" {
		params.TestClock = stripe.String(testClockID)
	}
	params.AddExpand("default_source")

	cus, err := customer.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return customerFromStripe(cus), nil
}

func (g *StripeGateway) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	params := &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("default_source")

	cus, err := customer.Get(customerID, params)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return customerFromStripe(cus), nil
}

// UpdateCard attaches the tokenized card as a new source and promotes it to
// the customer's default, updating the billing name in the same call.
func (g *StripeGateway) UpdateCard(ctx context.Context, customerID, name, token string) (*Card, error) {
	src, err := paymentsource.New(&stripe.PaymentSourceParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Source:   &stripe.PaymentSourceSourceParams{Token: stripe.String(token)},
	})
	if err != nil {
		return nil, translateStripeError(err)
	}

	_, err = customer.Update(customerID, &stripe.CustomerParams{
		Params:        stripe.Params{Context: ctx},
		Name:          stripe.String(name),
		DefaultSource: stripe.String(src.ID),
	})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return cardFromSource(src), nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, planID string) (*Subscription, error) {
	sub, err := subscription.New(&stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(planID)},
		},
	})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) RetrieveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	iter := subscription.List(&stripe.SubscriptionListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Customer:   stripe.String(customerID),
	})
	// A customer holds at most one subscription; if the gateway ever reports
	// several, the first in list order wins.
	if iter.Next() {
		return subscriptionFromStripe(iter.Subscription()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, translateStripeError(err)
	}
	return nil, &Error{Code: CodeInvalidRequest, Message: "customer " + customerID + " has no subscription"}
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	current, err := g.RetrieveSubscription(ctx, customerID)
	if err != nil {
		return nil, err
	}

	sub, err := subscription.Cancel(current.ID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) CreateOrUpdateSchedule(ctx context.Context, customerID, scheduleID, newPlanID, oldPlanID string, periodStart, periodEnd int64) (*Schedule, error) {
	if scheduleID == "" {
		current, err := g.RetrieveSubscription(ctx, customerID)
		if err != nil {
			return nil, err
		}
		created, err := subscriptionschedule.New(&stripe.SubscriptionScheduleParams{
			Params:           stripe.Params{Context: ctx},
			FromSubscription: stripe.String(current.ID),
		})
		if err != nil {
			return nil, translateStripeError(err)
		}
		scheduleID = created.ID
	}

	sched, err := subscriptionschedule.Update(scheduleID, &stripe.SubscriptionScheduleParams{
		Params:            stripe.Params{Context: ctx},
		ProrationBehavior: stripe.String("none"),    // bill the full price of the new plan
		EndBehavior:       stripe.String("release"), // let the subscription keep running afterwards
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			// Keep the current plan until the end of this billing cycle.
			{
				Items:     []*stripe.SubscriptionSchedulePhaseItemParams{{Price: stripe.String(oldPlanID)}},
				StartDate: stripe.Int64(periodStart),
				EndDate:   stripe.Int64(periodEnd),
			},
			// Start the new plan when the cycle rolls over.
			{
				Items:     []*stripe.SubscriptionSchedulePhaseItemParams{{Price: stripe.String(newPlanID)}},
				StartDate: stripe.Int64(periodEnd),
			},
		},
	})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return scheduleFromStripe(sched), nil
}

func (g *StripeGateway) ReleaseSchedule(ctx context.Context, scheduleID string) (*Schedule, error) {
	sched, err := subscriptionschedule.Release(scheduleID, &stripe.SubscriptionScheduleReleaseParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return scheduleFromStripe(sched), nil
}

func (g *StripeGateway) UpcomingInvoice(ctx context.Context, customerID string) (*UpcomingInvoice, error) {
	inv, err := invoice.Upcoming(&stripe.InvoiceUpcomingParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return nil, translateStripeError(err)
	}

	upcoming := &UpcomingInvoice{
		AmountDue:          inv.AmountDue,
		Currency:           string(inv.Currency),
		NextPaymentAttempt: inv.NextPaymentAttempt,
	}
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		upcoming.PlanID = linePlanID(inv.Lines.Data[0])
	}
	return upcoming, nil
}

// linePlanID resolves the plan identifier for an invoice line, preferring the
// price ID and falling back to the legacy plan ID.
func linePlanID(line *stripe.InvoiceLineItem) string {
	if line.Price != nil {
		return line.Price.ID
	}
	if line.Plan != nil {
		return line.Plan.ID
	}
	return ""
}

func (g *StripeGateway) RetrieveEvent(ctx context.Context, eventID string) (*Event, error) {
	ev, err := event.Get(eventID, &stripe.EventParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, translateStripeError(err)
	}
	return eventFromStripe(ev)
}

func (g *StripeGateway) SyncProduct(ctx context.Context, p Product) error {
	getParams := &stripe.ProductParams{Params: stripe.Params{Context: ctx}}
	if _, err := product.Get(p.ID, getParams); err == nil {
		_, err = product.Update(p.ID, &stripe.ProductParams{
			Params:              stripe.Params{Context: ctx},
			Name:                stripe.String(p.Name),
			StatementDescriptor: stripe.String(p.StatementDescriptor),
		})
		return translateStripeError(err)
	}

	_, err := product.New(&stripe.ProductParams{
		Params:              stripe.Params{Context: ctx},
		ID:                  stripe.String(p.ID),
		Name:                stripe.String(p.Name),
		StatementDescriptor: stripe.String(p.StatementDescriptor),
	})
	return translateStripeError(err)
}

func (g *StripeGateway) SyncPrice(ctx context.Context, p Price) error {
	// Recurring prices are created through the legacy plan surface so they
	// carry our own deterministic IDs; they are immutable once created.
	if _, err := plan.Get(p.ID, &stripe.PlanParams{Params: stripe.Params{Context: ctx}}); err == nil {
		return nil
	}

	_, err := plan.New(&stripe.PlanParams{
		Params:        stripe.Params{Context: ctx},
		ID:            stripe.String(p.ID),
		ProductID:     stripe.String(p.ProductID),
		Nickname:      stripe.String(p.Nickname),
		Amount:        stripe.Int64(p.UnitAmount),
		Currency:      stripe.String(p.Currency),
		Interval:      stripe.String(p.Interval),
		IntervalCount: stripe.Int64(p.IntervalCount),
	})
	return translateStripeError(err)
}

func (g *StripeGateway) CreateTestClock(ctx context.Context, name string, frozenTime int64) (string, error) {
	clock, err := testclock.New(&stripe.TestHelpersTestClockParams{
		Params:     stripe.Params{Context: ctx},
		Name:       stripe.String(name),
		FrozenTime: stripe.Int64(frozenTime),
	})
	if err != nil {
		return "", translateStripeError(err)
	}
	return clock.ID, nil
}

func customerFromStripe(cus *stripe.Customer) *Customer {
	out := &Customer{
		ID:    cus.ID,
		Name:  cus.Name,
		Email: cus.Email,
	}
	if cus.DefaultSource != nil {
		out.DefaultCard = cardFromSource(cus.DefaultSource)
	}
	return out
}

func cardFromSource(src *stripe.PaymentSource) *Card {
	if src == nil || src.Card == nil {
		return nil
	}
	return &Card{
		ID:       src.ID,
		Brand:    string(src.Card.Brand),
		Last4:    src.Card.Last4,
		ExpMonth: int(src.Card.ExpMonth),
		ExpYear:  int(src.Card.ExpYear),
	}
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                 sub.ID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PlanID = sub.Items.Data[0].Price.ID
	}
	return out
}

func scheduleFromStripe(sched *stripe.SubscriptionSchedule) *Schedule {
	out := &Schedule{ID: sched.ID}
	if sched.Subscription != nil {
		out.SubscriptionID = sched.Subscription.ID
	}
	return out
}

// stripeEventObject is the subset of a Stripe event's data.object the
// reconciler consumes. Invoice and subscription objects both unmarshal into
// it; fields the object does not carry stay zero.
type stripeEventObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	HostedInvoiceURL   string `json:"hosted_invoice_url"`
	Number             string `json:"number"`
	ReceiptNumber      string `json:"receipt_number"`
	Currency           string `json:"currency"`
	Total              int64  `json:"total"`
	Lines              struct {
		Data []struct {
			Plan struct {
				ID string `json:"id"`
			} `json:"plan"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

func eventFromStripe(ev *stripe.Event) (*Event, error) {
	var obj stripeEventObject
	if ev.Data != nil {
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return nil, &Error{Code: CodeInvalidRequest, Message: "malformed event payload: " + err.Error(), cause: err}
		}
	}

	out := &Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Object: EventObject{
			ObjectID:           obj.ID,
			CustomerID:         obj.Customer,
			SubscriptionID:     obj.Subscription,
			CurrentPeriodStart: obj.CurrentPeriodStart,
			CurrentPeriodEnd:   obj.CurrentPeriodEnd,
			HostedInvoiceURL:   obj.HostedInvoiceURL,
			Number:             obj.Number,
			ReceiptNumber:      obj.ReceiptNumber,
			Currency:           obj.Currency,
			Total:              obj.Total,
		},
	}
	for _, line := range obj.Lines.Data {
		planID := line.Price.ID
		if planID == "" {
			planID = line.Plan.ID
		}
		out.Object.Lines = append(out.Object.Lines, EventLine{
			PlanID:      planID,
			PeriodStart: line.Period.Start,
			PeriodEnd:   line.Period.End,
		})
	}
	return out, nil
}

// translateStripeError folds the Stripe error hierarchy into the closed Code
// set. Anything that is not a *stripe.Error is a transport-level failure.
func translateStripeError(err error) error {
	if err == nil {
		return nil
	}

	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return &Error{Code: CodeConnection, Message: err.Error(), cause: err}
	}

	code := CodeGateway
	switch {
	case sErr.Type == stripe.ErrorTypeCard || sErr.Code == stripe.ErrorCodeCardDeclined:
		code = CodeCardDeclined
	case sErr.HTTPStatusCode == http.StatusUnauthorized:
		code = CodeAuthentication
	case sErr.Type == stripe.ErrorTypeInvalidRequest:
		code = CodeInvalidRequest
	}
	return &Error{Code: code, Message: sErr.Msg, cause: err}
}
