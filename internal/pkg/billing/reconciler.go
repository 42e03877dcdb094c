package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

// Reconciler applies provider webhook events to local state. Deliveries are
// untrusted: only the event ID is taken from the request body and the event
// itself is fetched back from the provider before anything is acted on.
// Handlers are idempotent so replayed deliveries are harmless.
type Reconciler struct {
	svc *Service
}

// NewReconciler creates a reconciler on top of the billing service.
func NewReconciler(svc *Service) *Reconciler {
	return &Reconciler{svc: svc}
}

// SubscriptionUpdated handles customer.subscription.updated. When the period
// bounds in the verified event differ from the stored ones the billing cycle
// rolled over: the pending plan becomes active, the new bounds are saved, and
// any finished schedule is released. Same-cycle updates change nothing,
// which is what makes replays safe.
func (r *Reconciler) SubscriptionUpdated(ctx context.Context, eventID string) error {
	ev, err := r.svc.gw.RetrieveEvent(ctx, eventID)
	if err != nil {
		return err
	}
	r.recordEvent(ev)

	err = r.applySubscriptionUpdated(ctx, ev)
	r.markProcessed(ev.ID, err)
	return err
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, ev *gateway.Event) error {
	sub, err := r.svc.repo.SubscriptionBySubscriptionID(ev.Object.ObjectID)
	if err != nil {
		return err
	}

	payloadStart := periodTime(ev.Object.CurrentPeriodStart)
	payloadEnd := periodTime(ev.Object.CurrentPeriodEnd)

	renewal := !sub.CurrentPeriodStart.Equal(payloadStart) || !sub.CurrentPeriodEnd.Equal(payloadEnd)
	if !renewal {
		log.Debugf("[Webhook] %s: same billing cycle, keeping stored dates", sub.SubscriptionID)
		return nil
	}

	log.Debugf("[Webhook] %s: cycle rolled over, activating plan %s", sub.SubscriptionID, sub.NewPlanID)

	sub.PlanID = sub.NewPlanID
	sub.CurrentPeriodStart = payloadStart
	sub.CurrentPeriodEnd = payloadEnd

	if sub.SubscriptionScheduleID != "" {
		sched, err := r.releaseSchedule(ctx, sub.SubscriptionScheduleID)
		if err != nil {
			return err
		}
		log.Debugf("[Webhook] released schedule %s", sched.ID)
		sub.SubscriptionScheduleID = ""
	}

	return r.svc.repo.SaveRenewal(sub)
}

// releaseSchedule detaches a finished schedule. Under a test clock the
// provider can refuse the release while the clock is advancing, so in debug
// mode it retries until the call goes through or the context expires.
func (r *Reconciler) releaseSchedule(ctx context.Context, scheduleID string) (*gateway.Schedule, error) {
	if !r.svc.debug {
		return r.svc.gw.ReleaseSchedule(ctx, scheduleID)
	}
	for {
		sched, err := r.svc.gw.ReleaseSchedule(ctx, scheduleID)
		if err == nil {
			return sched, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// InvoicePaymentSucceeded handles invoice.payment_succeeded by recording a
// denormalized invoice row. Events for customers we do not know, or for users
// without a card on file, are dropped without error so the provider stops
// redelivering them.
func (r *Reconciler) InvoicePaymentSucceeded(ctx context.Context, eventID string) error {
	ev, err := r.svc.gw.RetrieveEvent(ctx, eventID)
	if err != nil {
		return err
	}
	r.recordEvent(ev)

	err = r.applyInvoicePaymentSucceeded(ev)
	r.markProcessed(ev.ID, err)
	return err
}

func (r *Reconciler) applyInvoicePaymentSucceeded(ev *gateway.Event) error {
	if len(ev.Object.Lines) == 0 {
		return errors.New("billing: invoice event has no line items")
	}
	line := ev.Object.Lines[0]

	user, err := r.svc.repo.UserByPaymentID(ev.Object.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debugf("[Webhook] no user for customer %s, dropping invoice", ev.Object.CustomerID)
			return nil
		}
		return err
	}

	card, err := r.svc.repo.CardByUserID(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debugf("[Webhook] %s has no card on file, dropping invoice", user.Username)
			return nil
		}
		return err
	}

	invoice := &models.Invoice{
		UserID:        user.ID,
		DownloadURL:   ev.Object.HostedInvoiceURL,
		InvoiceNumber: ev.Object.Number,
		ReceiptNumber: ev.Object.ReceiptNumber,
		PlanID:        line.PlanID,
		PlanName:      r.svc.catalog.PlanName(line.PlanID),
		Description:   r.svc.catalog.Product.StatementDescriptor,
		PeriodStartOn: periodTime(line.PeriodStart),
		PeriodEndOn:   periodTime(line.PeriodEnd),
		Currency:      ev.Object.Currency,
		Total:         ev.Object.Total,
		Brand:         card.Brand,
		Last4:         card.Last4,
		ExpDate:       card.ExpDate,
	}
	return r.svc.repo.CreateInvoice(invoice)
}

// InvoicePaymentFailed handles invoice.payment_failed by cancelling the
// subscription the invoice belongs to. The cancel path is the same one a
// user-initiated cancel takes, including the explicit card deletion.
func (r *Reconciler) InvoicePaymentFailed(ctx context.Context, eventID string) error {
	ev, err := r.svc.gw.RetrieveEvent(ctx, eventID)
	if err != nil {
		return err
	}
	r.recordEvent(ev)

	err = r.applyInvoicePaymentFailed(ctx, ev)
	r.markProcessed(ev.ID, err)
	return err
}

func (r *Reconciler) applyInvoicePaymentFailed(ctx context.Context, ev *gateway.Event) error {
	sub, err := r.svc.repo.SubscriptionBySubscriptionID(ev.Object.SubscriptionID)
	if err != nil {
		return err
	}
	user, err := r.svc.repo.UserByID(sub.UserID)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] payment failed for %s, cancelling subscription %s", user.Username, sub.SubscriptionID)
	return r.svc.Cancel(ctx, user)
}

// recordEvent stores the verified event for audit. Storage is best effort
// and duplicates are ignored; idempotency comes from the handlers, not from
// this record.
func (r *Reconciler) recordEvent(ev *gateway.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		payload = nil
	}
	record := &models.WebhookEvent{
		EventID:     ev.ID,
		EventType:   ev.Type,
		PayloadJSON: string(payload),
	}
	if err := r.svc.repo.RecordWebhookEvent(record); err != nil {
		log.Errorf("[Webhook] failed to record event %s: %v", ev.ID, err)
	}
}

func (r *Reconciler) markProcessed(eventID string, handleErr error) {
	msg := ""
	if handleErr != nil {
		msg = handleErr.Error()
	}
	if err := r.svc.repo.MarkWebhookProcessed(eventID, msg); err != nil {
		log.Errorf("[Webhook] failed to mark event %s processed: %v", eventID, err)
	}
}
