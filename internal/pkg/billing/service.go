package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

// ErrEmptyPaymentToken is returned when a lifecycle operation is attempted
// without a card token. The provider is never contacted in that case.
var ErrEmptyPaymentToken = errors.New("billing: empty payment token")

// ErrNoSubscription is returned when an operation needs a subscription the
// user does not have.
var ErrNoSubscription = errors.New("billing: user has no subscription")

// Service drives the subscription lifecycle. Every operation talks to the
// payment provider first and only writes locally once the provider call
// succeeded, so a failed provider call leaves the DB untouched.
type Service struct {
	repo        Repository
	gw          gateway.Gateway
	catalog     *Catalog
	debug       bool
	testClockID string
}

// NewService creates a billing service from injected dependencies.
func NewService(repo Repository, gw gateway.Gateway, catalog *Catalog, debug bool, testClockID string) *Service {
	return &Service{
		repo:        repo,
		gw:          gw,
		catalog:     catalog,
		debug:       debug,
		testClockID: testClockID,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// rest of the configuration taken from the environment.
func NewServiceFromDB(db *gorm.DB, gw gateway.Gateway) *Service {
	return NewService(
		NewRepository(db),
		gw,
		NewCatalogFromEnv(),
		env.IsDev(),
		env.GetEnv("STRIPE_TEST_CLOCK", ""),
	)
}

// Catalog returns the plan catalog the service sells.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Subscribe creates a recurring subscription for user on the given plan. A
// user seen for the first time gets a provider customer created from the card
// token; a returning user keeps their customer and the token becomes their
// new default card. The user, card, and subscription rows are written in one
// transaction after all provider calls succeeded.
func (s *Service) Subscribe(ctx context.Context, user *models.User, name, planID, token string) error {
	if token == "" {
		return ErrEmptyPaymentToken
	}

	var customer *gateway.Customer
	var err error
	if user.PaymentID == "" {
		testClockID := ""
		if s.debug && s.testClockID != "" {
			testClockID = s.testClockID
			log.Debugf("[Billing] using test clock %s", testClockID)
		}
		customer, err = s.gw.CreateCustomer(ctx, name, user.Email, token, testClockID)
		if err != nil {
			return err
		}
		log.Debugf("[Billing] %s: created customer %s", user.Username, customer.ID)
	} else {
		if _, err = s.gw.UpdateCard(ctx, user.PaymentID, name, token); err != nil {
			return err
		}
		customer, err = s.gw.RetrieveCustomer(ctx, user.PaymentID)
		if err != nil {
			return err
		}
	}

	gwSub, err := s.gw.CreateSubscription(ctx, customer.ID, planID)
	if err != nil {
		return err
	}
	log.Debugf("[Billing] %s: created subscription %s", user.Username, gwSub.ID)

	sub := &models.Subscription{
		UserID:             user.ID,
		PlanID:             planID,
		NewPlanID:          planID,
		SubscriptionID:     gwSub.ID,
		CurrentPeriodStart: periodTime(gwSub.CurrentPeriodStart),
		CurrentPeriodEnd:   periodTime(gwSub.CurrentPeriodEnd),
	}

	user.PaymentID = customer.ID
	user.Name = name
	user.CancelledSubscriptionOn = nil

	card := &models.Card{UserID: user.ID}
	applyGatewayCard(card, customer.DefaultCard, time.Now().UTC())

	if err := s.repo.CreateSubscription(user, sub, card); err != nil {
		// The provider subscription exists but we failed to record it.
		log.Errorf("[Billing] %s: subscription %s created at provider but local write failed: %v", user.Username, gwSub.ID, err)
		return err
	}
	return nil
}

// ChangePlan stages a plan change for the next billing cycle. The provider
// schedule keeps the current plan until the period ends and starts the new
// plan at rollover; locally only the pending plan and the schedule ID are
// recorded. The active plan flips when the renewal event arrives.
func (s *Service) ChangePlan(ctx context.Context, user *models.User, newPlanID string) error {
	sub, err := s.repo.SubscriptionByUserID(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSubscription
		}
		return err
	}

	log.Debugf("[Billing] %s: changing plan %s -> %s", user.Username, sub.PlanID, newPlanID)

	sched, err := s.gw.CreateOrUpdateSchedule(
		ctx,
		user.PaymentID,
		sub.SubscriptionScheduleID,
		newPlanID,
		sub.PlanID,
		sub.CurrentPeriodStart.Unix(),
		sub.CurrentPeriodEnd.Unix(),
	)
	if err != nil {
		return err
	}

	sub.NewPlanID = newPlanID
	sub.SubscriptionScheduleID = sched.ID
	if err := s.repo.SavePlanChange(sub); err != nil {
		log.Errorf("[Billing] %s: schedule %s staged at provider but local write failed: %v", user.Username, sched.ID, err)
		return err
	}
	return nil
}

// Cancel ends the user's subscription immediately. The provider subscription
// is cancelled first; the local subscription and card rows are then deleted
// and the cancellation date stamped on the user in one transaction. The card
// is removed explicitly so no payment data lingers after cancellation.
func (s *Service) Cancel(ctx context.Context, user *models.User) error {
	gwSub, err := s.gw.CancelSubscription(ctx, user.PaymentID)
	if err != nil {
		return err
	}
	log.Debugf("[Billing] %s: cancelled subscription %s", user.Username, gwSub.ID)

	sub, err := s.repo.SubscriptionByUserID(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSubscription
		}
		return err
	}

	card, err := s.repo.CardByUserID(user.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		card = nil
	}

	now := time.Now().UTC()
	user.CancelledSubscriptionOn = &now

	if err := s.repo.DeleteSubscription(user, sub, card); err != nil {
		log.Errorf("[Billing] %s: subscription %s cancelled at provider but local write failed: %v", user.Username, sub.SubscriptionID, err)
		return err
	}
	return nil
}

// UpdatePaymentMethod swaps the user's default card for the tokenized one and
// refreshes the local card snapshot from the provider.
func (s *Service) UpdatePaymentMethod(ctx context.Context, user *models.User, card *models.Card, name, token string) error {
	if token == "" {
		return ErrEmptyPaymentToken
	}

	if _, err := s.gw.UpdateCard(ctx, user.PaymentID, name, token); err != nil {
		return err
	}

	customer, err := s.gw.RetrieveCustomer(ctx, user.PaymentID)
	if err != nil {
		return err
	}

	user.Name = name
	applyGatewayCard(card, customer.DefaultCard, time.Now().UTC())

	if err := s.repo.UpdatePaymentMethod(user, card); err != nil {
		log.Errorf("[Billing] %s: card updated at provider but local write failed: %v", user.Username, err)
		return err
	}
	return nil
}

// NextInvoice previews the user's upcoming bill.
type NextInvoice struct {
	PlanName   string
	AmountDue  int64
	Currency   string
	NextBillOn time.Time
}

// UpcomingInvoice fetches and formats the next bill for a customer.
func (s *Service) UpcomingInvoice(ctx context.Context, paymentID string) (*NextInvoice, error) {
	inv, err := s.gw.UpcomingInvoice(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &NextInvoice{
		PlanName:   s.catalog.PlanName(inv.PlanID),
		AmountDue:  inv.AmountDue,
		Currency:   inv.Currency,
		NextBillOn: periodTime(inv.NextPaymentAttempt),
	}, nil
}

// BillingHistory returns a page of the user's invoices, newest first, plus
// the total count.
func (s *Service) BillingHistory(userID uint, offset, limit int) ([]models.Invoice, int64, error) {
	return s.repo.InvoicesByUser(userID, offset, limit)
}

// MarkExpiringCards flags cards that expire within the warning window as of
// now. It runs daily from the scheduler.
func (s *Service) MarkExpiringCards(now time.Time) (int64, error) {
	threshold := now.UTC().AddDate(0, models.IsExpiringThresholdMonths, 0)
	flagged, err := s.repo.MarkExpiringCards(threshold)
	if err != nil {
		return 0, err
	}
	if flagged > 0 {
		log.Infof("[Billing] flagged %d cards expiring before %s", flagged, threshold.Format("2006-01-02"))
	}
	return flagged, nil
}

// SyncCatalog pushes the product and prices to the provider, creating
// whatever does not exist yet.
func (s *Service) SyncCatalog(ctx context.Context) error {
	if err := s.gw.SyncProduct(ctx, s.catalog.GatewayProduct()); err != nil {
		return err
	}
	for _, p := range s.catalog.GatewayPrices() {
		if err := s.gw.SyncPrice(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// periodTime converts provider epoch seconds into a UTC timestamp. All
// period bounds are stored in UTC so webhook comparisons do not depend on the
// server timezone.
func periodTime(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC()
}

// applyGatewayCard copies the provider card snapshot onto the local card row
// and refreshes the expiry flag.
func applyGatewayCard(card *models.Card, gwCard *gateway.Card, now time.Time) {
	if gwCard == nil {
		return
	}
	expDate := models.CardExpiryDate(gwCard.ExpYear, gwCard.ExpMonth)
	card.Brand = gwCard.Brand
	card.Last4 = gwCard.Last4
	card.ExpDate = expDate
	card.IsExpiring = models.IsCardExpiringSoon(now, expDate)
}
