package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/badmintontv/badmintontv/app/models"
)

// Repository provides the DB operations used by the billing service and the
// webhook reconciler. The multi-record writes run in a single transaction so
// a subscription never exists without its user and card updates.
type Repository interface {
	UserByID(id uint) (*models.User, error)
	UserByPaymentID(paymentID string) (*models.User, error)
	SubscriptionByUserID(userID uint) (*models.Subscription, error)
	SubscriptionBySubscriptionID(subscriptionID string) (*models.Subscription, error)
	CardByUserID(userID uint) (*models.Card, error)

	CreateSubscription(user *models.User, sub *models.Subscription, card *models.Card) error
	SavePlanChange(sub *models.Subscription) error
	SaveRenewal(sub *models.Subscription) error
	DeleteSubscription(user *models.User, sub *models.Subscription, card *models.Card) error
	UpdatePaymentMethod(user *models.User, card *models.Card) error

	CreateInvoice(invoice *models.Invoice) error
	InvoicesByUser(userID uint, offset, limit int) ([]models.Invoice, int64, error)
	MarkExpiringCards(threshold time.Time) (int64, error)

	RecordWebhookEvent(event *models.WebhookEvent) error
	MarkWebhookProcessed(eventID, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) UserByPaymentID(paymentID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("payment_id = ?", paymentID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SubscriptionByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SubscriptionBySubscriptionID(subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("subscription_id = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CardByUserID(userID uint) (*models.Card, error) {
	var card models.Card
	if err := r.db.Where("user_id = ?", userID).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateSubscription persists the user, card, and subscription rows of a new
// signup together. The card upserts on user_id so a resubscribing user whose
// old card row survived does not collide.
func (r *gormRepository) CreateSubscription(user *models.User, sub *models.Subscription, card *models.Card) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"brand",
				"last4",
				"exp_date",
				"is_expiring",
				"updated_at",
			}),
		}).Create(card).Error; err != nil {
			return err
		}
		return tx.Create(sub).Error
	})
}

func (r *gormRepository) SavePlanChange(sub *models.Subscription) error {
	return r.db.Model(sub).Updates(map[string]interface{}{
		"new_plan_id":              sub.NewPlanID,
		"subscription_schedule_id": sub.SubscriptionScheduleID,
	}).Error
}

// SaveRenewal locks the subscription row and re-checks the period bounds
// before writing, so two workers replaying the same renewal event apply it
// only once.
func (r *gormRepository) SaveRenewal(sub *models.Subscription) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var current models.Subscription
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, sub.ID).Error; err != nil {
			return err
		}
		if current.CurrentPeriodStart.Equal(sub.CurrentPeriodStart) &&
			current.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd) {
			return nil
		}
		return tx.Model(sub).Updates(map[string]interface{}{
			"plan_id":                  sub.PlanID,
			"subscription_schedule_id": sub.SubscriptionScheduleID,
			"current_period_start":     sub.CurrentPeriodStart,
			"current_period_end":       sub.CurrentPeriodEnd,
		}).Error
	})
}

// DeleteSubscription removes the subscription and card rows and stamps the
// cancellation on the user, all in one transaction. The card is deleted
// explicitly because it hangs off the user, not the subscription, so no
// cascade covers it. card may be nil when a payment failure cancels a user
// whose card row is already gone.
func (r *gormRepository) DeleteSubscription(user *models.User, sub *models.Subscription, card *models.Card) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		if err := tx.Delete(sub).Error; err != nil {
			return err
		}
		if card != nil {
			if err := tx.Delete(card).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormRepository) UpdatePaymentMethod(user *models.User, card *models.Card) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Save(card).Error
	})
}

func (r *gormRepository) CreateInvoice(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *gormRepository) InvoicesByUser(userID uint, offset, limit int) ([]models.Invoice, int64, error) {
	var total int64
	if err := r.db.Model(&models.Invoice{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []models.Invoice
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&invoices).Error
	return invoices, total, err
}

// MarkExpiringCards flags every card expiring on or before threshold and
// returns how many rows changed.
func (r *gormRepository) MarkExpiringCards(threshold time.Time) (int64, error) {
	tx := r.db.Model(&models.Card{}).
		Where("exp_date <= ? AND is_expiring = ?", threshold, false).
		Update("is_expiring", true)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) RecordWebhookEvent(event *models.WebhookEvent) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event).Error
}

func (r *gormRepository) MarkWebhookProcessed(eventID, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}
