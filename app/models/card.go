package models

import "time"

// IsExpiringThresholdMonths is the window, in months, within which a card is
// flagged site-wide as expiring soon.
const IsExpiringThresholdMonths = 2

// Card is a denormalized snapshot of the gateway's default payment method for
// a user. The foreign key cascades from the user, not the subscription, so
// cancelling a subscription must delete the card explicitly (or keep it, for
// sites that want a card on file after cancellation).
type Card struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	Brand      string    `gorm:"type:varchar(32)" json:"brand"`
	Last4      string    `gorm:"type:varchar(4)" json:"last4"`
	ExpDate    time.Time `gorm:"type:date;index" json:"exp_date"`
	IsExpiring bool      `gorm:"not null;default:false" json:"is_expiring"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CardExpiryDate builds the expiration date stored for a card: the first day
// of its expiry month.
func CardExpiryDate(expYear, expMonth int) time.Time {
	return time.Date(expYear, time.Month(expMonth), 1, 0, 0, 0, 0, time.UTC)
}

// IsCardExpiringSoon reports whether expDate falls within
// IsExpiringThresholdMonths of compareDate.
func IsCardExpiringSoon(compareDate, expDate time.Time) bool {
	threshold := compareDate.AddDate(0, IsExpiringThresholdMonths, 0)
	return !expDate.After(threshold)
}
