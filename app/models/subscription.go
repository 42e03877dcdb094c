package models

import "time"

// Subscription is the local copy of a user's recurring gateway subscription.
//
// PlanID is the plan the user is billed on right now; NewPlanID is the plan
// that takes effect at the next renewal. The two are equal unless a mid-cycle
// plan change is pending, in which case SubscriptionScheduleID references the
// gateway schedule staging the change. The row is hard-deleted on
// cancellation, never soft-deleted.
type Subscription struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	PlanID    string `gorm:"type:varchar(128);not null" json:"plan_id"`
	NewPlanID string `gorm:"type:varchar(128);not null" json:"new_plan_id"`

	SubscriptionID         string `gorm:"type:varchar(128);not null;index" json:"subscription_id"`
	SubscriptionScheduleID string `gorm:"type:varchar(128)" json:"subscription_schedule_id"` // empty while no plan change is pending

	CurrentPeriodStart time.Time `gorm:"type:timestamp;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `gorm:"type:timestamp;not null" json:"current_period_end"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasPendingPlanChange reports whether a plan change is staged for the next
// renewal.
func (s *Subscription) HasPendingPlanChange() bool {
	return s.NewPlanID != s.PlanID
}
