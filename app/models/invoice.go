package models

import "time"

// Invoice is an append-only record of a billed period, written only by the
// webhook reconciler on successful payment. Card details are denormalized at
// billing time so history stays renderable after the card or subscription is
// gone. Rows are never updated or deleted except by user-deletion cascade.
type Invoice struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Payment details
	DownloadURL   string `gorm:"type:varchar(512)" json:"download_url"`
	InvoiceNumber string `gorm:"type:varchar(128);index" json:"invoice_number"`
	ReceiptNumber string `gorm:"type:varchar(128)" json:"receipt_number"`

	// Plan details
	PlanID        string    `gorm:"type:varchar(128);index" json:"plan_id"`
	PlanName      string    `gorm:"type:varchar(128)" json:"plan_name"`
	Description   string    `gorm:"type:varchar(128)" json:"description"`
	PeriodStartOn time.Time `gorm:"type:date" json:"period_start_on"`
	PeriodEndOn   time.Time `gorm:"type:date" json:"period_end_on"`
	Currency      string    `gorm:"type:varchar(8)" json:"currency"`
	Total         int64     `gorm:"not null;default:0" json:"total"`

	// Card details at time of billing
	Brand   string    `gorm:"type:varchar(32)" json:"brand"`
	Last4   string    `gorm:"type:varchar(4)" json:"last4"`
	ExpDate time.Time `gorm:"type:date" json:"exp_date"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
