package models

import "time"

// Tournament groups the videos recorded at one event.
type Tournament struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;index" json:"name" validate:"required,max=100"`
	StartDate time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Videos []Video `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
