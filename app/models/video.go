package models

import "time"

const (
	HighlightsTypeStandard = "Highlights"
	HighlightsTypeExtended = "Extended Highlights"
)

// Video is one highlights cut of a match. Folder, Name and HighlightsType
// identify the video on disk and are never updated after ingestion.
type Video struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Folder   string `gorm:"type:varchar(120);not null;uniqueIndex:ux_videos_folder_name_type,priority:1" json:"folder"`
	Name     string `gorm:"type:varchar(120);not null;uniqueIndex:ux_videos_folder_name_type,priority:2" json:"name"`
	Filename string `gorm:"type:varchar(120);not null" json:"filename"`

	HighlightsType     string    `gorm:"type:varchar(30);not null;uniqueIndex:ux_videos_folder_name_type,priority:3" json:"highlights_type"`
	HighlightsFilename string    `gorm:"type:varchar(150);not null" json:"highlights_filename"`
	HighlightsDuration string    `gorm:"type:varchar(16);not null" json:"highlights_duration"`
	HighlightsDatetime time.Time `gorm:"type:timestamp;not null" json:"highlights_datetime"`

	Date       time.Time `gorm:"type:date;not null;index" json:"date"`
	Round      string    `gorm:"type:varchar(25);not null" json:"round"`
	Discipline string    `gorm:"type:varchar(15);not null;index" json:"discipline"`

	// Name of the model that produced the highlights cut.
	ModelName string `gorm:"type:varchar(150);not null" json:"model_name"`

	TournamentID uint        `gorm:"not null;index" json:"tournament_id"`
	Tournament   *Tournament `json:"tournament,omitempty"`
	Teams        []Team      `gorm:"many2many:video_teams;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"teams,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
