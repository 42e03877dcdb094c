package repository

import (
	"fmt"

	"github.com/badmintontv/badmintontv/app/models"
	"gorm.io/gorm"
)

// videoRepository implements the VideoRepository interface
type videoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new video repository instance
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

// Create creates a new video with its team associations
func (r *videoRepository) Create(video *models.Video) error {
	return r.db.Create(video).Error
}

// GetByID retrieves a video with tournament and teams preloaded
func (r *videoRepository) GetByID(id uint) (*models.Video, error) {
	var video models.Video
	err := r.db.
		Preload("Tournament").
		Preload("Teams").
		Preload("Teams.Country").
		First(&video, id).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// GetByFolderNameType retrieves a video by its on-disk identity. The scanner
// uses this to skip videos that were already ingested.
func (r *videoRepository) GetByFolderNameType(folder, name, highlightsType string) (*models.Video, error) {
	var video models.Video
	err := r.db.
		Where("folder = ? AND name = ? AND highlights_type = ?", folder, name, highlightsType).
		First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// List retrieves a page of videos, newest match first
func (r *videoRepository) List(offset, limit int) ([]models.Video, error) {
	var videos []models.Video
	err := r.db.
		Preload("Tournament").
		Preload("Teams").
		Preload("Teams.Country").
		Order("date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&videos).Error
	return videos, err
}

// ListByTournament retrieves a page of one tournament's videos
func (r *videoRepository) ListByTournament(tournamentID uint, offset, limit int) ([]models.Video, error) {
	var videos []models.Video
	err := r.db.
		Preload("Tournament").
		Preload("Teams").
		Preload("Teams.Country").
		Where("tournament_id = ?", tournamentID).
		Order("date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&videos).Error
	return videos, err
}

// Count returns the total number of videos
func (r *videoRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Video{}).Count(&count).Error
	return count, err
}

// CountByTournament returns the number of videos of one tournament
func (r *videoRepository) CountByTournament(tournamentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Video{}).Where("tournament_id = ?", tournamentID).Count(&count).Error
	return count, err
}

// Search finds videos by tournament name, team name, round, or discipline
func (r *videoRepository) Search(query string, offset, limit int) ([]models.Video, int64, error) {
	searchTerm := fmt.Sprintf("%%%s%%", query)

	base := r.db.Model(&models.Video{}).
		Joins("JOIN tournaments ON tournaments.id = videos.tournament_id").
		Joins("LEFT JOIN video_teams ON video_teams.video_id = videos.id").
		Joins("LEFT JOIN teams ON teams.id = video_teams.team_id").
		Where(
			"tournaments.name LIKE ? OR teams.name LIKE ? OR videos.round LIKE ? OR videos.discipline LIKE ?",
			searchTerm, searchTerm, searchTerm, searchTerm,
		).
		Distinct("videos.id")

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ids []uint
	if err := base.Order("videos.id DESC").Offset(offset).Limit(limit).Pluck("videos.id", &ids).Error; err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, total, nil
	}

	var videos []models.Video
	err := r.db.
		Preload("Tournament").
		Preload("Teams").
		Preload("Teams.Country").
		Where("id IN ?", ids).
		Order("date DESC, id DESC").
		Find(&videos).Error
	return videos, total, err
}

// Delete deletes a video by its ID
func (r *videoRepository) Delete(id uint) error {
	return r.db.Delete(&models.Video{}, id).Error
}
