package repository

import (
	"errors"
	"time"

	"github.com/badmintontv/badmintontv/app/models"
	"gorm.io/gorm"
)

// catalogRepository implements the CatalogRepository interface
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository instance
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// GetOrCreateTournament finds a tournament by name or creates it. For an
// existing tournament the date bounds are widened so they always cover every
// ingested match.
func (r *catalogRepository) GetOrCreateTournament(name string, startDate, endDate time.Time) (*models.Tournament, error) {
	var tournament models.Tournament
	err := r.db.Where("name = ?", name).First(&tournament).Error
	if err == nil {
		changed := false
		if startDate.Before(tournament.StartDate) {
			tournament.StartDate = startDate
			changed = true
		}
		if endDate.After(tournament.EndDate) {
			tournament.EndDate = endDate
			changed = true
		}
		if changed {
			if err := r.db.Save(&tournament).Error; err != nil {
				return nil, err
			}
		}
		return &tournament, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tournament = models.Tournament{
		Name:      name,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if err := r.db.Create(&tournament).Error; err != nil {
		return nil, err
	}
	return &tournament, nil
}

// GetTournamentByID retrieves a tournament by its ID
func (r *catalogRepository) GetTournamentByID(id uint) (*models.Tournament, error) {
	var tournament models.Tournament
	if err := r.db.First(&tournament, id).Error; err != nil {
		return nil, err
	}
	return &tournament, nil
}

// ListTournaments retrieves a page of tournaments, most recent first
func (r *catalogRepository) ListTournaments(offset, limit int) ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := r.db.Order("start_date DESC").Offset(offset).Limit(limit).Find(&tournaments).Error
	return tournaments, err
}

// CountTournaments returns the total number of tournaments
func (r *catalogRepository) CountTournaments() (int64, error) {
	var count int64
	err := r.db.Model(&models.Tournament{}).Count(&count).Error
	return count, err
}

// GetOrCreateCountry finds a country by name or creates it
func (r *catalogRepository) GetOrCreateCountry(name string) (*models.Country, error) {
	var country models.Country
	err := r.db.Where("name = ?", name).First(&country).Error
	if err == nil {
		return &country, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	country = models.Country{Name: name}
	if err := r.db.Create(&country).Error; err != nil {
		return nil, err
	}
	return &country, nil
}

// GetOrCreateTeam finds a team by name and country or creates it, creating
// the country first if needed
func (r *catalogRepository) GetOrCreateTeam(name, countryName string) (*models.Team, error) {
	country, err := r.GetOrCreateCountry(countryName)
	if err != nil {
		return nil, err
	}

	var team models.Team
	err = r.db.Where("name = ? AND country_id = ?", name, country.ID).First(&team).Error
	if err == nil {
		team.Country = country
		return &team, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	team = models.Team{Name: name, CountryID: country.ID, Country: country}
	if err := r.db.Create(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}
