package repository

import (
	"time"

	"github.com/badmintontv/badmintontv/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByIdentity(identity string) (*models.User, error)
	GetByConfirmationToken(token string) (*models.User, error)
	GetByResetToken(token string) (*models.User, error)
	GetByPaymentID(paymentID string) (*models.User, error)
	GetWithBilling(id uint) (*models.User, error)
	HasSubscription(userID uint) (bool, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	CountUnconfirmedOlderThan(cutoff time.Time) (int64, error)
}

// VideoRepository defines the interface for video-related database operations
type VideoRepository interface {
	Create(video *models.Video) error
	GetByID(id uint) (*models.Video, error)
	GetByFolderNameType(folder, name, highlightsType string) (*models.Video, error)
	List(offset, limit int) ([]models.Video, error)
	ListByTournament(tournamentID uint, offset, limit int) ([]models.Video, error)
	Count() (int64, error)
	CountByTournament(tournamentID uint) (int64, error)
	Search(query string, offset, limit int) ([]models.Video, int64, error)
	Delete(id uint) error
}

// CatalogRepository defines the interface for tournament, team, and country
// lookups used by video ingestion.
type CatalogRepository interface {
	GetOrCreateTournament(name string, startDate, endDate time.Time) (*models.Tournament, error)
	GetTournamentByID(id uint) (*models.Tournament, error)
	ListTournaments(offset, limit int) ([]models.Tournament, error)
	CountTournaments() (int64, error)
	GetOrCreateCountry(name string) (*models.Country, error)
	GetOrCreateTeam(name, countryName string) (*models.Team, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Video   VideoRepository
	Catalog CatalogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Video:   NewVideoRepository(db),
		Catalog: NewCatalogRepository(db),
	}
}
