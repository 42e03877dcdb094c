package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/badmintontv/badmintontv/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIdentity retrieves a user by username or email, whichever matches.
// The login form accepts either.
func (r *userRepository) GetByIdentity(identity string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ? OR email = ?", identity, strings.ToLower(identity)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByConfirmationToken retrieves a user by their email confirmation token
func (r *userRepository) GetByConfirmationToken(token string) (*models.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("confirmation_token = ?", trimmed).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByResetToken retrieves a user by their password reset token
func (r *userRepository) GetByResetToken(token string) (*models.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("reset_token = ?", trimmed).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPaymentID retrieves a user by their payment provider customer reference
func (r *userRepository) GetByPaymentID(paymentID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("payment_id = ?", paymentID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithBilling retrieves a user with subscription, card, and invoices preloaded
func (r *userRepository) GetWithBilling(id uint) (*models.User, error) {
	var user models.User
	err := r.db.
		Preload("Subscription").
		Preload("Card").
		First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// HasSubscription reports whether the user currently has a subscription row
func (r *userRepository) HasSubscription(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete deletes a user by their ID
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// Search finds users whose username or email matches the query
func (r *userRepository) Search(query string) ([]models.User, error) {
	var users []models.User
	searchTerm := fmt.Sprintf("%%%s%%", query)
	err := r.db.Where("username LIKE ? OR email LIKE ?", searchTerm, searchTerm).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

// CountUnconfirmedOlderThan counts accounts that never confirmed their email
// and were created before cutoff
func (r *userRepository) CountUnconfirmedOlderThan(cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("confirmed = ? AND created_at < ?", false, cutoff).
		Count(&count).Error
	return count, err
}
