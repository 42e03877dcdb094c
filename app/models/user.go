package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_MEMBER = "member"
	ROLE_ADMIN  = "admin"
)

// SupportedLocales lists the UI languages a user can pick.
var SupportedLocales = []string{"en", "ko", "ja", "zh"}

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(30);uniqueIndex;not null" json:"username" validate:"required,min=3,max=30"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email,max=255"`
	Password string `gorm:"type:varchar(128);not null" json:"-" validate:"required,min=8"`
	Role     string `gorm:"type:varchar(20);not null;default:'member';index" json:"role" validate:"oneof=member admin"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
	Locale   string `gorm:"type:varchar(5);not null;default:'en'" json:"locale" validate:"oneof=en ko ja zh"`

	// Email confirmation
	Confirmed          bool       `gorm:"not null;default:false" json:"confirmed"`
	ConfirmationToken  string     `gorm:"type:varchar(100);index" json:"-"`
	ConfirmationSentAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`

	// Password reset
	ResetToken  string     `gorm:"type:varchar(100);index" json:"-"`
	ResetSentAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`

	// Billing
	Name                    string     `gorm:"type:varchar(150)" json:"name"`                            // billing name
	PaymentID               string     `gorm:"type:varchar(128);index" json:"-"`                         // gateway customer reference
	CancelledSubscriptionOn *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_subscription_on"`

	// Activity tracking
	SignInCount     int        `gorm:"not null;default:0" json:"sign_in_count"`
	CurrentSignInOn *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CurrentSignInIP string     `gorm:"type:varchar(45)" json:"-"`
	LastSignInOn    *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	LastSignInIP    string     `gorm:"type:varchar(45)" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// A user owns at most one subscription and one card, and any number of
	// invoices. All are removed when the user is deleted.
	Subscription *Subscription `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subscription,omitempty"`
	Card         *Card         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"card,omitempty"`
	Invoices     []Invoice     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username: username,
		Email:    email,
		Password: pw,
		Role:     ROLE_MEMBER,
		Active:   true,
		Locale:   "en",
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// GenerateConfirmationToken creates a random token and sets ConfirmationSentAt
func (u *User) GenerateConfirmationToken() error {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	u.ConfirmationToken = hex.EncodeToString(b)
	now := time.Now()
	u.ConfirmationSentAt = &now
	return nil
}

// GenerateResetToken creates a random password reset token and sets ResetSentAt
func (u *User) GenerateResetToken() error {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	u.ResetToken = hex.EncodeToString(b)
	now := time.Now()
	u.ResetSentAt = &now
	return nil
}

// ResetTokenValid reports whether the stored reset token matches and has not
// expired yet.
func (u *User) ResetTokenValid(token string, maxAge time.Duration) bool {
	if u.ResetToken == "" || token == "" || u.ResetToken != token {
		return false
	}
	if u.ResetSentAt == nil {
		return false
	}
	return time.Since(*u.ResetSentAt) <= maxAge
}

// UpdateActivityTracking rolls the current sign-in data into the last sign-in
// fields and records the new sign-in.
func (u *User) UpdateActivityTracking(ip string) {
	u.SignInCount++

	u.LastSignInOn = u.CurrentSignInOn
	u.LastSignInIP = u.CurrentSignInIP

	now := time.Now().UTC()
	u.CurrentSignInOn = &now
	u.CurrentSignInIP = ip
}
