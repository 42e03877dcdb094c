package models

import (
	"testing"
	"time"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("player_one", "player@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.Role != ROLE_MEMBER {
		t.Fatalf("new user role = %q, want %q", user.Role, ROLE_MEMBER)
	}
	if !user.Active {
		t.Fatal("new user should be active")
	}
	if user.Password == "hunter2hunter2" {
		t.Fatal("password should be stored hashed")
	}
	if !user.CheckPassword("hunter2hunter2") {
		t.Fatal("CheckPassword should accept the original password")
	}
	if user.CheckPassword("wrong") {
		t.Fatal("CheckPassword should reject a wrong password")
	}
}

func TestCreateUserValidation(t *testing.T) {
	if _, err := CreateUser("ab", "player@example.com", "hunter2hunter2"); err == nil {
		t.Fatal("expected error for a too short username")
	}
	if _, err := CreateUser("player_one", "not-an-email", "hunter2hunter2"); err == nil {
		t.Fatal("expected error for an invalid email")
	}
}

func TestGenerateResetToken(t *testing.T) {
	user := &User{}
	if err := user.GenerateResetToken(); err != nil {
		t.Fatalf("GenerateResetToken() error = %v", err)
	}

	if user.ResetToken == "" {
		t.Fatal("reset token should be set")
	}
	if user.ResetSentAt == nil {
		t.Fatal("reset sent timestamp should be set")
	}
	if !user.ResetTokenValid(user.ResetToken, 24*time.Hour) {
		t.Fatal("fresh token should be valid")
	}
	if user.ResetTokenValid("other-token", 24*time.Hour) {
		t.Fatal("mismatched token should be invalid")
	}

	expired := time.Now().Add(-25 * time.Hour)
	user.ResetSentAt = &expired
	if user.ResetTokenValid(user.ResetToken, 24*time.Hour) {
		t.Fatal("expired token should be invalid")
	}
}

func TestIsAdmin(t *testing.T) {
	if (&User{Role: ROLE_MEMBER}).IsAdmin() {
		t.Fatal("member should not be admin")
	}
	if !(&User{Role: ROLE_ADMIN}).IsAdmin() {
		t.Fatal("admin role should be admin")
	}
}
