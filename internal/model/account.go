package model

import "time"

// Account is a user together with the credential state used to sign in.
type Account struct {
	User
	PasswordHash  string `json:"-" db:"password_hash"`
	EmailVerified bool   `json:"-" db:"email_verified"`
}

// Token purposes.
const (
	PurposeRefresh     = "refresh"
	PurposeVerifyEmail = "verify_email"
	PurposeReset       = "reset_password"
)

// Token is a single-use opaque credential stored by hash.
type Token struct {
	Hash      string    `db:"token_hash"`
	UserID    string    `db:"user_id"`
	Purpose   string    `db:"purpose"`
	ExpiresAt time.Time `db:"expires_at"`
}
