package model

import "time"

// User is an app account holder. The signature core only needs enough
// of it to authenticate rental owners and to check whether a signer
// phone belongs to an existing account.
type User struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber string    `db:"phone_number" json:"phoneNumber"`
	TokenHash   string    `db:"token_hash" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
