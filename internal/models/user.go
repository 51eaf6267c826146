package models

import "time"

type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	APIKey       *string
	CreatedAt    time.Time
}

func (u *UserRecord) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

type UserInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is what an authenticator vouches for before a local user row is resolved.
type Identity struct {
	Username string
	Email    string
	Source   string
}
