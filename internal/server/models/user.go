package models

import "time"

// Provider identifies how an account was registered.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderEmail || p == ProviderGoogle
}

// User is the stored account, including its one-way password hash.
type User struct {
	ID            string
	UserName      string
	Email         string
	PasswordHash  string
	Provider      Provider
	EmailVerified bool
	CreatedAt     time.Time
	LastLogin     *time.Time
}

// PublicUser is the projection of a User that may leave the server.
type PublicUser struct {
	ID            string
	UserName      string
	Email         string
	Provider      Provider
	EmailVerified bool
	CreatedAt     time.Time
	LastLogin     *time.Time
}

// Public strips the credential from u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		UserName:      u.UserName,
		Email:         u.Email,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}
