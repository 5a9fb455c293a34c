package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProvider_Valid(t *testing.T) {
	assert.True(t, ProviderEmail.Valid())
	assert.True(t, ProviderGoogle.Valid())
	assert.False(t, Provider("github").Valid())
	assert.False(t, Provider("").Valid())
}

func TestUser_PublicHasNoHash(t *testing.T) {
	now := time.Now()
	u := &User{ID: "u1", UserName: "alice", Email: "a@b.com", PasswordHash: "$2a$10$x", Provider: ProviderEmail, CreatedAt: now, LastLogin: &now}

	p := u.Public()
	assert.Equal(t, PublicUser{ID: "u1", UserName: "alice", Email: "a@b.com", Provider: ProviderEmail, CreatedAt: now, LastLogin: &now}, p)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	rt := &RefreshToken{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, rt.Expired(now))
	rt.ExpiresAt = now.Add(time.Second)
	assert.False(t, rt.Expired(now))

	pr := &PasswordReset{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, pr.Expired(now))
}
