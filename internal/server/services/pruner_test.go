package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLedgers(m *memStore, now time.Time) {
	m.refresh["live"] = &models.RefreshToken{ID: "live", UserID: "u", ExpiresAt: now.Add(time.Hour)}
	m.refresh["expired"] = &models.RefreshToken{ID: "expired", UserID: "u", ExpiresAt: now.Add(-time.Hour)}
	m.refresh["revoked"] = &models.RefreshToken{ID: "revoked", UserID: "u", ExpiresAt: now.Add(time.Hour), Revoked: true}

	m.resets["open"] = &models.PasswordReset{ID: "open", UserID: "u", ExpiresAt: now.Add(time.Hour)}
	m.resets["used"] = &models.PasswordReset{ID: "used", UserID: "u", ExpiresAt: now.Add(time.Hour), Used: true}
	m.resets["stale"] = &models.PasswordReset{ID: "stale", UserID: "u", ExpiresAt: now.Add(-time.Minute)}
}

func TestPruner_PruneOnce(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	seedLedgers(store, now)

	p := NewPruner(nil, store, time.Minute, logging.Nop{})
	p.now = func() time.Time { return now }

	refresh, resets, err := p.PruneOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, refresh)
	assert.EqualValues(t, 2, resets)

	assert.Contains(t, store.refresh, "live")
	assert.Len(t, store.refresh, 1)
	assert.Contains(t, store.resets, "open")
	assert.Len(t, store.resets, 1)
}

func TestPruner_PruneOnceError(t *testing.T) {
	store := newMemStore()
	store.failOn("resets.prune", errors.New("boom"))

	p := NewPruner(nil, store, time.Minute, logging.Nop{})
	_, _, err := p.PruneOnce(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestPruner_RunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	seedLedgers(store, time.Now())

	p := NewPruner(nil, store, 5*time.Millisecond, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.refresh) == 1 && len(store.resets) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPruner_ZeroIntervalDisabled(t *testing.T) {
	p := NewPruner(nil, newMemStore(), 0, logging.Nop{})

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
