package services

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/users"
)

// memStore is an in-memory RepositoryManager and Transactor. Transactions are
// serialised and roll back to a snapshot when fn fails. fail injects an error
// into the named operation.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int

	users   map[string]*models.User
	refresh map[string]*models.RefreshToken
	resets  map[string]*models.PasswordReset

	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		refresh: map[string]*models.RefreshToken{},
		resets:  map[string]*models.PasswordReset{},
		fail:    map[string]error{},
	}
}

func (m *memStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return prefix + strconv.Itoa(m.seq)
}

func (m *memStore) injected(op string) error {
	return m.fail[op]
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memStore) Users(dbx.DBTX) users.Repository                   { return memUsers{m} }
func (m *memStore) RefreshTokens(dbx.DBTX) refreshtokens.Repository   { return memRefresh{m} }
func (m *memStore) PasswordResets(dbx.DBTX) passwordresets.Repository { return memResets{m} }

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	if err := m.injected("begin"); err != nil {
		m.mu.Unlock()
		return err
	}
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	users   map[string]models.User
	refresh map[string]models.RefreshToken
	resets  map[string]models.PasswordReset
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		users:   map[string]models.User{},
		refresh: map[string]models.RefreshToken{},
		resets:  map[string]models.PasswordReset{},
	}
	for k, v := range m.users {
		s.users[k] = *v
	}
	for k, v := range m.refresh {
		s.refresh[k] = *v
	}
	for k, v := range m.resets {
		s.resets[k] = *v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.users = map[string]*models.User{}
	for k, v := range s.users {
		v := v
		m.users[k] = &v
	}
	m.refresh = map[string]*models.RefreshToken{}
	for k, v := range s.refresh {
		v := v
		m.refresh[k] = &v
	}
	m.resets = map[string]*models.PasswordReset{}
	for k, v := range s.resets {
		v := v
		m.resets[k] = &v
	}
}

// user returns a copy of the stored user by email, for assertions.
func (m *memStore) userByEmail(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c
		}
	}
	return nil
}

func (m *memStore) refreshCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.refresh {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memStore) resetRecords() []models.PasswordReset {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PasswordReset
	for _, r := range m.resets {
		out = append(out, *r)
	}
	return out
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("users.create"); err != nil {
		return nil, err
	}
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = r.m.nextID("user-")
	u.CreatedAt = time.Now()
	c := *u
	r.m.users[u.ID] = &c
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("users.get"); err != nil {
		return nil, err
	}
	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("users.get"); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("users.lastlogin"); err != nil {
		return err
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLogin = &at
	return nil
}

func (r memUsers) UpdatePassword(_ context.Context, id string, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("users.password"); err != nil {
		return err
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memRefresh struct{ m *memStore }

func (r memRefresh) Create(_ context.Context, userID, hash string, createdAt, expiresAt time.Time) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("refresh.create"); err != nil {
		return nil, err
	}
	t := &models.RefreshToken{ID: r.m.nextID("rt-"), UserID: userID, TokenHash: hash, CreatedAt: createdAt, ExpiresAt: expiresAt}
	c := *t
	r.m.refresh[t.ID] = &c
	return t, nil
}

func (r memRefresh) list(userID string) ([]*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("refresh.list"); err != nil {
		return nil, err
	}
	var out []*models.RefreshToken
	for _, t := range r.m.refresh {
		if t.Revoked || (userID != "" && t.UserID != userID) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memRefresh) ListActive(context.Context) ([]*models.RefreshToken, error) {
	return r.list("")
}

func (r memRefresh) ListActiveByUser(_ context.Context, userID string) ([]*models.RefreshToken, error) {
	return r.list(userID)
}

func (r memRefresh) Delete(_ context.Context, id string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("refresh.delete"); err != nil {
		return 0, err
	}
	if _, ok := r.m.refresh[id]; !ok {
		return 0, nil
	}
	delete(r.m.refresh, id)
	return 1, nil
}

func (r memRefresh) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("refresh.deletebyuser"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range r.m.refresh {
		if t.UserID == userID {
			delete(r.m.refresh, id)
			n++
		}
	}
	return n, nil
}

func (r memRefresh) DeleteStale(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("refresh.prune"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range r.m.refresh {
		if t.Revoked || t.Expired(now) {
			delete(r.m.refresh, id)
			n++
		}
	}
	return n, nil
}

type memResets struct{ m *memStore }

func (r memResets) Create(_ context.Context, userID, hash string, createdAt, expiresAt time.Time) (*models.PasswordReset, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("resets.create"); err != nil {
		return nil, err
	}
	p := &models.PasswordReset{ID: r.m.nextID("pr-"), UserID: userID, TokenHash: hash, CreatedAt: createdAt, ExpiresAt: expiresAt}
	c := *p
	r.m.resets[p.ID] = &c
	return p, nil
}

func (r memResets) ListUnused(context.Context) ([]*models.PasswordReset, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("resets.list"); err != nil {
		return nil, err
	}
	var out []*models.PasswordReset
	for _, p := range r.m.resets {
		if p.Used {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memResets) MarkUsed(_ context.Context, id string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("resets.markused"); err != nil {
		return 0, err
	}
	p, ok := r.m.resets[id]
	if !ok || p.Used {
		return 0, nil
	}
	p.Used = true
	return 1, nil
}

func (r memResets) DeleteStale(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("resets.prune"); err != nil {
		return 0, err
	}
	var n int64
	for id, p := range r.m.resets {
		if p.Used || p.Expired(now) {
			delete(r.m.resets, id)
			n++
		}
	}
	return n, nil
}
