// Package session keeps the signed-in user's tokens in the CLI's local
// database so they survive between runs.
package session

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/trackkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
)

// ErrNoSession is returned by Load when nobody is signed in.
var ErrNoSession = errors.New("not logged in")

const (
	keyUserID       = "session.user_id"
	keyEmail        = "session.email"
	keyUsername     = "session.username"
	keyAccessToken  = "session.access_token"
	keyRefreshToken = "session.refresh_token"
)

type Session struct {
	UserID       string
	Email        string
	Username     string
	AccessToken  string
	RefreshToken string
}

// Store persists one Session. Writes touching several keys run in a single
// transaction so a crash never leaves a half-updated token pair behind.
type Store struct {
	db   dbx.DBTX
	tx   dbx.Transactor
	repo func(dbx.DBTX) metadata.Repository
}

func NewStore(db dbx.DBTX, tx dbx.Transactor) *Store {
	return &Store{
		db: db,
		tx: tx,
		repo: func(db dbx.DBTX) metadata.Repository {
			return metadata.NewSQLiteRepository(db)
		},
	}
}

func (s *Store) fields(sess *Session) []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{keyUserID, &sess.UserID},
		{keyEmail, &sess.Email},
		{keyUsername, &sess.Username},
		{keyAccessToken, &sess.AccessToken},
		{keyRefreshToken, &sess.RefreshToken},
	}
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	return s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		for _, f := range s.fields(sess) {
			if err := repo.Set(ctx, f.key, []byte(*f.val)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the stored session or ErrNoSession.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	repo := s.repo(s.db)
	sess := &Session{}
	for _, f := range s.fields(sess) {
		v, err := repo.Get(ctx, f.key)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*f.val = string(v)
	}
	if sess.AccessToken == "" && sess.RefreshToken == "" {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Clear forgets the stored session.
func (s *Store) Clear(ctx context.Context) error {
	return s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		for _, f := range s.fields(&Session{}) {
			if err := repo.Delete(ctx, f.key); err != nil {
				return err
			}
		}
		return nil
	})
}
