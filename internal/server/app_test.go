package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/dmitrijs2005/trackkeeper/internal/server/config"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoManager struct {
	repomanager.RepositoryManager
	migrateErr error
	migrated   bool
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated = true
	return m.migrateErr
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresets.Repository {
	return passwordresets.NewPostgresRepository(db)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddrGRPC = "127.0.0.1:0"
	cfg.PruneInterval = 0
	return cfg
}

func TestNewApp_MigrationFailure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rm := &fakeRepoManager{migrateErr: errors.New("boom")}
	_, err = newApp(context.Background(), testConfig(), db, rm, logging.Nop{})
	assert.ErrorContains(t, err, "migrations error: boom")
	assert.True(t, rm.migrated)
}

func TestNewApp_UnknownMailer(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.Mailer = "pigeon"
	_, err = newApp(context.Background(), cfg, db, &fakeRepoManager{}, logging.Nop{})
	assert.ErrorContains(t, err, "mailer init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	app, err := newApp(context.Background(), testConfig(), db, &fakeRepoManager{}, logging.Nop{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
