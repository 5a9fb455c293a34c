package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "user_id", "token_hash", "created_at", "expires_at", "revoked"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	exp := now.Add(720 * time.Hour)
	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`

	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "u1", "digest", now, exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), "u1", "digest", now, exp)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, exp, got.ExpiresAt)
	assert.False(t, got.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "u1", "digest", time.Now(), time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id,\s*token_hash.*FROM\s+refresh_tokens\s+WHERE\s+NOT\s+revoked\s+ORDER\s+BY\s+created_at`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", "u1", "h1", now, now.Add(time.Hour), false).
			AddRow("t2", "u2", "h2", now, now.Add(-time.Hour), false))

	got, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "h2", got[1].TokenHash)
}

func TestListActiveByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens\s+WHERE\s+NOT\s+revoked\s+AND\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.ListActiveByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListActive_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).WillReturnError(errors.New("boom"))
	_, err := repo.ListActive(context.Background())
	assert.ErrorContains(t, err, "db error: boom")

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", "u1", "h1", time.Now(), time.Now(), false).
			RowError(0, errors.New("row broke")))
	_, err = repo.ListActive(context.Background())
	assert.ErrorContains(t, err, "row broke")
}

func TestDeletes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+revoked\s+OR\s+expires_at\s*<\s*\$1`).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.Delete(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.Delete(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = repo.DeleteByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.DeleteStale(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens`).WillReturnError(errors.New("db err"))

	_, err := repo.Delete(context.Background(), "t1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
