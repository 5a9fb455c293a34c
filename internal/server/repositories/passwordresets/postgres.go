package passwordresets

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, tokenHash string, createdAt, expiresAt time.Time) (*models.PasswordReset, error) {
	query := `
		INSERT INTO password_resets (id, user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	p := &models.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.TokenHash, p.CreatedAt, p.ExpiresAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) ListUnused(ctx context.Context) ([]*models.PasswordReset, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, used
		FROM password_resets
		WHERE NOT used
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PasswordReset
	for rows.Next() {
		p := &models.PasswordReset{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.TokenHash, &p.CreatedAt, &p.ExpiresAt, &p.Used); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// MarkUsed only touches a record that is still unused, so of two concurrent
// redemptions exactly one sees a row count of 1.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) (int64, error) {
	query := `
		UPDATE password_resets SET used = TRUE
		WHERE id = $1 AND NOT used
	`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM password_resets
		WHERE used OR expires_at < $1
	`
	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
