// Package passwordresets stores single-use password reset records.
package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, tokenHash string, createdAt, expiresAt time.Time) (*models.PasswordReset, error)
	// ListUnused returns every record not yet used, newest first.
	ListUnused(ctx context.Context) ([]*models.PasswordReset, error)
	// MarkUsed flips used on an unused record and reports how many rows changed.
	MarkUsed(ctx context.Context, id string) (int64, error)
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}
