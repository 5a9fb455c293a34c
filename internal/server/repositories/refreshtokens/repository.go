// Package refreshtokens declares the server-side repository contract for
// the refresh token ledger. Only bcrypt digests of the opaque secrets are
// stored, so lookups by secret are done by the caller over a listing.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
)

// Repository defines operations for issuing, listing, and revoking refresh tokens.
type Repository interface {
	// Create stores a new record for userID holding tokenHash.
	Create(ctx context.Context, userID string, tokenHash string, createdAt, expiresAt time.Time) (*models.RefreshToken, error)
	// ListActive returns every non-revoked record, expired ones included.
	ListActive(ctx context.Context) ([]*models.RefreshToken, error)
	// ListActiveByUser is ListActive restricted to one owner.
	ListActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	// Delete removes the record with the given id and reports how many rows went away.
	Delete(ctx context.Context, id string) (int64, error)
	// DeleteByUser removes all records owned by userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	// DeleteStale removes revoked records and those expired before now.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}
