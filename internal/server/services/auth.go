// Package services contains server-side business logic. AuthService runs
// the account and session lifecycle: registration, login, refresh token
// rotation, logout and the three password flows.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/dmitrijs2005/trackkeeper/internal/server/config"
	"github.com/dmitrijs2005/trackkeeper/internal/server/hasher"
	"github.com/dmitrijs2005/trackkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trackkeeper/internal/server/throttle"
)

// Caller-visible success messages.
const (
	MsgLoggedOut       = "logged out successfully"
	MsgResetRequested  = "if an account with that email exists, a reset link has been sent"
	MsgPasswordReset   = "password has been reset"
	MsgPasswordChanged = "password changed successfully"
)

const (
	secretSize  = 32
	mailTimeout = 30 * time.Second
)

// Hasher is the one-way hash used for passwords and opaque secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) bool
}

// TokenIssuer mints and verifies access tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// AuthResult is returned by every operation that opens a session. The
// refresh token is the plaintext secret and is disclosed only here.
type AuthResult struct {
	User         models.PublicUser
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	UserName        string
	Email           string
	Password        string
	PasswordConfirm string
	Provider        models.Provider
}

// AuthDeps are the collaborators AuthService drives. Limiter and Logger may
// be nil.
type AuthDeps struct {
	Hasher  Hasher
	Issuer  TokenIssuer
	Mailer  mailer.Mailer
	Limiter throttle.Limiter
	Logger  logging.Logger
}

// AuthService holds no per-request state; it is safe for concurrent use.
type AuthService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager

	hasher  Hasher
	issuer  TokenIssuer
	mailer  mailer.Mailer
	limiter throttle.Limiter
	logger  logging.Logger

	refreshTokenValidityDuration  time.Duration
	passwordResetValidityDuration time.Duration

	now    func() time.Time
	mailWG sync.WaitGroup
}

// NewAuthService builds the service. db serves single-statement work, tx
// runs the multi-record updates.
func NewAuthService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, cfg *config.Config, deps AuthDeps) *AuthService {
	s := &AuthService{
		db:                            db,
		tx:                            tx,
		repomanager:                   m,
		hasher:                        deps.Hasher,
		issuer:                        deps.Issuer,
		mailer:                        deps.Mailer,
		limiter:                       deps.Limiter,
		logger:                        deps.Logger,
		refreshTokenValidityDuration:  cfg.RefreshTokenValidityDuration,
		passwordResetValidityDuration: cfg.PasswordResetValidityDuration,
		now:                           time.Now,
	}
	if s.limiter == nil {
		s.limiter = throttle.Noop{}
	}
	if s.logger == nil {
		s.logger = logging.Nop{}
	}
	s.logger = s.logger.With("module", "auth")
	return s
}

var (
	errRefreshConsumed = errors.New("refresh token already consumed")
	errResetConsumed   = errors.New("reset token already consumed")
)

// Register creates the account and opens its first session. The user row
// and the refresh record commit together.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	log := s.logger.With("op", "register")

	if in.Password != in.PasswordConfirm {
		return nil, common.NewError(common.ErrValidation, "passwords do not match")
	}

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, common.NewError(common.ErrValidation, "email is required")
	}

	provider := in.Provider
	if provider == "" {
		provider = models.ProviderEmail
	}
	if !provider.Valid() {
		return nil, common.NewError(common.ErrValidation, "unknown provider")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.passwordError(ctx, log, common.ErrValidation, err)
	}

	secret, digest, err := s.mintSecret()
	if err != nil {
		log.Error(ctx, "mint refresh token", "error", err)
		return nil, common.Internal()
	}

	user := &models.User{
		UserName:     strings.TrimSpace(in.UserName),
		Email:        email,
		PasswordHash: passwordHash,
		Provider:     provider,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.storeRefresh(ctx, tx, user.ID, digest)
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewError(common.ErrConflict, "user already exists")
		}
		log.Error(ctx, "create user", "error", err)
		return nil, common.Internal()
	}

	access, err := s.issuer.Issue(user.ID)
	if err != nil {
		log.Error(ctx, "issue access token", "error", err)
		return nil, common.Internal()
	}

	log.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user.Public(), AccessToken: access, RefreshToken: secret}, nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := s.logger.With("op", "login")

	users := s.repomanager.Users(s.db)
	user, err := users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrInvalidCredentials, "invalid credentials")
		}
		log.Error(ctx, "get user", "error", err)
		return nil, common.Internal()
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, common.NewError(common.ErrInvalidCredentials, "invalid credentials")
	}

	now := s.now()
	if err := users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Error(ctx, "update last login", "user_id", user.ID, "error", err)
		return nil, common.Internal()
	}
	user.LastLogin = &now

	result, err := s.openSession(ctx, user)
	if err != nil {
		log.Error(ctx, "open session", "user_id", user.ID, "error", err)
		return nil, common.Internal()
	}
	return result, nil
}

// Refresh redeems a refresh secret exactly once and returns a new pair.
// The old record is gone even if the caller never receives the response.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	log := s.logger.With("op", "refresh")

	if refreshToken == "" {
		return nil, common.NewError(common.ErrUnauthorized, "missing refresh token")
	}

	records, err := s.repomanager.RefreshTokens(s.db).ListActive(ctx)
	if err != nil {
		log.Error(ctx, "list refresh tokens", "error", err)
		return nil, common.Internal()
	}

	match := s.matchRefresh(records, refreshToken)
	if match == nil || match.Expired(s.now()) {
		return nil, common.NewError(common.ErrUnauthorized, "invalid or expired refresh token")
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, match.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, "user not found")
		}
		log.Error(ctx, "get user", "error", err)
		return nil, common.Internal()
	}

	secret, digest, err := s.mintSecret()
	if err != nil {
		log.Error(ctx, "mint refresh token", "error", err)
		return nil, common.Internal()
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.RefreshTokens(tx).Delete(ctx, match.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return errRefreshConsumed
		}
		return s.storeRefresh(ctx, tx, user.ID, digest)
	})
	if err != nil {
		if errors.Is(err, errRefreshConsumed) {
			log.Warn(ctx, "refresh token redeemed concurrently", "user_id", user.ID)
			return nil, common.NewError(common.ErrUnauthorized, "invalid or expired refresh token")
		}
		log.Error(ctx, "rotate refresh token", "user_id", user.ID, "error", err)
		return nil, common.Internal()
	}

	access, err := s.issuer.Issue(user.ID)
	if err != nil {
		log.Error(ctx, "issue access token", "error", err)
		return nil, common.Internal()
	}

	return &AuthResult{User: user.Public(), AccessToken: access, RefreshToken: secret}, nil
}

// Logout ends one session when refreshToken is given and every session of
// the user otherwise.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) (string, error) {
	log := s.logger.With("op", "logout")
	repo := s.repomanager.RefreshTokens(s.db)

	if refreshToken == "" {
		n, err := repo.DeleteByUser(ctx, userID)
		if err != nil {
			log.Error(ctx, "delete user refresh tokens", "user_id", userID, "error", err)
			return "", common.Internal()
		}
		log.Info(ctx, "logged out everywhere", "user_id", userID, "sessions", n)
		return MsgLoggedOut, nil
	}

	records, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		log.Error(ctx, "list refresh tokens", "user_id", userID, "error", err)
		return "", common.Internal()
	}

	match := s.matchRefresh(records, refreshToken)
	if match == nil || match.Expired(s.now()) {
		return "", common.NewError(common.ErrBadRequest, "invalid or expired refresh token")
	}

	n, err := repo.Delete(ctx, match.ID)
	if err != nil {
		log.Error(ctx, "delete refresh token", "user_id", userID, "error", err)
		return "", common.Internal()
	}
	// A concurrent refresh or logout consumed the token first.
	if n != 1 {
		return "", common.NewError(common.ErrBadRequest, "invalid or expired refresh token")
	}

	return MsgLoggedOut, nil
}

// ForgotPassword answers the same way whether or not the account exists.
// The reset mail goes out in the background and its failure is only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	log := s.logger.With("op", "forgot_password")

	email = normalizeEmail(email)
	if email == "" {
		return "", common.NewError(common.ErrBadRequest, "email is required")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return MsgResetRequested, nil
		}
		log.Error(ctx, "get user", "error", err)
		return "", common.Internal()
	}

	// Limiter errors already allow the request.
	if ok, _ := s.limiter.Allow(ctx, email); !ok {
		log.Info(ctx, "reset request throttled", "user_id", user.ID)
		return MsgResetRequested, nil
	}

	secret, digest, err := s.mintSecret()
	if err != nil {
		log.Error(ctx, "mint reset token", "error", err)
		s.releaseCooldown(ctx, log, email)
		return "", common.Internal()
	}

	now := s.now()
	_, err = s.repomanager.PasswordResets(s.db).Create(ctx, user.ID, digest, now, now.Add(s.passwordResetValidityDuration))
	if err != nil {
		log.Error(ctx, "create reset record", "user_id", user.ID, "error", err)
		s.releaseCooldown(ctx, log, email)
		return "", common.Internal()
	}

	s.sendReset(ctx, log, user.Email, secret)
	return MsgResetRequested, nil
}

// releaseCooldown gives the cooldown back when no reset was issued, so the
// user can retry at once.
func (s *AuthService) releaseCooldown(ctx context.Context, log logging.Logger, email string) {
	if err := s.limiter.Release(ctx, email); err != nil {
		log.Warn(ctx, "release reset cooldown", "error", err)
	}
}

// ResetPassword consumes a reset token. The newest unexpired record whose
// hash matches wins. Setting the password, consuming the record and
// dropping every session of the user commit together.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	log := s.logger.With("op", "reset_password")
	invalid := common.NewError(common.ErrBadRequest, "invalid or expired reset token")

	if token == "" {
		return "", invalid
	}

	records, err := s.repomanager.PasswordResets(s.db).ListUnused(ctx)
	if err != nil {
		log.Error(ctx, "list reset records", "error", err)
		return "", common.Internal()
	}

	now := s.now()
	var match *models.PasswordReset
	for _, r := range records {
		if r.Expired(now) {
			continue
		}
		if s.hasher.Compare(token, r.TokenHash) {
			match = r
			break
		}
	}
	if match == nil {
		return "", invalid
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", s.passwordError(ctx, log, common.ErrBadRequest, err)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, match.UserID, passwordHash); err != nil {
			return err
		}
		n, err := s.repomanager.PasswordResets(tx).MarkUsed(ctx, match.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return errResetConsumed
		}
		_, err = s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, match.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, errResetConsumed) {
			return "", invalid
		}
		log.Error(ctx, "reset password", "user_id", match.UserID, "error", err)
		return "", common.Internal()
	}

	log.Info(ctx, "password reset", "user_id", match.UserID)
	return MsgPasswordReset, nil
}

// ChangePassword replaces the password of an authenticated user and drops
// all of their sessions in the same transaction. The "same password" check
// is a literal comparison of the two plaintexts.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, error) {
	log := s.logger.With("op", "change_password")

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		log.Error(ctx, "get user", "user_id", userID, "error", err)
		return "", common.Internal()
	}
	if user == nil || user.PasswordHash == "" {
		return "", common.NewError(common.ErrUnauthorized, "invalid credentials")
	}

	if !s.hasher.Compare(currentPassword, user.PasswordHash) {
		return "", common.NewError(common.ErrBadRequest, "current password is incorrect")
	}
	if newPassword == currentPassword {
		return "", common.NewError(common.ErrBadRequest, "new password is already the current password")
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", s.passwordError(ctx, log, common.ErrBadRequest, err)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, passwordHash); err != nil {
			return err
		}
		_, err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, user.ID)
		return err
	})
	if err != nil {
		log.Error(ctx, "change password", "user_id", user.ID, "error", err)
		return "", common.Internal()
	}

	log.Info(ctx, "password changed", "user_id", user.ID)
	return MsgPasswordChanged, nil
}

// Authenticate resolves an access token to the id of an existing user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	userID, err := s.issuer.Verify(accessToken)
	if err != nil {
		return "", common.NewError(common.ErrUnauthorized, "invalid token")
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.NewError(common.ErrUnauthorized, "invalid token")
		}
		s.logger.Error(ctx, "get user", "op", "authenticate", "error", err)
		return "", common.Internal()
	}

	return userID, nil
}

// Wait blocks until background reset mails have been handed off.
func (s *AuthService) Wait() {
	s.mailWG.Wait()
}

// --- helpers below ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mintSecret returns a fresh opaque secret and its digest. 32 random bytes
// hex-encode to 64 characters, inside bcrypt's input limit.
func (s *AuthService) mintSecret() (string, string, error) {
	secret, err := common.MakeRandHexString(secretSize)
	if err != nil {
		return "", "", err
	}
	digest, err := s.hasher.Hash(secret)
	if err != nil {
		return "", "", err
	}
	return secret, digest, nil
}

func (s *AuthService) storeRefresh(ctx context.Context, db dbx.DBTX, userID, digest string) error {
	now := s.now()
	_, err := s.repomanager.RefreshTokens(db).Create(ctx, userID, digest, now, now.Add(s.refreshTokenValidityDuration))
	return err
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	secret, digest, err := s.mintSecret()
	if err != nil {
		return nil, err
	}
	if err := s.storeRefresh(ctx, s.db, user.ID, digest); err != nil {
		return nil, err
	}
	access, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), AccessToken: access, RefreshToken: secret}, nil
}

// matchRefresh compares secret against every record until the first match.
// The scan is linear in the number of records and is never cut short by
// cancellation.
func (s *AuthService) matchRefresh(records []*models.RefreshToken, secret string) *models.RefreshToken {
	for _, r := range records {
		if r.Revoked {
			continue
		}
		if s.hasher.Compare(secret, r.TokenHash) {
			return r
		}
	}
	return nil
}

// passwordError classifies a failure to hash a new password.
func (s *AuthService) passwordError(ctx context.Context, log logging.Logger, kind error, err error) error {
	switch {
	case errors.Is(err, hasher.ErrEmptySecret):
		return common.NewError(kind, "password is required")
	case errors.Is(err, hasher.ErrSecretTooLong):
		return common.NewError(kind, "password is too long")
	default:
		log.Error(ctx, "hash password", "error", err)
		return common.Internal()
	}
}

func (s *AuthService) sendReset(ctx context.Context, log logging.Logger, to, token string) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer cancel()

		if err := s.mailer.SendPasswordReset(ctx, to, token); err != nil {
			log.Error(ctx, "send reset mail", "error", err)
		}
	}()
}
