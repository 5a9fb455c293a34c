package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/trackkeeper/internal/api"
	"github.com/dmitrijs2005/trackkeeper/internal/client/session"
	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// SessionStore is where the client keeps the signed-in user's tokens.
type SessionStore interface {
	Load(ctx context.Context) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Clear(ctx context.Context) error
}

// protectedMethods carry the access token.
var protectedMethods = map[string]bool{
	api.FullMethod(api.MethodLogout):         true,
	api.FullMethod(api.MethodChangePassword): true,
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	client api.AuthServiceClient
	store  SessionStore

	// refreshMu makes concurrent calls share one refresh instead of each
	// redeeming (and burning) the same refresh token.
	refreshMu sync.Mutex
}

// NewGRPCClient connects lazily to endpoint. Extra dial options are appended
// after the defaults.
func NewGRPCClient(endpoint string, store SessionStore, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{store: store}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewAuthServiceClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if !protectedMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	sess, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return ErrNotLoggedIn
	}
	if err != nil {
		return err
	}

	err = invoker(withAccessToken(ctx, sess.AccessToken), method, req, reply, cc, opts...)
	if !tokenRejected(err) || sess.RefreshToken == "" {
		return err
	}

	fresh, rerr := c.refresh(ctx, sess.RefreshToken)
	if rerr != nil {
		return err
	}

	// A logout naming the old refresh token must name its replacement.
	if lr, ok := req.(*api.LogoutRequest); ok && lr.RefreshToken == sess.RefreshToken {
		lr.RefreshToken = fresh.RefreshToken
	}
	return invoker(withAccessToken(ctx, fresh.AccessToken), method, req, reply, cc, opts...)
}

// tokenRejected reports whether the server refused the access token itself,
// as opposed to e.g. a wrong current password.
func tokenRejected(err error) bool {
	return status.Code(err) == codes.Unauthenticated && api.ReasonOf(err) == api.ReasonUnauthorized
}

// refresh redeems used for a new pair and stores it. If another call already
// rotated used, the stored session is returned as is.
func (c *GRPCClient) refresh(ctx context.Context, used string) (*session.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.RefreshToken != used {
		return sess, nil
	}

	resp, err := c.client.Refresh(ctx, &api.RefreshRequest{RefreshToken: used})
	if err != nil {
		if api.ReasonOf(err) == api.ReasonUnauthorized {
			// the refresh token is dead; so is the session
			_ = c.store.Clear(ctx)
		}
		return nil, mapError(err)
	}
	return c.saveSession(ctx, resp)
}

func (c *GRPCClient) saveSession(ctx context.Context, resp *api.AuthResponse) (*session.Session, error) {
	sess := &session.Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		Username:     resp.User.Username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Session returns the stored session, or ErrNotLoggedIn.
func (c *GRPCClient) Session(ctx context.Context) (*session.Session, error) {
	sess, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, ErrNotLoggedIn
	}
	return sess, err
}

// Register creates an account and signs in as it.
func (c *GRPCClient) Register(ctx context.Context, in *api.RegisterRequest) (*api.User, error) {
	resp, err := c.client.Register(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	if _, err := c.saveSession(ctx, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *GRPCClient) Login(ctx context.Context, email, password string) (*api.User, error) {
	resp, err := c.client.Login(ctx, &api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, mapError(err)
	}
	if _, err := c.saveSession(ctx, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Refresh rotates the stored token pair.
func (c *GRPCClient) Refresh(ctx context.Context) (*session.Session, error) {
	sess, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	return c.refresh(ctx, sess.RefreshToken)
}

// Logout ends the stored session on the server, or every session of the user
// when everywhere is set, and forgets it locally.
func (c *GRPCClient) Logout(ctx context.Context, everywhere bool) (string, error) {
	sess, err := c.Session(ctx)
	if err != nil {
		return "", err
	}

	req := &api.LogoutRequest{}
	if !everywhere {
		req.RefreshToken = sess.RefreshToken
	}

	resp, err := c.client.Logout(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) || api.ReasonOf(err) == api.ReasonBadRequest {
			_ = c.store.Clear(ctx)
		}
		return "", mapError(err)
	}
	if err := c.store.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	return resp.Message, nil
}

func (c *GRPCClient) ForgotPassword(ctx context.Context, email string) (string, error) {
	resp, err := c.client.ForgotPassword(ctx, &api.ForgotPasswordRequest{Email: email})
	if err != nil {
		return "", mapError(err)
	}
	return resp.Message, nil
}

func (c *GRPCClient) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	resp, err := c.client.ResetPassword(ctx, &api.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		return "", mapError(err)
	}
	return resp.Message, nil
}

// ChangePassword changes the signed-in user's password. The server ends every
// session of the user, so the local one is forgotten too.
func (c *GRPCClient) ChangePassword(ctx context.Context, current, newPassword string) (string, error) {
	resp, err := c.client.ChangePassword(ctx, &api.ChangePasswordRequest{CurrentPassword: current, NewPassword: newPassword})
	if err != nil {
		return "", mapError(err)
	}
	if err := c.store.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	return resp.Message, nil
}

// mapError turns a gRPC status into a *common.Error carrying the server's
// message, so callers can branch on the same kinds the server uses.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	}

	kind := common.ErrInternal
	switch api.ReasonOf(err) {
	case api.ReasonValidation:
		kind = common.ErrValidation
	case api.ReasonBadRequest:
		kind = common.ErrBadRequest
	case api.ReasonConflict:
		kind = common.ErrConflict
	case api.ReasonInvalidCredentials:
		kind = common.ErrInvalidCredentials
	case api.ReasonUnauthorized:
		kind = common.ErrUnauthorized
	}
	return common.NewError(kind, st.Message())
}
