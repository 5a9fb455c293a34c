package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/trackkeeper/internal/api"
	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/dmitrijs2005/trackkeeper/internal/server/models"
	"github.com/dmitrijs2005/trackkeeper/internal/server/services"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handler struct {
	auth AuthService
}

var _ api.AuthServiceServer = (*handler)(nil)

func (h *handler) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	res, err := h.auth.Register(ctx, services.RegisterInput{
		UserName:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConf,
		Provider:        models.Provider(req.Provider),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (h *handler) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	res, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (h *handler) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.AuthResponse, error) {
	res, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (h *handler) Logout(ctx context.Context, req *api.LogoutRequest) (*api.MessageResponse, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.NewError(common.ErrUnauthorized, "missing token"))
	}
	return message(h.auth.Logout(ctx, userID, req.RefreshToken))
}

func (h *handler) ForgotPassword(ctx context.Context, req *api.ForgotPasswordRequest) (*api.MessageResponse, error) {
	return message(h.auth.ForgotPassword(ctx, req.Email))
}

func (h *handler) ResetPassword(ctx context.Context, req *api.ResetPasswordRequest) (*api.MessageResponse, error) {
	return message(h.auth.ResetPassword(ctx, req.Token, req.NewPassword))
}

func (h *handler) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.MessageResponse, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.NewError(common.ErrUnauthorized, "missing token"))
	}
	return message(h.auth.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword))
}

func message(msg string, err error) (*api.MessageResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.MessageResponse{Message: msg}, nil
}

func toAuthResponse(res *services.AuthResult) *api.AuthResponse {
	u := res.User
	return &api.AuthResponse{
		User: api.User{
			ID:            u.ID,
			Username:      u.UserName,
			Email:         u.Email,
			Provider:      string(u.Provider),
			EmailVerified: u.EmailVerified,
			CreatedAt:     u.CreatedAt,
			LastLogin:     u.LastLogin,
		},
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
}

// toStatus maps a classified error to a gRPC status with an ErrorInfo
// reason. Unclassified errors become a bare internal error.
func toStatus(err error) error {
	msg := common.Internal().Message
	var e *common.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	code, reason := codes.Internal, api.ReasonInternal
	switch common.KindOf(err) {
	case common.ErrValidation:
		code, reason = codes.InvalidArgument, api.ReasonValidation
	case common.ErrBadRequest:
		code, reason = codes.InvalidArgument, api.ReasonBadRequest
	case common.ErrConflict:
		code, reason = codes.AlreadyExists, api.ReasonConflict
	case common.ErrInvalidCredentials:
		code, reason = codes.Unauthenticated, api.ReasonInvalidCredentials
	case common.ErrUnauthorized:
		code, reason = codes.Unauthenticated, api.ReasonUnauthorized
	default:
		msg = common.Internal().Message
	}

	st := status.New(code, msg)
	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: api.ErrorDomain})
	if detailErr != nil {
		return st.Err()
	}
	return withInfo.Err()
}
