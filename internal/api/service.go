package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "trackkeeper.auth.AuthService"

const (
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodRefresh        = "Refresh"
	MethodLogout         = "Logout"
	MethodForgotPassword = "ForgotPassword"
	MethodResetPassword  = "ResetPassword"
	MethodChangePassword = "ChangePassword"
)

// FullMethod returns the gRPC path of method, e.g. "/trackkeeper.auth.AuthService/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServiceServer is implemented by the server side of the service.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	Logout(context.Context, *LogoutRequest) (*MessageResponse, error)
	ForgotPassword(context.Context, *ForgotPasswordRequest) (*MessageResponse, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*MessageResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*MessageResponse, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unary adapts a typed server method to grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodRegister, Handler: unary(MethodRegister, AuthServiceServer.Register)},
		{MethodName: MethodLogin, Handler: unary(MethodLogin, AuthServiceServer.Login)},
		{MethodName: MethodRefresh, Handler: unary(MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: MethodLogout, Handler: unary(MethodLogout, AuthServiceServer.Logout)},
		{MethodName: MethodForgotPassword, Handler: unary(MethodForgotPassword, AuthServiceServer.ForgotPassword)},
		{MethodName: MethodResetPassword, Handler: unary(MethodResetPassword, AuthServiceServer.ResetPassword)},
		{MethodName: MethodChangePassword, Handler: unary(MethodChangePassword, AuthServiceServer.ChangePassword)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trackkeeper/auth",
}
