package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	AuthServiceName = "gatekeeper.v1.AuthService"
	UserServiceName = "gatekeeper.v1.UserService"
)

type authServiceServer interface {
	Register(context.Context, *RegisterRequest) (*UserResponse, error)
	Login(context.Context, *LoginRequest) (*TokenResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*MessageResponse, error)
	Me(context.Context, *Empty) (*UserResponse, error)
}

type userServiceServer interface {
	GetMe(context.Context, *Empty) (*UserResponse, error)
	UpdateMe(context.Context, *UpdateMeRequest) (*UserResponse, error)
	GetUser(context.Context, *UserIDRequest) (*UserResponse, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*UserResponse, error)
	DeleteUser(context.Context, *UserIDRequest) (*MessageResponse, error)
	ListUsers(context.Context, *ListUsersRequest) (*UserPageResponse, error)
	LogoutAll(context.Context, *Empty) (*LogoutAllResponse, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*authServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AuthServiceName, "Register", (*GRPCServer).Register),
		unary(AuthServiceName, "Login", (*GRPCServer).Login),
		unary(AuthServiceName, "Refresh", (*GRPCServer).Refresh),
		unary(AuthServiceName, "Logout", (*GRPCServer).Logout),
		unary(AuthServiceName, "Me", (*GRPCServer).Me),
	},
	Streams: []grpc.StreamDesc{},
}

var userServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*userServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(UserServiceName, "GetMe", (*GRPCServer).GetMe),
		unary(UserServiceName, "UpdateMe", (*GRPCServer).UpdateMe),
		unary(UserServiceName, "GetUser", (*GRPCServer).GetUser),
		unary(UserServiceName, "UpdateUser", (*GRPCServer).UpdateUser),
		unary(UserServiceName, "DeleteUser", (*GRPCServer).DeleteUser),
		unary(UserServiceName, "ListUsers", (*GRPCServer).ListUsers),
		unary(UserServiceName, "LogoutAll", (*GRPCServer).LogoutAll),
	},
	Streams: []grpc.StreamDesc{},
}

// FullMethod returns the gRPC method path, e.g. /gatekeeper.v1.AuthService/Login.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary adapts a typed handler to grpc.MethodDesc, decoding the request and
// running it through the server's interceptor chain.
func unary[Req, Resp any](service, method string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(service, method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
