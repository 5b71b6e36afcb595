package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	userKey      ctxKey = "user"
	requestIDKey ctxKey = "requestID"
)

// publicMethods are served without an access token.
var publicMethods = map[string]bool{
	FullMethod(AuthServiceName, "Register"): true,
	FullMethod(AuthServiceName, "Login"):    true,
	FullMethod(AuthServiceName, "Refresh"):  true,
	FullMethod(AuthServiceName, "Logout"):   true,
	healthpb.Health_Check_FullMethodName:    true,
}

// superuserMethods additionally require the caller to be a superuser.
var superuserMethods = map[string]bool{
	FullMethod(UserServiceName, "GetUser"):    true,
	FullMethod(UserServiceName, "UpdateUser"): true,
	FullMethod(UserServiceName, "DeleteUser"): true,
	FullMethod(UserServiceName, "ListUsers"):  true,
}

func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := firstMetadata(ctx, common.RequestIDHeaderName)
	if id == "" {
		id = uuid.NewString()
	}
	ctx = context.WithValue(ctx, requestIDKey, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, id))

	start := time.Now()
	resp, err := handler(ctx, req)
	s.log(ctx).Info(ctx, "request handled",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token, ok := bearerFromMetadata(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.auth.Identify(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if superuserMethods[info.FullMethod] && !user.IsSuperuser {
		return nil, status.Error(codes.PermissionDenied, "not enough privileges")
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}

func currentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func (s *GRPCServer) log(ctx context.Context) logging.Logger {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

func bearerFromMetadata(ctx context.Context) (string, bool) {
	return common.BearerToken(firstMetadata(ctx, common.AuthorizationHeaderName))
}
