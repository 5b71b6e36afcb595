// Package grpc exposes the authentication and user services over gRPC.
// Messages are plain Go structs encoded with a JSON codec.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Authenticator is the part of services.AuthService the transport needs.
type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
	LogoutAll(ctx context.Context, userID string) (int, error)
	Identify(ctx context.Context, accessToken string) (*models.User, error)
}

// UserManager is the part of services.UserService the transport needs.
type UserManager interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateMe(ctx context.Context, current *models.User, patch models.UserPatch) (*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, skip, limit int) (*models.Page, error)
}

type GRPCServer struct {
	address string
	auth    Authenticator
	users   UserManager
	health  *health.Server
	logger  logging.Logger
}

// NewGRPCServer wires the transport. Every service reports NOT_SERVING on
// the standard health service until SetServing is called.
func NewGRPCServer(address string, l logging.Logger, auth Authenticator, users UserManager) *GRPCServer {
	s := &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		auth:    auth,
		users:   users,
		health:  health.NewServer(),
	}
	s.SetServing(false)
	return s
}

// SetServing updates the health status of the server as a whole and of
// each registered service.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	for _, name := range []string{"", AuthServiceName, UserServiceName} {
		s.health.SetServingStatus(name, st)
	}
}

// NewServer builds a grpc.Server with both services and the interceptor
// chain registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&authServiceDesc, s)
	srv.RegisterService(&userServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run serves on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
