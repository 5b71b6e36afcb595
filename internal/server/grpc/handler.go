package grpc

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error) {
	u, err := s.auth.Register(ctx, services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.log(ctx).Info(ctx, "Registered", "user_id", u.ID)
	return toUserResponse(u), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	pair, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toTokenResponse(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenResponse, error) {
	pair, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toTokenResponse(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*MessageResponse, error) {
	access, _ := bearerFromMetadata(ctx)
	s.auth.Logout(ctx, access, req.RefreshToken)
	return &MessageResponse{Message: "logged out"}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *Empty) (*UserResponse, error) {
	return s.GetMe(ctx, nil)
}

func (s *GRPCServer) GetMe(ctx context.Context, _ *Empty) (*UserResponse, error) {
	u, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

func (s *GRPCServer) UpdateMe(ctx context.Context, req *UpdateMeRequest) (*UserResponse, error) {
	current, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.UpdateMe(ctx, current, models.UserPatch{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toUserResponse(u), nil
}

func (s *GRPCServer) GetUser(ctx context.Context, req *UserIDRequest) (*UserResponse, error) {
	u, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toUserResponse(u), nil
}

func (s *GRPCServer) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UserResponse, error) {
	u, err := s.users.Update(ctx, req.UserID, models.UserPatch{
		Email:       req.Email,
		FullName:    req.FullName,
		Password:    req.Password,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
		IsVerified:  req.IsVerified,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toUserResponse(u), nil
}

func (s *GRPCServer) DeleteUser(ctx context.Context, req *UserIDRequest) (*MessageResponse, error) {
	if err := s.users.Delete(ctx, req.UserID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &MessageResponse{Message: "user deleted"}, nil
}

func (s *GRPCServer) ListUsers(ctx context.Context, req *ListUsersRequest) (*UserPageResponse, error) {
	page, err := s.users.List(ctx, req.Skip, req.Limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toPageResponse(page), nil
}

func (s *GRPCServer) LogoutAll(ctx context.Context, _ *Empty) (*LogoutAllResponse, error) {
	current, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.auth.LogoutAll(ctx, current.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &LogoutAllResponse{Revoked: n}, nil
}

// caller returns the user resolved by accessTokenInterceptor.
func (s *GRPCServer) caller(ctx context.Context) (*models.User, error) {
	u, ok := currentUser(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return u, nil
}

func toTokenResponse(p *services.TokenPair) *TokenResponse {
	return &TokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: p.TokenType}
}
