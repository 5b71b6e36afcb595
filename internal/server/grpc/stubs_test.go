package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

var (
	aliceUser = &models.User{ID: "u-alice", Email: "alice@example.com", Username: "alice", IsActive: true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	rootUser = &models.User{ID: "u-root", Email: "root@example.com", Username: "root", IsActive: true, IsSuperuser: true}
)

// stubAuth resolves the access tokens "alice-token" and "root-token" and
// records the last Logout call.
type stubAuth struct {
	registerErr error
	loginErr    error
	refreshErr  error
	identifyErr error

	gotLogin       string
	logoutAccess   string
	logoutRefresh  string
	logoutAllUser  string
	registeredWith services.RegisterInput
}

func (a *stubAuth) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	a.registeredWith = in
	if a.registerErr != nil {
		return nil, a.registerErr
	}
	return &models.User{ID: "u-new", Email: in.Email, Username: in.Username, FullName: in.FullName, IsActive: true}, nil
}

func (a *stubAuth) Login(ctx context.Context, login, password string) (*services.TokenPair, error) {
	a.gotLogin = login
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: common.BearerTokenType}, nil
}

func (a *stubAuth) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	return &services.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: common.BearerTokenType}, nil
}

func (a *stubAuth) Logout(ctx context.Context, accessToken, refreshToken string) {
	a.logoutAccess, a.logoutRefresh = accessToken, refreshToken
}

func (a *stubAuth) LogoutAll(ctx context.Context, userID string) (int, error) {
	a.logoutAllUser = userID
	return 3, nil
}

func (a *stubAuth) Identify(ctx context.Context, accessToken string) (*models.User, error) {
	if a.identifyErr != nil {
		return nil, a.identifyErr
	}
	switch accessToken {
	case "alice-token":
		return aliceUser, nil
	case "root-token":
		return rootUser, nil
	}
	return nil, services.ErrInvalidToken
}

type stubUsers struct {
	err       error
	gotID     string
	gotPatch  models.UserPatch
	listSkip  int
	listLimit int
}

func (u *stubUsers) Get(ctx context.Context, id string) (*models.User, error) {
	u.gotID = id
	if u.err != nil {
		return nil, u.err
	}
	return aliceUser, nil
}

func (u *stubUsers) UpdateMe(ctx context.Context, current *models.User, patch models.UserPatch) (*models.User, error) {
	u.gotID, u.gotPatch = current.ID, patch
	if u.err != nil {
		return nil, u.err
	}
	updated := *current
	patch.ApplyTo(&updated)
	return &updated, nil
}

func (u *stubUsers) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	u.gotID, u.gotPatch = id, patch
	if u.err != nil {
		return nil, u.err
	}
	updated := *aliceUser
	patch.ApplyTo(&updated)
	return &updated, nil
}

func (u *stubUsers) Delete(ctx context.Context, id string) error {
	u.gotID = id
	return u.err
}

func (u *stubUsers) List(ctx context.Context, skip, limit int) (*models.Page, error) {
	u.listSkip, u.listLimit = skip, limit
	if u.err != nil {
		return nil, u.err
	}
	return models.NewPage([]*models.User{aliceUser, rootUser}, 2, skip, limit), nil
}
