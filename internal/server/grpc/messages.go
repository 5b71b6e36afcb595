package grpc

import (
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// RegisterRequest creates a regular account.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

// LoginRequest accepts either an email address or a username in Username.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest carries the refresh token to revoke. The access token, if
// any, travels in the authorization metadata.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenResponse is returned by Login and Refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// Empty is the request of methods that take no arguments.
type Empty struct{}

// UserResponse is the public view of a user. The password hash is never included.
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	IsVerified  bool      `json:"is_verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateMeRequest is a self-service patch. Absent fields are left unchanged.
type UpdateMeRequest struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UserIDRequest addresses a single user by id.
type UserIDRequest struct {
	UserID string `json:"user_id"`
}

// UpdateUserRequest is a superuser patch that may also change account flags.
type UpdateUserRequest struct {
	UserID      string  `json:"user_id"`
	Email       *string `json:"email,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
}

// ListUsersRequest selects a page of users. A zero Limit uses the default page size.
type ListUsersRequest struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// UserPageResponse is one page of users, newest first.
type UserPageResponse struct {
	Items []*UserResponse `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Pages int             `json:"pages"`
}

// LogoutAllResponse reports how many refresh tokens were revoked.
type LogoutAllResponse struct {
	Revoked int `json:"revoked"`
}

func toUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toPageResponse(p *models.Page) *UserPageResponse {
	items := make([]*UserResponse, 0, len(p.Items))
	for _, u := range p.Items {
		items = append(items, toUserResponse(u))
	}
	return &UserPageResponse{Items: items, Total: p.Total, Page: p.Page, Size: p.Size, Pages: p.Pages}
}
