package http

import (
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/request"
)

// ListAccountsRequest defines query parameters for listing accounts.
type ListAccountsRequest struct {
	request.ListParams
	IsActive *bool  `form:"is_active"`
	Role     string `form:"role" binding:"omitempty,oneof=user admin"`
}

// AccountResponse is the shape of account data returned in API responses.
type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Phone     *string   `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccountResponse converts a domain account to AccountResponse.
func NewAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
		Role:      a.Role,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// RegisterRequest defines the payload for account registration.
type RegisterRequest struct {
	Username  string  `json:"username" binding:"required,max=50"`
	Email     string  `json:"email" binding:"required,email,max=100"`
	Password  string  `json:"password" binding:"required,min=8,max=72"`
	FirstName *string `json:"first_name" binding:"omitempty,max=50"`
	LastName  *string `json:"last_name" binding:"omitempty,max=50"`
	Phone     *string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest accepts a username or an email as login.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateAccountRequest defines fields allowed to be updated via PATCH /accounts/:id.
// Use pointers to distinguish between "field not sent" and "field sent as false/empty".
type UpdateAccountRequest struct {
	Email     *string `json:"email" binding:"omitempty,email,max=100"`
	Password  *string `json:"password" binding:"omitempty,min=8,max=72"`
	FirstName *string `json:"first_name" binding:"omitempty,max=50"`
	LastName  *string `json:"last_name" binding:"omitempty,max=50"`
	Phone     *string `json:"phone" binding:"omitempty,max=20"`
	Role      *string `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive  *bool   `json:"is_active"`
}

// privileged reports whether the body touches admin-only fields.
func (r *UpdateAccountRequest) privileged() bool {
	return r.Role != nil || r.IsActive != nil
}

// LoginResponse returns the token and account info.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	Account     AccountResponse `json:"account"`
}

// MeResponse returns the current account info.
type MeResponse struct {
	Account AccountResponse `json:"account"`
}
