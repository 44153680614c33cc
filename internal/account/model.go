package account

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "account not found")
	ErrUsernameTaken      = apperror.New(http.StatusConflict, "username already taken")
	ErrEmailAlreadyUsed   = apperror.New(http.StatusConflict, "email already used")
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = apperror.New(http.StatusForbidden, "account is inactive")
	ErrUsernameRequired   = apperror.New(http.StatusBadRequest, "username is required")
	ErrEmailRequired      = apperror.New(http.StatusBadRequest, "a valid email is required")
	ErrPasswordTooShort   = apperror.New(http.StatusBadRequest, "password is too short")
	ErrPasswordTooLong    = apperror.New(http.StatusBadRequest, "password is too long")
	ErrInvalidRole        = apperror.New(http.StatusBadRequest, "invalid role")
	ErrEmptyUpdate        = apperror.New(http.StatusBadRequest, "no fields to update")
)

const (
	RoleUser  = "user"
	RoleAdmin = auth.RoleAdmin
)

// Account is a person who can log in and hold reservations.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	Phone        *string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Filter defines filter options for listing accounts.
type Filter struct {
	IsActive *bool
	Role     string

	Page     int
	PageSize int
}

// Schema is the accounts collection.
var Schema = &store.Schema{
	Name: "accounts",
	Fields: append([]store.Field{
		store.ID(),
		{Name: "username", Type: store.TypeText, Size: 50, NotNull: true, Unique: true},
		{Name: "email", Type: store.TypeText, Size: 100, NotNull: true, Unique: true},
		{Name: "password_hash", Type: store.TypeText, Size: 255, NotNull: true},
		{Name: "first_name", Type: store.TypeText, Size: 50},
		{Name: "last_name", Type: store.TypeText, Size: 50},
		{Name: "phone", Type: store.TypeText, Size: 20},
		{Name: "role", Type: store.TypeText, Size: 20, NotNull: true, Default: RoleUser, Enum: []string{RoleUser, RoleAdmin}},
		{Name: "is_active", Type: store.TypeBool, NotNull: true, Default: true},
	}, store.Timestamps()...),
}

func fromRecord(r store.Record) *Account {
	return &Account{
		ID:           r.Int64(store.IDField),
		Username:     r.String("username"),
		Email:        r.String("email"),
		PasswordHash: r.String("password_hash"),
		FirstName:    r.StringPtr("first_name"),
		LastName:     r.StringPtr("last_name"),
		Phone:        r.StringPtr("phone"),
		Role:         r.String("role"),
		IsActive:     r.Bool("is_active"),
		CreatedAt:    r.Time(store.CreatedAtField),
		UpdatedAt:    r.Time(store.UpdatedAtField),
	}
}

func (a *Account) record() store.Record {
	return store.Record{
		"username":      a.Username,
		"email":         a.Email,
		"password_hash": a.PasswordHash,
		"first_name":    a.FirstName,
		"last_name":     a.LastName,
		"phone":         a.Phone,
		"role":          a.Role,
		"is_active":     a.IsActive,
	}
}
