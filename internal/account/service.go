package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	Phone     *string
	Role      string // empty means RoleUser
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Role      *string
	IsActive  *bool
}

// Service defines business logic related to accounts.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	// Login accepts either the username or the email as login.
	Login(ctx context.Context, login, password string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	List(ctx context.Context, filter Filter) ([]*Account, int, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Account, error)
	// Delete removes the account together with its reservations.
	Delete(ctx context.Context, id int64) error
}

// Invalidator drops cached data derived from reservations.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

type service struct {
	st     store.Store
	hasher auth.PasswordHasher
	cache  Invalidator
	log    *zap.Logger

	minPasswordLength int
}

// Option configures the account service.
type Option func(*service)

// WithInvalidator registers a cache flushed after cascading deletes.
func WithInvalidator(inv Invalidator) Option {
	return func(s *service) { s.cache = inv }
}

// NewService creates a new account Service.
func NewService(st store.Store, hasher auth.PasswordHasher, log *zap.Logger, opts ...Option) Service {
	s := &service{
		st:                st,
		hasher:            hasher,
		log:               log.Named("account"),
		minPasswordLength: 8,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	email := normalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return nil, ErrEmailRequired
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, ErrInvalidRole
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    trimmed(req.FirstName),
		LastName:     trimmed(req.LastName),
		Phone:        trimmed(req.Phone),
		Role:         role,
		IsActive:     true,
	}

	err = store.Do(ctx, s.st, func(sess store.Session) error {
		return NewRepository(sess).Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) Login(ctx context.Context, login, password string) (*Account, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var a *Account
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		repo := NewRepository(sess)
		var err error
		if strings.Contains(login, "@") {
			a, err = repo.GetByEmail(ctx, normalizeEmail(login))
		} else {
			a, err = repo.GetByUsername(ctx, login)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	// Compare password hash.
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.log.Warn("password check failed", zap.Int64("account_id", a.ID), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}
	if !a.IsActive {
		return nil, ErrInactiveAccount
	}

	if s.hasher.NeedsRehash(a.PasswordHash) {
		s.rehash(ctx, a, password)
	}
	return a, nil
}

// rehash upgrades a stored hash to the current cost. Failures only cost a
// retry on the next login.
func (s *service) rehash(ctx context.Context, a *Account, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = store.Do(ctx, s.st, func(sess store.Session) error {
			return NewRepository(sess).Update(ctx, a.ID, store.Record{"password_hash": hash})
		})
	}
	if err != nil {
		s.log.Warn("failed to rehash password", zap.Int64("account_id", a.ID), zap.Error(err))
		return
	}
	a.PasswordHash = hash
}

func (s *service) GetByID(ctx context.Context, id int64) (*Account, error) {
	var a *Account
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		a, err = NewRepository(sess).GetByID(ctx, id)
		return err
	})
	return a, err
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Account, int, error) {
	var (
		items []*Account
		total int
	)
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		items, total, err = NewRepository(sess).List(ctx, filter)
		return err
	})
	return items, total, err
}

func (s *service) Update(ctx context.Context, id int64, req UpdateRequest) (*Account, error) {
	patch := store.Record{}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if !strings.Contains(email, "@") {
			return nil, ErrEmailRequired
		}
		patch["email"] = email
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		patch["password_hash"] = hash
	}
	if req.FirstName != nil {
		patch["first_name"] = trimmed(req.FirstName)
	}
	if req.LastName != nil {
		patch["last_name"] = trimmed(req.LastName)
	}
	if req.Phone != nil {
		patch["phone"] = trimmed(req.Phone)
	}
	if req.Role != nil {
		if *req.Role != RoleUser && *req.Role != RoleAdmin {
			return nil, ErrInvalidRole
		}
		patch["role"] = *req.Role
	}
	if req.IsActive != nil {
		patch["is_active"] = *req.IsActive
	}
	if len(patch) == 0 {
		return nil, ErrEmptyUpdate
	}

	var a *Account
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		repo := NewRepository(sess)
		if err := repo.Update(ctx, id, patch); err != nil {
			return err
		}
		var err error
		a, err = repo.GetByID(ctx, id)
		return err
	})
	return a, err
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		return NewRepository(sess).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.log.Warn("failed to flush schedule cache", zap.Int64("account_id", id), zap.Error(err))
		}
	}
	return nil
}

// normalizeEmail trims spaces and lowercases the email.
// hashPassword enforces the length limits and hashes password.
func (s *service) hashPassword(password string) (string, error) {
	if len(password) < s.minPasswordLength {
		return "", ErrPasswordTooShort.WithDetails(fmt.Sprintf("password must be at least %d characters", s.minPasswordLength))
	}
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong.WithDetails(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// trimmed returns nil for nil or blank input.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
