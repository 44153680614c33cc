package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
	"github.com/nekogravitycat/table-booking-backend/internal/store/memstore"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll(context.Context) error {
	c.calls++
	return nil
}

func newTestService(t *testing.T, opts ...Option) (Service, store.Store) {
	t.Helper()
	st := memstore.New(zaptest.NewLogger(t))
	require.NoError(t, store.Do(context.Background(), st, func(sess store.Session) error {
		return sess.DefineCollection(context.Background(), Schema)
	}))
	return NewService(st, auth.NewBcryptPasswordHasherWithCost(4), zaptest.NewLogger(t), opts...), st
}

func register(t *testing.T, svc Service, username, email string) *Account {
	t.Helper()
	a, err := svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: "password123",
	})
	require.NoError(t, err)
	return a
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	phone := " +7 900 000 "
	a, err := svc.Register(ctx, RegisterRequest{
		Username: "anna",
		Email:    "  Anna@Example.COM ",
		Password: "password123",
		Phone:    &phone,
	})
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.Equal(t, "anna@example.com", a.Email)
	assert.Equal(t, RoleUser, a.Role)
	assert.True(t, a.IsActive)
	require.NotNil(t, a.Phone)
	assert.Equal(t, "+7 900 000", *a.Phone)
	assert.Nil(t, a.FirstName)
	assert.NotEqual(t, "password123", a.PasswordHash)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "anna", "anna@example.com")

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"blank username", RegisterRequest{Username: " ", Email: "x@example.com", Password: "password123"}, ErrUsernameRequired},
		{"bad email", RegisterRequest{Username: "x", Email: "nope", Password: "password123"}, ErrEmailRequired},
		{"short password", RegisterRequest{Username: "x", Email: "x@example.com", Password: "short"}, ErrPasswordTooShort},
		{"long password", RegisterRequest{Username: "x", Email: "x@example.com", Password: strings.Repeat("a", 80)}, ErrPasswordTooLong},
		{"bad role", RegisterRequest{Username: "x", Email: "x@example.com", Password: "password123", Role: "root"}, ErrInvalidRole},
		{"taken username", RegisterRequest{Username: "anna", Email: "x@example.com", Password: "password123"}, ErrUsernameTaken},
		{"taken email", RegisterRequest{Username: "x", Email: "ANNA@example.com", Password: "password123"}, ErrEmailAlreadyUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := register(t, svc, "anna", "anna@example.com")

	a, err := svc.Login(ctx, "anna", "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, a.ID)

	a, err = svc.Login(ctx, "ANNA@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, a.ID)

	_, err = svc.Login(ctx, "anna", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "bob", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	inactive := false
	_, err = svc.Update(ctx, created.ID, UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "anna", "password123")
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestLoginRehashesOnCostChange(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	created := register(t, svc, "anna", "anna@example.com")

	stronger := auth.NewBcryptPasswordHasherWithCost(5)
	require.True(t, stronger.NeedsRehash(created.PasswordHash))

	upgraded := NewService(st, stronger, zaptest.NewLogger(t))
	a, err := upgraded.Login(ctx, "anna", "password123")
	require.NoError(t, err)
	assert.False(t, stronger.NeedsRehash(a.PasswordHash))

	stored, err := upgraded.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stronger.NeedsRehash(stored.PasswordHash))
	assert.NoError(t, stronger.Compare(stored.PasswordHash, "password123"))
}

func TestUpdateRejectsLongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	a := register(t, svc, "anna", "anna@example.com")

	// 30 runes but 75 bytes: short in characters, too long for bcrypt.
	long := strings.Repeat("é€", 15)
	_, err := svc.Update(context.Background(), a.ID, UpdateRequest{Password: &long})
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := register(t, svc, "anna", "anna@example.com")
	register(t, svc, "bob", "bob@example.com")

	name := "Anna"
	role := RoleAdmin
	updated, err := svc.Update(ctx, a.ID, UpdateRequest{FirstName: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Anna", *updated.FirstName)
	assert.True(t, updated.IsAdmin())

	taken := "bob@example.com"
	_, err = svc.Update(ctx, a.ID, UpdateRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailAlreadyUsed)

	_, err = svc.Update(ctx, a.ID, UpdateRequest{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = svc.Update(ctx, 999, UpdateRequest{FirstName: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	pw := "new-password"
	_, err = svc.Update(ctx, a.ID, UpdateRequest{Password: &pw})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "anna", "new-password")
	assert.NoError(t, err)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := register(t, svc, "anna", "anna@example.com")
	register(t, svc, "bob", "bob@example.com")
	register(t, svc, "carl", "carl@example.com")

	inactive := false
	_, err := svc.Update(ctx, a.ID, UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 3)

	active := true
	items, total, err = svc.List(ctx, Filter{IsActive: &active, Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "carl", items[0].Username)
}

func TestDeleteFlushesCache(t *testing.T) {
	inv := &countingInvalidator{}
	svc, _ := newTestService(t, WithInvalidator(inv))
	ctx := context.Background()
	a := register(t, svc, "anna", "anna@example.com")

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Equal(t, 1, inv.calls)

	_, err := svc.GetByID(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrNotFound)
	assert.Equal(t, 1, inv.calls)
}
