package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
	"github.com/nekogravitycat/table-booking-backend/internal/store/memstore"
)

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	st := memstore.New(zaptest.NewLogger(t))
	require.NoError(t, store.Do(context.Background(), st, func(sess store.Session) error {
		return sess.DefineCollection(context.Background(), Schema)
	}))
	return NewService(st, zaptest.NewLogger(t), opts...)
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateRequest{
		Number:    4,
		Capacity:  2,
		Location:  ptr(" terrace "),
		TableType: ptr(""),
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.True(t, res.IsActive)
	assert.Equal(t, "terrace", *res.Location)
	assert.Nil(t, res.TableType)

	got, err := svc.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res, got)

	_, err = svc.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejects(t *testing.T) {
	svc := newTestService(t, WithLocations([]string{"main hall", "terrace"}))
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateRequest{Number: 1, Capacity: 4})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"zero number", CreateRequest{Number: 0, Capacity: 2}, ErrInvalidNumber},
		{"zero capacity", CreateRequest{Number: 2, Capacity: 0}, ErrInvalidCapacity},
		{"unknown location", CreateRequest{Number: 2, Capacity: 2, Location: ptr("roof")}, ErrInvalidLocation},
		{"duplicate number", CreateRequest{Number: 1, Capacity: 2}, ErrNumberTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, n := range []int{3, 1, 2} {
		_, err := svc.Create(ctx, CreateRequest{Number: n, Capacity: n * 2, Location: ptr("main hall")})
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{items[0].Number, items[1].Number, items[2].Number})

	updated, err := svc.Update(ctx, items[0].ID, UpdateRequest{IsActive: ptr(false), Location: ptr("terrace")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, total, err := svc.List(ctx, Filter{IsActive: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, active, 2)

	hall, _, err := svc.List(ctx, Filter{Location: "main hall"})
	require.NoError(t, err)
	assert.Len(t, hall, 2)

	_, err = svc.Update(ctx, items[0].ID, UpdateRequest{Number: ptr(2)})
	assert.ErrorIs(t, err, ErrNumberTaken)

	_, err = svc.Update(ctx, items[0].ID, UpdateRequest{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateRequest{Number: 1, Capacity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, res.ID))
	assert.ErrorIs(t, svc.Delete(ctx, res.ID), ErrNotFound)
}
