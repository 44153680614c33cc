package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
	"github.com/nekogravitycat/table-booking-backend/internal/store/storetest"
)

// Runs against a live database only when TEST_DB_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		pool, err := pgxpool.New(context.Background(), dsn)
		require.NoError(t, err)
		return New(pool, zaptest.NewLogger(t))
	})
}

func TestOpenAfterClose(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	st := New(pool, nil)
	st.Close()

	_, err = st.Open(context.Background())
	require.ErrorIs(t, err, store.ErrNoConnection)
}
