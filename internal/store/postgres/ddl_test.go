package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

func TestCreateTableSQL(t *testing.T) {
	ddl, err := createTableSQL(bookingsSchema())
	require.NoError(t, err)

	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "bookings"`)
	assert.Contains(t, ddl, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, ddl, `"table_id" BIGINT NOT NULL REFERENCES "tables" ("id") ON DELETE CASCADE`)
	assert.Contains(t, ddl, `"day" DATE NOT NULL`)
	assert.Contains(t, ddl, `"start" TIME NOT NULL`)
	assert.Contains(t, ddl, `"status" VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK ("status" IN ('pending', 'done'))`)
	assert.Contains(t, ddl, `"guests" INTEGER NOT NULL CHECK ("guests" >= 1)`)
	assert.Contains(t, ddl, `"note" TEXT`)
	assert.Contains(t, ddl, `"created_at" TIMESTAMPTZ NOT NULL DEFAULT now()`)
}

func TestCreateIndexSQL(t *testing.T) {
	stmts := createIndexSQL(bookingsSchema())
	require.Len(t, stmts, 1)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_bookings_table_id_day" ON "bookings" ("table_id", "day")`, stmts[0])
}

func TestSQLLiteralEscapesQuotes(t *testing.T) {
	assert.Equal(t, `'it''s'`, sqlLiteral("it's"))
	assert.Equal(t, "TRUE", sqlLiteral(true))
	assert.Equal(t, "120", sqlLiteral(int64(120)))
}

func TestDiffColumns(t *testing.T) {
	s := bookingsSchema()
	live := map[string]string{}
	for _, f := range s.Fields {
		_, udt := columnType(f)
		live[f.Name] = udt
	}
	assert.Empty(t, diffColumns(s, live))

	live["guests"] = "text"
	assert.Contains(t, diffColumns(s, live), `"guests"`)

	delete(live, "guests")
	assert.NotEmpty(t, diffColumns(s, live))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		code string
		kind store.ConstraintKind
	}{
		{pgerrcode.UniqueViolation, store.KindUnique},
		{pgerrcode.ForeignKeyViolation, store.KindForeignKey},
		{pgerrcode.NotNullViolation, store.KindNotNull},
		{pgerrcode.CheckViolation, store.KindCheck},
		{pgerrcode.DependentObjectsStillExist, store.KindDependency},
		{pgerrcode.SerializationFailure, store.KindSerialization},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, TableName: "bookings", ConstraintName: "c"}
			err := translate("x", pgErr)

			var ce *store.ConstraintError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, "bookings", ce.Collection)
			assert.Equal(t, "c", ce.Constraint)
			assert.ErrorIs(t, err, store.ErrConstraint)
		})
	}

	err := translate("bookings", &pgconn.PgError{Code: pgerrcode.UndefinedTable})
	assert.ErrorIs(t, err, store.ErrSchema)

	plain := errors.New("boom")
	assert.Equal(t, plain, translate("bookings", plain))
}
