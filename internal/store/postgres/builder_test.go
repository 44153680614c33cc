package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

func bookingsSchema() *store.Schema {
	return &store.Schema{
		Name: "bookings",
		Fields: append([]store.Field{
			store.ID(),
			{Name: "table_id", Type: store.TypeBigInt, NotNull: true, References: &store.Reference{Collection: "tables", Cascade: true}},
			{Name: "day", Type: store.TypeDate, NotNull: true},
			{Name: "start", Type: store.TypeTime, NotNull: true},
			{Name: "status", Type: store.TypeText, Size: 20, NotNull: true, Default: "pending", Enum: []string{"pending", "done"}},
			{Name: "guests", Type: store.TypeInt, NotNull: true, Min: store.MinValue(1)},
			{Name: "note", Type: store.TypeText},
		}, store.Timestamps()...),
		Indexes: [][]string{{"table_id", "day"}},
	}
}

func TestBuildInsertBindsValues(t *testing.T) {
	s := bookingsSchema()
	rec := store.Record{"table_id": int64(3), "start": clock.New(18, 0), "note": "Robert'); DROP TABLE bookings;--"}

	sql, args, err := buildInsert(s, rec)
	require.NoError(t, err)

	assert.Contains(t, sql, `INSERT INTO "bookings"`)
	assert.Contains(t, sql, `RETURNING "id"`)
	assert.NotContains(t, sql, "DROP TABLE")
	assert.Len(t, args, 3)
	assert.Contains(t, args, pgtype.Time{Microseconds: (18 * time.Hour).Microseconds(), Valid: true})
}

func TestBuildInsertEmptyRecordUsesDefaults(t *testing.T) {
	sql, args, err := buildInsert(bookingsSchema(), store.Record{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "bookings" DEFAULT VALUES RETURNING "id"`, sql)
	assert.Empty(t, args)
}

func TestBuildInsertMany(t *testing.T) {
	s := bookingsSchema()
	rows := []store.Record{
		s.ApplyDefaults(store.Record{"table_id": int64(1), "day": time.Now(), "start": clock.New(10, 0), "guests": int64(2)}),
		s.ApplyDefaults(store.Record{"table_id": int64(2), "day": time.Now(), "start": clock.New(12, 0), "guests": int64(4)}),
	}

	sql, args, err := buildInsertMany(s, rows)
	require.NoError(t, err)
	assert.Contains(t, sql, `"table_id"`)
	assert.Contains(t, sql, "$12")
	assert.Len(t, args, 12)

	_, _, err = buildInsertMany(s, nil)
	assert.Error(t, err)
}

func TestBuildSelect(t *testing.T) {
	s := bookingsSchema()
	sql, args, err := buildSelect(s, store.Query{
		Filter:  store.Filter{"table_id": int64(7), "note": nil},
		OrderBy: []store.Order{store.Asc("start"), store.Desc("id")},
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)

	assert.Contains(t, sql, `FROM "bookings"`)
	assert.Contains(t, sql, `"note" IS NULL`)
	assert.Contains(t, sql, `"table_id" = $1`)
	assert.Contains(t, sql, `ORDER BY "start" ASC, "id" DESC`)
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 20")
	assert.Equal(t, []any{int64(7)}, args)
}

func TestBuildSelectWithoutFilter(t *testing.T) {
	sql, args, err := buildSelect(bookingsSchema(), store.Query{})
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "LIMIT")
	assert.Empty(t, args)
}

func TestBuildUpdateRefreshesUpdatedAt(t *testing.T) {
	sql, args, err := buildUpdate(bookingsSchema(), 5, store.Record{"status": "done"})
	require.NoError(t, err)

	assert.Contains(t, sql, `UPDATE "bookings" SET`)
	assert.Contains(t, sql, `"updated_at" = now()`)
	assert.Contains(t, sql, `WHERE "id" = $2`)
	assert.Equal(t, []any{"done", int64(5)}, args)
}

func TestBuildDeleteAndCount(t *testing.T) {
	s := bookingsSchema()

	sql, args, err := buildDelete(s, 9)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "bookings" WHERE "id" = $1`, sql)
	assert.Equal(t, []any{int64(9)}, args)

	sql, args, err = buildCount(s, store.Filter{"status": "pending"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "bookings" WHERE "status" = $1`, sql)
	assert.Equal(t, []any{"pending"}, args)
}

func TestDecodeRecord(t *testing.T) {
	s := bookingsSchema()
	row := map[string]any{
		"id":     int64(1),
		"guests": int32(4),
		"start":  pgtype.Time{Microseconds: (19*time.Hour + 30*time.Minute).Microseconds(), Valid: true},
		"note":   nil,
	}

	rec := decodeRecord(s, row)
	assert.Equal(t, int64(4), rec["guests"])
	assert.Equal(t, clock.New(19, 30), rec["start"])
	assert.Nil(t, rec["note"])
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"accounts"`, quote("accounts"))
	assert.Equal(t, `"we""ird"`, quote(`we"ird`))
}
