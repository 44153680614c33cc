package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// quote renders a safely quoted SQL identifier.
func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}

// encodeValue converts a normalised record value into something pgx can bind.
func encodeValue(v any) any {
	if t, ok := v.(clock.Time); ok {
		return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
	}
	return v
}

func encodeMap(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[quote(k)] = encodeValue(v)
	}
	return out
}

func whereEq(f store.Filter) squirrel.Eq {
	eq := make(squirrel.Eq, len(f))
	for k, v := range f {
		eq[quote(k)] = encodeValue(v)
	}
	return eq
}

func buildInsert(s *store.Schema, rec store.Record) (string, []any, error) {
	table := quote(s.Name)
	if len(rec) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", table, quote(store.IDField)), nil, nil
	}
	return psql.Insert(table).
		SetMap(encodeMap(rec)).
		Suffix("RETURNING " + quote(store.IDField)).
		ToSql()
}

// buildInsertMany expects every row to carry the same columns.
func buildInsertMany(s *store.Schema, rows []store.Record) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no rows", s.Name)
	}

	var cols []string
	for _, f := range s.Fields {
		if _, ok := rows[0][f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}

	b := psql.Insert(quote(s.Name)).Columns(quoteAll(cols)...)
	for _, row := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = encodeValue(row[c])
		}
		b = b.Values(vals...)
	}
	return b.ToSql()
}

func buildSelect(s *store.Schema, q store.Query) (string, []any, error) {
	b := psql.Select(quoteAll(s.Columns())...).From(quote(s.Name))
	if len(q.Filter) > 0 {
		b = b.Where(whereEq(q.Filter))
	}
	for _, o := range q.OrderBy {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		b = b.OrderBy(quote(o.Field) + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}
	return b.ToSql()
}

func buildSelectByID(s *store.Schema, id int64) (string, []any, error) {
	return psql.Select(quoteAll(s.Columns())...).
		From(quote(s.Name)).
		Where(squirrel.Eq{quote(store.IDField): id}).
		ToSql()
}

func buildUpdate(s *store.Schema, id int64, patch store.Record) (string, []any, error) {
	b := psql.Update(quote(s.Name)).SetMap(encodeMap(patch))
	if s.Has(store.UpdatedAtField) {
		b = b.Set(quote(store.UpdatedAtField), squirrel.Expr("now()"))
	}
	return b.Where(squirrel.Eq{quote(store.IDField): id}).ToSql()
}

func buildDelete(s *store.Schema, id int64) (string, []any, error) {
	return psql.Delete(quote(s.Name)).
		Where(squirrel.Eq{quote(store.IDField): id}).
		ToSql()
}

func buildCount(s *store.Schema, f store.Filter) (string, []any, error) {
	b := psql.Select("COUNT(*)").From(quote(s.Name))
	if len(f) > 0 {
		b = b.Where(whereEq(f))
	}
	return b.ToSql()
}

// decodeRecord converts a row read by pgx into a normalised record.
func decodeRecord(s *store.Schema, row map[string]any) store.Record {
	rec := make(store.Record, len(row))
	for k, v := range row {
		if t, ok := v.(pgtype.Time); ok {
			if !t.Valid {
				rec[k] = nil
				continue
			}
			rec[k] = clock.Time(time.Duration(t.Microseconds) * time.Microsecond)
			continue
		}
		rec[k] = v
	}
	return s.Normalize(rec)
}

// sqlLiteral renders a constant for DDL, where bind parameters are not allowed.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return fmt.Sprintf("%d", x)
	case clock.Time:
		return "'" + x.String() + "'"
	case time.Time:
		return "'" + x.Format(time.RFC3339Nano) + "'"
	}
	return fmt.Sprintf("'%v'", v)
}
