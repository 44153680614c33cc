package postgres

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// columnType returns the DDL type and the information_schema udt_name it
// reads back as.
func columnType(f store.Field) (ddl, udt string) {
	switch f.Type {
	case store.TypeID:
		return "BIGSERIAL", "int8"
	case store.TypeInt:
		return "INTEGER", "int4"
	case store.TypeBigInt:
		return "BIGINT", "int8"
	case store.TypeText:
		if f.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Size), "varchar"
		}
		return "TEXT", "text"
	case store.TypeBool:
		return "BOOLEAN", "bool"
	case store.TypeDate:
		return "DATE", "date"
	case store.TypeTime:
		return "TIME", "time"
	case store.TypeTimestamp:
		return "TIMESTAMPTZ", "timestamptz"
	}
	return "TEXT", "text"
}

func columnDef(f store.Field) (string, error) {
	typ, _ := columnType(f)
	var b strings.Builder
	b.WriteString(quote(f.Name))
	b.WriteString(" ")
	b.WriteString(typ)

	if f.Type == store.TypeID {
		b.WriteString(" PRIMARY KEY")
		return b.String(), nil
	}
	if f.NotNull {
		b.WriteString(" NOT NULL")
	}
	if f.Unique {
		b.WriteString(" UNIQUE")
	}
	switch {
	case f.Default != nil:
		v, err := f.Normalize(f.Default)
		if err != nil {
			return "", fmt.Errorf("default for %s: %w", f.Name, err)
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(sqlLiteral(v))
	case f.Managed && f.Type == store.TypeTimestamp:
		b.WriteString(" DEFAULT now()")
	}
	if f.Min != nil {
		fmt.Fprintf(&b, " CHECK (%s >= %d)", quote(f.Name), *f.Min)
	}
	if len(f.Enum) > 0 {
		lits := make([]string, len(f.Enum))
		for i, e := range f.Enum {
			lits[i] = sqlLiteral(e)
		}
		fmt.Fprintf(&b, " CHECK (%s IN (%s))", quote(f.Name), strings.Join(lits, ", "))
	}
	if f.References != nil {
		fmt.Fprintf(&b, " REFERENCES %s (%s)", quote(f.References.Collection), quote(store.IDField))
		if f.References.Cascade {
			b.WriteString(" ON DELETE CASCADE")
		} else {
			b.WriteString(" ON DELETE RESTRICT")
		}
	}
	return b.String(), nil
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for the schema.
func createTableSQL(s *store.Schema) (string, error) {
	defs := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		def, err := columnDef(f)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(s.Name), strings.Join(defs, ",\n\t")), nil
}

func indexName(s *store.Schema, cols []string) string {
	return "idx_" + s.Name + "_" + strings.Join(cols, "_")
}

func createIndexSQL(s *store.Schema) []string {
	stmts := make([]string, 0, len(s.Indexes))
	for _, cols := range s.Indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(indexName(s, cols)), quote(s.Name), strings.Join(quoteAll(cols), ", ")))
	}
	return stmts
}

func dropTableSQL(s *store.Schema) string {
	return "DROP TABLE IF EXISTS " + quote(s.Name)
}

func columnsQuery(table string) (string, []any, error) {
	return psql.Select("column_name", "udt_name").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
}

func tablesQuery() (string, []any, error) {
	return psql.Select("table_name").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
}

func tableExistsQuery(table string) (string, []any, error) {
	sub, args, err := psql.Select("1").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table}).
		ToSql()
	if err != nil {
		return "", nil, err
	}
	return "SELECT EXISTS (" + sub + ")", args, nil
}

// diffColumns compares the live table against the schema and describes the
// first mismatch, or returns "" when they agree.
func diffColumns(s *store.Schema, live map[string]string) string {
	if len(live) != len(s.Fields) {
		return fmt.Sprintf("table has %d columns, schema declares %d", len(live), len(s.Fields))
	}
	for _, f := range s.Fields {
		udt, ok := live[f.Name]
		if !ok {
			return fmt.Sprintf("column %q is missing", f.Name)
		}
		if _, want := columnType(f); udt != want {
			return fmt.Sprintf("column %q has type %s, schema declares %s", f.Name, udt, want)
		}
	}
	return ""
}
