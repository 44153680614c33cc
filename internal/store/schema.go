package store

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

// FieldType is the logical type of a field. Backends map it to a column type.
type FieldType int

const (
	TypeID FieldType = iota
	TypeInt
	TypeBigInt
	TypeText
	TypeBool
	TypeDate
	TypeTime
	TypeTimestamp
)

func (t FieldType) String() string {
	switch t {
	case TypeID:
		return "id"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeTimestamp:
		return "timestamp"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Reference declares a foreign key to the id of another collection.
type Reference struct {
	Collection string
	Cascade    bool // ON DELETE CASCADE, otherwise deletes are restricted
}

// Field describes one column of a collection.
type Field struct {
	Name       string
	Type       FieldType
	Size       int // VARCHAR length for text fields; 0 means unbounded
	NotNull    bool
	Unique     bool
	Default    any
	Min        *int64
	Enum       []string
	References *Reference
	// Managed fields are written by the storage layer only.
	Managed bool
}

// Schema is the declarative description of a collection.
type Schema struct {
	Name    string
	Fields  []Field
	Indexes [][]string
}

const (
	IDField        = "id"
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ID returns the managed identity field every schema starts with.
func ID() Field {
	return Field{Name: IDField, Type: TypeID, NotNull: true, Managed: true}
}

// Timestamps returns the managed created_at and updated_at fields.
func Timestamps() []Field {
	return []Field{
		{Name: CreatedAtField, Type: TypeTimestamp, NotNull: true, Managed: true},
		{Name: UpdatedAtField, Type: TypeTimestamp, NotNull: true, Managed: true},
	}
}

// MinValue is a helper for Field.Min.
func MinValue(n int64) *int64 { return &n }

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether the schema declares the field.
func (s *Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Columns returns the field names in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Validate checks that the schema itself is well formed: safe identifiers,
// no duplicate fields and a managed id field.
func (s *Schema) Validate() error {
	if !identRe.MatchString(s.Name) {
		return &SchemaError{Collection: s.Name, Reason: "invalid collection name"}
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if !identRe.MatchString(f.Name) {
			return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf("invalid field name %q", f.Name)}
		}
		if seen[f.Name] {
			return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		seen[f.Name] = true
		if f.References != nil && !identRe.MatchString(f.References.Collection) {
			return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf("field %q references invalid collection", f.Name)}
		}
		if f.Default != nil {
			if _, err := normalizeValue(f, f.Default); err != nil {
				return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf("field %q has invalid default", f.Name)}
			}
		}
	}
	id, ok := s.Field(IDField)
	if !ok || id.Type != TypeID || !id.Managed {
		return &SchemaError{Collection: s.Name, Reason: "missing managed id field"}
	}
	for _, idx := range s.Indexes {
		for _, col := range idx {
			if !seen[col] {
				return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf("index on unknown field %q", col)}
			}
		}
	}
	return nil
}

// Equal reports whether two schemas describe the same collection.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.Name == o.Name &&
		reflect.DeepEqual(s.Fields, o.Fields) &&
		reflect.DeepEqual(s.Indexes, o.Indexes)
}

// CheckRecord validates a record about to be inserted and returns its
// normalised copy. Missing fields are left for defaults.
func (s *Schema) CheckRecord(rec Record) (Record, error) {
	out, err := s.checkFields(rec)
	if err != nil {
		return nil, err
	}
	for _, f := range s.Fields {
		if f.Managed || !f.NotNull || f.Default != nil {
			continue
		}
		if v, ok := out[f.Name]; !ok || v == nil {
			return nil, &ValidationError{Field: f.Name, Reason: "is required"}
		}
	}
	return out, nil
}

// CheckPatch validates a partial update and returns its normalised copy.
func (s *Schema) CheckPatch(patch Record) (Record, error) {
	if len(patch) == 0 {
		return nil, &ValidationError{Reason: "patch is empty"}
	}
	out, err := s.checkFields(patch)
	if err != nil {
		return nil, err
	}
	for name, v := range out {
		f, _ := s.Field(name)
		if f.NotNull && v == nil {
			return nil, &ValidationError{Field: name, Reason: "cannot be null"}
		}
	}
	return out, nil
}

// CheckFilter validates filter keys and normalises the values.
func (s *Schema) CheckFilter(filter Filter) (Filter, error) {
	out := make(Filter, len(filter))
	for name, v := range filter {
		f, ok := s.Field(name)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "unknown field in filter"}
		}
		nv, err := normalizeValue(f, v)
		if err != nil {
			return nil, err
		}
		out[name] = nv
	}
	return out, nil
}

// CheckOrder validates order-by fields.
func (s *Schema) CheckOrder(orders []Order) error {
	for _, o := range orders {
		if !s.Has(o.Field) {
			return &ValidationError{Field: o.Field, Reason: "unknown field in order by"}
		}
	}
	return nil
}

// ApplyDefaults fills unset fields with their declared defaults.
func (s *Schema) ApplyDefaults(rec Record) Record {
	out := rec.Clone()
	for _, f := range s.Fields {
		if f.Managed {
			continue
		}
		if _, ok := out[f.Name]; ok {
			continue
		}
		if f.Default != nil {
			v, _ := normalizeValue(f, f.Default)
			out[f.Name] = v
		} else {
			out[f.Name] = nil
		}
	}
	return out
}

// Normalize converts values read back from a backend into the canonical Go
// types for their fields. Unknown columns are kept as-is.
func (s *Schema) Normalize(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		f, ok := s.Field(k)
		if !ok {
			out[k] = v
			continue
		}
		if nv, err := normalizeValue(f, v); err == nil {
			out[k] = nv
		} else {
			out[k] = v
		}
	}
	return out
}

func (s *Schema) checkFields(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for name, v := range rec {
		f, ok := s.Field(name)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "unknown field"}
		}
		if f.Managed {
			return nil, &ValidationError{Field: name, Reason: "is managed by the store"}
		}
		nv, err := normalizeValue(f, v)
		if err != nil {
			return nil, err
		}
		if nv != nil {
			if err := checkBounds(f, nv); err != nil {
				return nil, err
			}
		}
		out[name] = nv
	}
	return out, nil
}

func checkBounds(f Field, v any) error {
	if len(f.Enum) > 0 {
		if s, ok := v.(string); !ok || !slices.Contains(f.Enum, s) {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be one of %v", f.Enum)}
		}
	}
	if f.Min != nil {
		if n, ok := v.(int64); ok && n < *f.Min {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be at least %d", *f.Min)}
		}
	}
	if f.Size > 0 {
		if s, ok := v.(string); ok && len([]rune(s)) > f.Size {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be at most %d characters", f.Size)}
		}
	}
	return nil
}

// Normalize converts v into the canonical Go type of the field.
func (f Field) Normalize(v any) (any, error) {
	return normalizeValue(f, v)
}

// normalizeValue converts v into the canonical Go type of the field:
// int64 for integers, string, bool, UTC-midnight time.Time for dates,
// clock.Time for times and UTC time.Time for timestamps. Pointers are
// dereferenced and nil stays nil.
func normalizeValue(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		v = rv.Elem().Interface()
		rv = rv.Elem()
	}

	bad := func() error {
		return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected %s value, got %T", f.Type, v)}
	}

	switch f.Type {
	case TypeID, TypeInt, TypeBigInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), nil
		}
		return nil, bad()
	case TypeText:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return nil, bad()
	case TypeBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
		return nil, bad()
	case TypeDate:
		if t, ok := v.(time.Time); ok {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		return nil, bad()
	case TypeTime:
		switch t := v.(type) {
		case clock.Time:
			if !t.Valid() {
				return nil, &ValidationError{Field: f.Name, Reason: "time of day out of range"}
			}
			return t, nil
		case string:
			ct, err := clock.Parse(t)
			if err != nil {
				return nil, &ValidationError{Field: f.Name, Reason: err.Error()}
			}
			return ct, nil
		}
		return nil, bad()
	case TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
		return nil, bad()
	}
	return nil, bad()
}
