// Package memstore implements the record store in process memory. It keeps
// the same constraint semantics as the PostgreSQL backend: unique columns,
// foreign keys with cascade or restrict deletes and all-or-nothing
// transactions.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

type table struct {
	schema *store.Schema
	rows   []store.Record // insertion order
	nextID int64
}

func (t *table) clone() *table {
	rows := make([]store.Record, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.Clone()
	}
	return &table{schema: t.schema, rows: rows, nextID: t.nextID}
}

func (t *table) index(id int64) int {
	return slices.IndexFunc(t.rows, func(r store.Record) bool { return r.Int64(store.IDField) == id })
}

// Store is an in-memory record store. It is safe for concurrent use;
// every operation and every transaction holds the store lock.
type Store struct {
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	closed bool
	tables map[string]*table
}

type Option func(*Store)

// WithClock overrides the source of created_at and updated_at values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	st := &Store{
		log:    log.Named("memstore"),
		now:    time.Now,
		tables: make(map[string]*table),
	}
	for _, o := range opts {
		o(st)
	}
	return st
}

func (st *Store) Open(ctx context.Context) (store.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.ConnectionError{Op: "open", Err: err}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, &store.ConnectionError{Op: "open", Err: errors.New("store is closed")}
	}
	id := uuid.NewString()
	return &session{id: id, st: st, log: st.log.With(zap.String("session_id", id))}, nil
}

func (st *Store) Close() {
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
}

func (st *Store) snapshot() map[string]*table {
	snap := make(map[string]*table, len(st.tables))
	for name, t := range st.tables {
		snap[name] = t.clone()
	}
	return snap
}

// atomically runs fn and restores the tables when it fails or panics.
// The caller holds st.mu.
func (st *Store) atomically(fn func() error) (err error) {
	snap := st.snapshot()
	ok := false
	defer func() {
		if !ok {
			st.tables = snap
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	ok = true
	return nil
}

func (st *Store) table(s *store.Schema) (*table, error) {
	t, ok := st.tables[s.Name]
	if !ok {
		return nil, &store.SchemaError{Collection: s.Name, Reason: "collection is not defined"}
	}
	return t, nil
}

type session struct {
	id     string
	st     *Store
	log    *zap.Logger
	closed bool
}

func (s *session) ID() string { return s.id }

func (s *session) Close() error {
	if !s.closed {
		s.closed = true
		s.log.Debug("session closed")
	}
	return nil
}

// records returns the operations bound to this session, or a
// *ConnectionError when the session or its store is closed.
func (s *session) records(op string) (*records, error) {
	if s.closed {
		return nil, &store.ConnectionError{Op: op}
	}
	s.st.mu.Lock()
	closed := s.st.closed
	s.st.mu.Unlock()
	if closed {
		return nil, &store.ConnectionError{Op: op, Err: errors.New("store is closed")}
	}
	return &records{st: s.st, log: s.log}, nil
}

func (s *session) Insert(ctx context.Context, sc *store.Schema, rec store.Record) (int64, error) {
	r, err := s.records("insert")
	if err != nil {
		return 0, err
	}
	return r.Insert(ctx, sc, rec)
}

func (s *session) InsertMany(ctx context.Context, sc *store.Schema, rows []store.Record) (int64, error) {
	r, err := s.records("insert many")
	if err != nil {
		return 0, err
	}
	return r.InsertMany(ctx, sc, rows)
}

func (s *session) FindByID(ctx context.Context, sc *store.Schema, id int64) (store.Record, error) {
	r, err := s.records("find by id")
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, sc, id)
}

func (s *session) Find(ctx context.Context, sc *store.Schema, q store.Query) ([]store.Record, error) {
	r, err := s.records("find")
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, sc, q)
}

func (s *session) UpdateByID(ctx context.Context, sc *store.Schema, id int64, patch store.Record) (int64, error) {
	r, err := s.records("update")
	if err != nil {
		return 0, err
	}
	return r.UpdateByID(ctx, sc, id, patch)
}

func (s *session) DeleteByID(ctx context.Context, sc *store.Schema, id int64) (int64, error) {
	r, err := s.records("delete")
	if err != nil {
		return 0, err
	}
	return r.DeleteByID(ctx, sc, id)
}

func (s *session) Count(ctx context.Context, sc *store.Schema, f store.Filter) (int64, error) {
	r, err := s.records("count")
	if err != nil {
		return 0, err
	}
	return r.Count(ctx, sc, f)
}

func (s *session) Exists(ctx context.Context, sc *store.Schema, f store.Filter) (bool, error) {
	return store.Exists(ctx, s, sc, f)
}

func (s *session) DefineCollection(ctx context.Context, sc *store.Schema) error {
	if _, err := s.records("define collection"); err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if existing, ok := s.st.tables[sc.Name]; ok {
		if reason := diffShape(existing.schema, sc); reason != "" {
			err := &store.SchemaError{Collection: sc.Name, Reason: reason}
			s.log.Error("collection definition conflicts with existing one", zap.String("collection", sc.Name), zap.Error(err))
			return err
		}
		return nil
	}

	for _, f := range sc.Fields {
		if f.References == nil || f.References.Collection == sc.Name {
			continue
		}
		if _, ok := s.st.tables[f.References.Collection]; !ok {
			return &store.SchemaError{Collection: sc.Name, Reason: fmt.Sprintf("field %q references undefined collection %q", f.Name, f.References.Collection)}
		}
	}

	s.st.tables[sc.Name] = &table{schema: sc}
	s.log.Info("collection created", zap.String("collection", sc.Name))
	return nil
}

// diffShape compares the column names and types of two schemas.
func diffShape(have, want *store.Schema) string {
	if len(have.Fields) != len(want.Fields) {
		return fmt.Sprintf("collection has %d fields, schema declares %d", len(have.Fields), len(want.Fields))
	}
	for _, f := range want.Fields {
		h, ok := have.Field(f.Name)
		if !ok {
			return fmt.Sprintf("field %q is missing", f.Name)
		}
		if h.Type != f.Type || (h.Size > 0) != (f.Size > 0) {
			return fmt.Sprintf("field %q has type %s, schema declares %s", f.Name, h.Type, f.Type)
		}
	}
	return ""
}

func (s *session) DropCollection(ctx context.Context, sc *store.Schema) error {
	if _, err := s.records("drop collection"); err != nil {
		return err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.tables[sc.Name]; !ok {
		return nil
	}
	for name, t := range s.st.tables {
		if name == sc.Name {
			continue
		}
		for _, f := range t.schema.Fields {
			if f.References != nil && f.References.Collection == sc.Name {
				err := &store.ConstraintError{Collection: sc.Name, Constraint: name + "_" + f.Name + "_fkey", Kind: store.KindDependency}
				s.log.Warn("constraint violated", zap.String("op", "drop collection"), zap.Error(err))
				return fmt.Errorf("drop collection %s: %w", sc.Name, err)
			}
		}
	}
	delete(s.st.tables, sc.Name)
	s.log.Info("collection dropped", zap.String("collection", sc.Name))
	return nil
}

func (s *session) CollectionExists(ctx context.Context, sc *store.Schema) (bool, error) {
	if _, err := s.records("collection exists"); err != nil {
		return false, err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	_, ok := s.st.tables[sc.Name]
	return ok, nil
}

func (s *session) Collections(ctx context.Context) ([]string, error) {
	if _, err := s.records("collections"); err != nil {
		return nil, err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return slices.Sorted(maps.Keys(s.st.tables)), nil
}

func (s *session) Columns(ctx context.Context, collection string) ([]store.Column, error) {
	if _, err := s.records("columns"); err != nil {
		return nil, err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	t, ok := s.st.tables[collection]
	if !ok {
		return nil, &store.SchemaError{Collection: collection, Reason: "collection is not defined"}
	}
	cols := make([]store.Column, len(t.schema.Fields))
	for i, f := range t.schema.Fields {
		cols[i] = store.Column{Name: f.Name, Type: f.Type.String()}
	}
	return cols, nil
}

// InTx holds the store lock for the whole transaction, so transactions are
// serializable. Isolation options are accepted and ignored.
func (s *session) InTx(ctx context.Context, opts store.TxOptions, fn func(store.Records) error) error {
	if _, err := s.records("begin"); err != nil {
		return err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	return s.st.atomically(func() error {
		return fn(&records{st: s.st, log: s.log, locked: true})
	})
}
