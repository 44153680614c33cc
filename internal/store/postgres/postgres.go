// Package postgres implements the record store on PostgreSQL through a pgx
// connection pool. Statements are built with squirrel and always bind values
// as parameters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// Store hands out sessions backed by pooled connections.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New wraps pool. The store takes ownership and closes the pool on Close.
func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log.Named("store")}
}

// Open acquires a connection from the pool.
func (st *Store) Open(ctx context.Context) (store.Session, error) {
	st.mu.Lock()
	closed := st.closed
	st.mu.Unlock()
	if closed {
		return nil, &store.ConnectionError{Op: "open", Err: errors.New("store is closed")}
	}

	conn, err := st.pool.Acquire(ctx)
	if err != nil {
		st.log.Error("acquire connection failed", zap.Error(err))
		return nil, &store.ConnectionError{Op: "open", Err: err}
	}

	id := uuid.NewString()
	log := st.log.With(zap.String("session_id", id))
	log.Debug("session opened")
	return &session{
		id:     id,
		conn:   conn,
		runner: runner{q: conn, log: log},
	}, nil
}

func (st *Store) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	st.pool.Close()
}

// querier is satisfied by both *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type session struct {
	id   string
	conn *pgxpool.Conn
	runner
}

func (s *session) ID() string { return s.id }

func (s *session) active(op string) error {
	if s.conn == nil {
		return &store.ConnectionError{Op: op}
	}
	return nil
}

func (s *session) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Release()
	s.conn = nil
	s.q = nil
	s.log.Debug("session closed")
	return nil
}

func (s *session) Insert(ctx context.Context, sc *store.Schema, rec store.Record) (int64, error) {
	if err := s.active("insert"); err != nil {
		return 0, err
	}
	return s.runner.Insert(ctx, sc, rec)
}

func (s *session) InsertMany(ctx context.Context, sc *store.Schema, rows []store.Record) (int64, error) {
	if err := s.active("insert many"); err != nil {
		return 0, err
	}
	return s.runner.InsertMany(ctx, sc, rows)
}

func (s *session) FindByID(ctx context.Context, sc *store.Schema, id int64) (store.Record, error) {
	if err := s.active("find by id"); err != nil {
		return nil, err
	}
	return s.runner.FindByID(ctx, sc, id)
}

func (s *session) Find(ctx context.Context, sc *store.Schema, q store.Query) ([]store.Record, error) {
	if err := s.active("find"); err != nil {
		return nil, err
	}
	return s.runner.Find(ctx, sc, q)
}

func (s *session) UpdateByID(ctx context.Context, sc *store.Schema, id int64, patch store.Record) (int64, error) {
	if err := s.active("update"); err != nil {
		return 0, err
	}
	return s.runner.UpdateByID(ctx, sc, id, patch)
}

func (s *session) DeleteByID(ctx context.Context, sc *store.Schema, id int64) (int64, error) {
	if err := s.active("delete"); err != nil {
		return 0, err
	}
	return s.runner.DeleteByID(ctx, sc, id)
}

func (s *session) Count(ctx context.Context, sc *store.Schema, f store.Filter) (int64, error) {
	if err := s.active("count"); err != nil {
		return 0, err
	}
	return s.runner.Count(ctx, sc, f)
}

func (s *session) Exists(ctx context.Context, sc *store.Schema, f store.Filter) (bool, error) {
	return store.Exists(ctx, s, sc, f)
}

func (s *session) DefineCollection(ctx context.Context, sc *store.Schema) error {
	if err := s.active("define collection"); err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	live, err := s.liveColumns(ctx, sc.Name)
	if err != nil {
		return s.fail("define collection", sc.Name, err)
	}
	if len(live) > 0 {
		if reason := diffColumns(sc, live); reason != "" {
			err := &store.SchemaError{Collection: sc.Name, Reason: reason}
			s.log.Error("collection definition conflicts with existing table", zap.String("collection", sc.Name), zap.Error(err))
			return err
		}
	} else {
		ddl, err := createTableSQL(sc)
		if err != nil {
			return &store.SchemaError{Collection: sc.Name, Reason: err.Error()}
		}
		if _, err := s.q.Exec(ctx, ddl); err != nil {
			return s.fail("create table", sc.Name, err)
		}
		s.log.Info("collection created", zap.String("collection", sc.Name))
	}

	for _, stmt := range createIndexSQL(sc) {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return s.fail("create index", sc.Name, err)
		}
	}
	return nil
}

func (s *session) liveColumns(ctx context.Context, table string) (map[string]string, error) {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	live := make(map[string]string, len(cols))
	for _, c := range cols {
		live[c.Name] = c.Type
	}
	return live, nil
}

func (s *session) tableColumns(ctx context.Context, table string) ([]store.Column, error) {
	sql, args, err := columnsQuery(table)
	if err != nil {
		return nil, fmt.Errorf("build columns query failed: %w", err)
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	type column struct {
		Name string `db:"column_name"`
		UDT  string `db:"udt_name"`
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByName[column])
	if err != nil {
		return nil, err
	}
	out := make([]store.Column, len(cols))
	for i, c := range cols {
		out[i] = store.Column{Name: c.Name, Type: c.UDT}
	}
	return out, nil
}

func (s *session) Columns(ctx context.Context, collection string) ([]store.Column, error) {
	if err := s.active("columns"); err != nil {
		return nil, err
	}
	cols, err := s.tableColumns(ctx, collection)
	if err != nil {
		return nil, s.fail("columns", collection, err)
	}
	if len(cols) == 0 {
		return nil, &store.SchemaError{Collection: collection, Reason: "collection is not defined"}
	}
	return cols, nil
}

func (s *session) DropCollection(ctx context.Context, sc *store.Schema) error {
	if err := s.active("drop collection"); err != nil {
		return err
	}
	if _, err := s.q.Exec(ctx, dropTableSQL(sc)); err != nil {
		return s.fail("drop collection", sc.Name, err)
	}
	s.log.Info("collection dropped", zap.String("collection", sc.Name))
	return nil
}

func (s *session) CollectionExists(ctx context.Context, sc *store.Schema) (bool, error) {
	if err := s.active("collection exists"); err != nil {
		return false, err
	}
	sql, args, err := tableExistsQuery(sc.Name)
	if err != nil {
		return false, fmt.Errorf("build table exists query failed: %w", err)
	}
	var exists bool
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, s.fail("collection exists", sc.Name, err)
	}
	return exists, nil
}

func (s *session) Collections(ctx context.Context) ([]string, error) {
	if err := s.active("collections"); err != nil {
		return nil, err
	}
	sql, args, err := tablesQuery()
	if err != nil {
		return nil, fmt.Errorf("build tables query failed: %w", err)
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.fail("collections", "", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.fail("collections", "", err)
	}
	return names, nil
}

func (s *session) InTx(ctx context.Context, opts store.TxOptions, fn func(store.Records) error) (err error) {
	if err := s.active("begin"); err != nil {
		return err
	}

	txOpts := pgx.TxOptions{}
	if opts.Serializable {
		txOpts.IsoLevel = pgx.Serializable
	}
	tx, err := s.conn.BeginTx(ctx, txOpts)
	if err != nil {
		return s.fail("begin", "", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback must run even when ctx is already cancelled.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(&runner{q: tx, log: s.log}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return s.fail("commit", "", err)
	}
	committed = true
	return nil
}

// runner executes the data operations on a connection or a transaction.
type runner struct {
	q   querier
	log *zap.Logger
}

// fail translates and logs err, then wraps it with the operation.
func (r *runner) fail(op, collection string, err error) error {
	err = translate(collection, err)
	fields := []zap.Field{zap.String("op", op), zap.String("collection", collection), zap.Error(err)}
	if errors.Is(err, store.ErrConstraint) {
		r.log.Warn("constraint violated", fields...)
	} else {
		r.log.Error("query failed", fields...)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}

func (r *runner) Insert(ctx context.Context, s *store.Schema, rec store.Record) (int64, error) {
	clean, err := s.CheckRecord(rec)
	if err != nil {
		return 0, err
	}
	sql, args, err := buildInsert(s, clean)
	if err != nil {
		return 0, fmt.Errorf("build insert %s query failed: %w", s.Name, err)
	}

	var id int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, r.fail("insert", s.Name, err)
	}
	return id, nil
}

func (r *runner) InsertMany(ctx context.Context, s *store.Schema, rows []store.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	clean := make([]store.Record, len(rows))
	for i, row := range rows {
		c, err := s.CheckRecord(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		clean[i] = s.ApplyDefaults(c)
	}
	sql, args, err := buildInsertMany(s, clean)
	if err != nil {
		return 0, fmt.Errorf("build insert many %s query failed: %w", s.Name, err)
	}

	ct, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.fail("insert many", s.Name, err)
	}
	return ct.RowsAffected(), nil
}

func (r *runner) FindByID(ctx context.Context, s *store.Schema, id int64) (store.Record, error) {
	sql, args, err := buildSelectByID(s, id)
	if err != nil {
		return nil, fmt.Errorf("build find %s query failed: %w", s.Name, err)
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, r.fail("find by id", s.Name, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", s.Name, id, store.ErrNotFound)
		}
		return nil, r.fail("find by id", s.Name, err)
	}
	return decodeRecord(s, row), nil
}

func (r *runner) Find(ctx context.Context, s *store.Schema, q store.Query) ([]store.Record, error) {
	filter, err := s.CheckFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	if err := s.CheckOrder(q.OrderBy); err != nil {
		return nil, err
	}
	q.Filter = filter

	sql, args, err := buildSelect(s, q)
	if err != nil {
		return nil, fmt.Errorf("build find %s query failed: %w", s.Name, err)
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, r.fail("find", s.Name, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, r.fail("find", s.Name, err)
	}

	out := make([]store.Record, len(maps))
	for i, m := range maps {
		out[i] = decodeRecord(s, m)
	}
	return out, nil
}

func (r *runner) UpdateByID(ctx context.Context, s *store.Schema, id int64, patch store.Record) (int64, error) {
	clean, err := s.CheckPatch(patch)
	if err != nil {
		return 0, err
	}
	sql, args, err := buildUpdate(s, id, clean)
	if err != nil {
		return 0, fmt.Errorf("build update %s query failed: %w", s.Name, err)
	}
	ct, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.fail("update", s.Name, err)
	}
	return ct.RowsAffected(), nil
}

func (r *runner) DeleteByID(ctx context.Context, s *store.Schema, id int64) (int64, error) {
	sql, args, err := buildDelete(s, id)
	if err != nil {
		return 0, fmt.Errorf("build delete %s query failed: %w", s.Name, err)
	}
	ct, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.fail("delete", s.Name, err)
	}
	return ct.RowsAffected(), nil
}

func (r *runner) Count(ctx context.Context, s *store.Schema, f store.Filter) (int64, error) {
	filter, err := s.CheckFilter(f)
	if err != nil {
		return 0, err
	}
	sql, args, err := buildCount(s, filter)
	if err != nil {
		return 0, fmt.Errorf("build count %s query failed: %w", s.Name, err)
	}
	var n int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, r.fail("count", s.Name, err)
	}
	return n, nil
}

func (r *runner) Exists(ctx context.Context, s *store.Schema, f store.Filter) (bool, error) {
	return store.Exists(ctx, r, s, f)
}
