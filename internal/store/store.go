// Package store defines a schema-driven record store: generic CRUD over named
// collections, explicit sessions and scoped transactions. Backends live in
// the postgres and memstore subpackages.
package store

import (
	"context"
	"fmt"
)

// Records is the set of data operations available both on a session and
// inside a transaction.
type Records interface {
	// Insert adds one record and returns its generated id.
	Insert(ctx context.Context, s *Schema, rec Record) (int64, error)
	// InsertMany adds all rows in one statement and returns how many were written.
	InsertMany(ctx context.Context, s *Schema, rows []Record) (int64, error)
	// FindByID returns ErrNotFound when no record has the id.
	FindByID(ctx context.Context, s *Schema, id int64) (Record, error)
	Find(ctx context.Context, s *Schema, q Query) ([]Record, error)
	// UpdateByID applies patch and returns the number of affected records.
	UpdateByID(ctx context.Context, s *Schema, id int64, patch Record) (int64, error)
	DeleteByID(ctx context.Context, s *Schema, id int64) (int64, error)
	Count(ctx context.Context, s *Schema, f Filter) (int64, error)
	Exists(ctx context.Context, s *Schema, f Filter) (bool, error)
}

// TxOptions configures a transaction.
type TxOptions struct {
	Serializable bool
}

// Session owns a single backend connection until Close.
// A session is not safe for concurrent use.
type Session interface {
	Records

	// ID identifies the session in logs.
	ID() string

	// DefineCollection creates the collection if missing. Redefining it with a
	// different schema returns a *SchemaError.
	DefineCollection(ctx context.Context, s *Schema) error
	DropCollection(ctx context.Context, s *Schema) error
	CollectionExists(ctx context.Context, s *Schema) (bool, error)
	Collections(ctx context.Context) ([]string, error)
	// Columns lists the columns of a collection in definition order. An
	// undefined collection returns a *SchemaError.
	Columns(ctx context.Context, collection string) ([]Column, error)

	// InTx runs fn inside a transaction. It commits when fn returns nil and
	// rolls back when fn returns an error or panics; the error or panic is
	// propagated after the rollback.
	InTx(ctx context.Context, opts TxOptions, fn func(Records) error) error

	// Close releases the connection. Later calls return a *ConnectionError.
	Close() error
}

// Column describes one column of a defined collection. Type is the
// backend's name for the column type.
type Column struct {
	Name string
	Type string
}

// Store hands out sessions.
type Store interface {
	Open(ctx context.Context) (Session, error)
	Close()
}

// Do opens a session, runs fn and closes the session on every exit path.
func Do(ctx context.Context, st Store, fn func(Session) error) (err error) {
	sess, err := st.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(sess)
}

// Tx opens a session and runs fn inside a transaction on it.
func Tx(ctx context.Context, st Store, opts TxOptions, fn func(Records) error) error {
	return Do(ctx, st, func(sess Session) error {
		return sess.InTx(ctx, opts, fn)
	})
}

// Exists is a helper for backends that implement Exists through Count.
func Exists(ctx context.Context, r Records, s *Schema, f Filter) (bool, error) {
	n, err := r.Count(ctx, s, f)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
