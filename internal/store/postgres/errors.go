package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// translate maps PostgreSQL errors onto the store error types.
// Errors it does not recognise are returned unchanged.
func translate(collection string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	kind := store.ConstraintKind("")
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		kind = store.KindUnique
	case pgerrcode.ForeignKeyViolation:
		kind = store.KindForeignKey
	case pgerrcode.NotNullViolation:
		kind = store.KindNotNull
	case pgerrcode.CheckViolation:
		kind = store.KindCheck
	case pgerrcode.DependentObjectsStillExist:
		kind = store.KindDependency
	case pgerrcode.SerializationFailure:
		kind = store.KindSerialization
	case pgerrcode.UndefinedTable:
		return &store.SchemaError{Collection: collection, Reason: "collection is not defined"}
	default:
		return err
	}

	if pgErr.TableName != "" {
		collection = pgErr.TableName
	}
	return &store.ConstraintError{
		Collection: collection,
		Constraint: pgErr.ConstraintName,
		Kind:       kind,
		Err:        err,
	}
}
