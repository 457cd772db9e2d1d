package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGInfo is the subset of a Postgres error worth logging. Both the pgx and
// lib/pq drivers are recognized.
type PGInfo struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// PostgresInfo extracts driver details from err, reporting false when no
// Postgres error is in the chain.
func PostgresInfo(err error) (PGInfo, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return PGInfo{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return PGInfo{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGInfo{}, false
}

// LogFields flattens err into structured log fields: the code, every link of
// the unwrap chain, and Postgres details when present.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"error":       err.Error(),
		"error_chain": chain(err),
	}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}
	if pg, ok := PostgresInfo(err); ok {
		fields["pg_code"] = pg.Code
		fields["pg_message"] = pg.Message
		if pg.Constraint != "" {
			fields["pg_constraint"] = pg.Constraint
		}
		if pg.Table != "" {
			fields["pg_table"] = pg.Table
		}
		if pg.Column != "" {
			fields["pg_column"] = pg.Column
		}
		if pg.Detail != "" {
			fields["pg_detail"] = pg.Detail
		}
	}
	return fields
}

func chain(err error) []string {
	var links []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		links = append(links, fmt.Sprintf("%T: %v", e, e))
	}
	return links
}
