// Package applier implements C10: the narrow boundary between the
// translated DDL/DML this core produces and the live target database.
// Grounded on the teacher's internal/apply.Applier, which ran generated
// migration SQL against a live MySQL target inside a transaction with
// preflight/dry-run/confirmation UX; this adaptation drops the
// interactive machinery (the worker loop runs unattended) but keeps the
// transaction-per-statement-group shape and the go-sql-driver/mysql
// target wiring.
package applier

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"synchdb/internal/dml"
)

// Applier is the contract C9/C10 consume (SPEC_FULL.md §6): execute one
// translated DDL statement, execute one translated DML change, or
// evaluate a user-supplied transform-expression fragment.
type Applier interface {
	ExecuteDDL(ctx context.Context, sql string) error
	ExecuteDML(ctx context.Context, change *dml.Change) error
	EvaluateTransformExpression(ctx context.Context, expr string, s, w, r *string) (string, error)
}

// SQLApplier is a database/sql-backed Applier. It is target-driver
// agnostic: New takes an already-opened *sql.DB, so the worker loop picks
// the driver (go-sql-driver/mysql is blank-imported here as the default,
// matching the teacher's own cmd/smf/main.go blank import).
type SQLApplier struct {
	DB *sql.DB
}

// New builds a SQLApplier over an already-opened connection.
func New(db *sql.DB) *SQLApplier {
	return &SQLApplier{DB: db}
}

// ExecuteDDL runs one DDL statement in its own transaction, per
// SPEC_FULL.md §6 "runs in its own transaction on target."
func (a *SQLApplier) ExecuteDDL(ctx context.Context, statement string) error {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("applier: begin ddl transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, statement); err != nil {
		tx.Rollback()
		return fmt.Errorf("applier: execute ddl %q: %w", statement, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("applier: commit ddl: %w", err)
	}
	return nil
}

// ExecuteDML runs one translated DML change: a literal SQL statement in
// SQL mode, or a parameterized insert/update/delete built from the
// structured Row in direct-apply mode (spec.md §6: "locates the row by
// the table's replica-identity or primary-key index (else by sequential
// scan)" — this implementation uses the before-row's full column set as
// the locating predicate, since the schema cache does not track a
// declared replica identity).
func (a *SQLApplier) ExecuteDML(ctx context.Context, change *dml.Change) error {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("applier: begin dml transaction: %w", err)
	}

	if err := a.execChange(ctx, tx, change); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("applier: commit dml: %w", err)
	}
	return nil
}

func (a *SQLApplier) execChange(ctx context.Context, tx *sql.Tx, change *dml.Change) error {
	if change.SQL != "" {
		if _, err := tx.ExecContext(ctx, change.SQL); err != nil {
			return fmt.Errorf("applier: execute dml %q: %w", change.SQL, err)
		}
		return nil
	}

	row := change.Row
	if row == nil {
		return fmt.Errorf("applier: change has neither SQL text nor a structured row")
	}

	switch row.Op {
	case "c", "r":
		return a.execInsert(ctx, tx, row)
	case "d":
		return a.execDelete(ctx, tx, row)
	case "u":
		return a.execUpdate(ctx, tx, row)
	default:
		return fmt.Errorf("applier: unknown op %q", row.Op)
	}
}

func (a *SQLApplier) execInsert(ctx context.Context, tx *sql.Tx, row *dml.Row) error {
	stmt, args := insertStatement(row)
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("applier: insert into %s.%s: %w", row.Schema, row.Table, err)
	}
	return nil
}

func (a *SQLApplier) execDelete(ctx context.Context, tx *sql.Tx, row *dml.Row) error {
	stmt, args, err := deleteStatement(row)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("applier: delete from %s.%s: %w", row.Schema, row.Table, err)
	}
	return nil
}

func (a *SQLApplier) execUpdate(ctx context.Context, tx *sql.Tx, row *dml.Row) error {
	stmt, args, err := updateStatement(row)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("applier: update %s.%s: %w", row.Schema, row.Table, err)
	}
	return nil
}

// insertStatement, deleteStatement, and updateStatement build the
// placeholder-bound statement and argument list for one structured Row,
// split out from their exec* callers so the statement shape is testable
// without a live *sql.DB.
func insertStatement(row *dml.Row) (string, []any) {
	names := make([]string, len(row.After))
	placeholders := make([]string, len(row.After))
	args := make([]any, len(row.After))
	for i, c := range row.After {
		names[i] = quoteIdent(c.Name)
		placeholders[i] = "?"
		args[i] = literalArg(c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdent(row.Schema), quoteIdent(row.Table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	return stmt, args
}

func deleteStatement(row *dml.Row) (string, []any, error) {
	where, args, err := wherePredicate(row.Before)
	if err != nil {
		return "", nil, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s.%s WHERE %s", quoteIdent(row.Schema), quoteIdent(row.Table), where)
	return stmt, args, nil
}

func updateStatement(row *dml.Row) (string, []any, error) {
	var sets []string
	var args []any
	for _, c := range row.After {
		sets = append(sets, quoteIdent(c.Name)+" = ?")
		args = append(args, literalArg(c))
	}
	where, whereArgs, err := wherePredicate(row.Before)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s", quoteIdent(row.Schema), quoteIdent(row.Table), strings.Join(sets, ", "), where)
	return stmt, args, nil
}

func wherePredicate(before []dml.ColumnLiteral) (string, []any, error) {
	if len(before) == 0 {
		return "", nil, fmt.Errorf("applier: no before-row to locate the target record by")
	}
	var preds []string
	var args []any
	for _, c := range before {
		if c.IsNull {
			preds = append(preds, quoteIdent(c.Name)+" IS NULL")
			continue
		}
		preds = append(preds, quoteIdent(c.Name)+" = ?")
		args = append(args, literalArg(c))
	}
	return strings.Join(preds, " AND "), args, nil
}

func literalArg(c dml.ColumnLiteral) any {
	if c.IsNull {
		return nil
	}
	return c.Value
}

// EvaluateTransformExpression substitutes %s/%w/%r placeholders in a
// user-supplied target-SQL fragment (spec.md §4.5's expression rule) with
// the converted value, geometry WKB, and SRID respectively. This is a
// pure textual substitution — the resulting fragment is embedded inline
// in the statement C9 is building, not sent to the target as a separate
// round trip.
func (a *SQLApplier) EvaluateTransformExpression(ctx context.Context, expr string, s, w, r *string) (string, error) {
	out := expr
	out = strings.ReplaceAll(out, "%s", deref(s))
	out = strings.ReplaceAll(out, "%w", deref(w))
	out = strings.ReplaceAll(out, "%r", deref(r))
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// quoteIdent backtick-quotes an identifier for the direct-apply
// statements this package builds itself. This intentionally differs from
// internal/ddl's and internal/dml's double-quote convention: those
// packages emit target-syntax-agnostic (Postgres-flavored, per the
// original synchdb's actual target) SQL text that this applier executes
// verbatim in SQL mode, while the insert/update/delete text built here
// for direct-apply mode is executed directly against the wired
// go-sql-driver/mysql connection and so must use MySQL's own identifier
// quoting (see DESIGN.md for the target-dialect tension this reflects).
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
