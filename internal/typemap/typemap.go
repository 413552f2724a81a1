// Package typemap holds the per-source-dialect default type registries
// (C3): a table of source-type -> target-type translations consulted only
// when the rule store (internal/rules) has no override. Grounded on the
// teacher's internal/core/raw_types.go per-dialect type-keyword tables
// (toSet-style map construction) and on internal/introspect's
// register-by-dialect pattern, adapted from "is this a valid type for
// dialect D" to "what does this source type become on the target".
package typemap

import "synchdb/internal/model"

// Entry is one default translation: sourceTypeName (optionally
// auto-increment-qualified) -> (targetTypeName, targetLength). A
// targetLength of -1 means "keep the incoming length" (spec.md §3).
type Entry struct {
	TargetTypeName string
	TargetLength   int
}

type key struct {
	sourceTypeName  string
	autoIncremented bool
}

// Registry is a per-dialect default type table.
type Registry struct {
	entries map[key]Entry
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[key]Entry)}
}

func (r *Registry) add(sourceTypeName string, autoIncremented bool, targetTypeName string, targetLength int) {
	r.entries[key{sourceTypeName: sourceTypeName, autoIncremented: autoIncremented}] = Entry{
		TargetTypeName: targetTypeName,
		TargetLength:   targetLength,
	}
}

// Lookup resolves a (sourceTypeName, autoIncremented) pair against the
// registry's default table. Callers consult this only after the rule
// store has already missed (spec.md §4.4's "type lookup order").
func (r *Registry) Lookup(sourceTypeName string, autoIncremented bool) (Entry, bool) {
	e, ok := r.entries[key{sourceTypeName: sourceTypeName, autoIncremented: autoIncremented}]
	return e, ok
}

// ForDialect returns the default type registry for a source dialect. The
// Oracle registry is present but deliberately unpopulated (spec.md §9
// open question: "Oracle dialect... the specification treats Oracle as a
// present-but-inert dialect tag and leaves its registry unpopulated").
func ForDialect(d model.SourceDialect) *Registry {
	switch d {
	case model.DialectMySQL:
		return NewMySQL()
	case model.DialectSQLServer:
		return NewSQLServer()
	case model.DialectOracle:
		return NewOracle()
	default:
		return newRegistry()
	}
}

// NewMySQL returns MySQL's default source-type -> target-type table.
// Values are grounded on _examples/original_source/format_converter.c's
// static MySQL mapping table (init*Mapping), reproduced literally per
// SPEC_FULL.md §12.
func NewMySQL() *Registry {
	r := newRegistry()

	r.add("TINYINT", false, "SMALLINT", -1)
	r.add("TINYINT", true, "SMALLINT", -1)
	r.add("SMALLINT", false, "SMALLINT", -1)
	r.add("SMALLINT", true, "SMALLSERIAL", -1)
	r.add("MEDIUMINT", false, "INTEGER", -1)
	r.add("MEDIUMINT", true, "SERIAL", -1)
	r.add("INT", false, "INTEGER", -1)
	r.add("INT", true, "SERIAL", -1)
	r.add("INTEGER", false, "INTEGER", -1)
	r.add("INTEGER", true, "SERIAL", -1)
	r.add("BIGINT", false, "BIGINT", -1)
	r.add("BIGINT", true, "BIGSERIAL", -1)
	r.add("FLOAT", false, "REAL", -1)
	r.add("DOUBLE", false, "DOUBLE PRECISION", -1)
	r.add("DECIMAL", false, "NUMERIC", -1)
	r.add("NUMERIC", false, "NUMERIC", -1)
	r.add("BIT(1)", false, "BOOLEAN", -1) // §4.4 special case
	r.add("BOOL", false, "BOOLEAN", -1)
	r.add("BOOLEAN", false, "BOOLEAN", -1)

	// Unsigned variants widen the target type rather than reusing the
	// signed entry (format_converter.c's separate unsigned table): the
	// CHECK(col >= 0) constraint (internal/ddl) only guards the low end,
	// so the target still needs headroom for the wider unsigned range.
	r.add("SMALLINT UNSIGNED", false, "INT", -1)
	r.add("INT UNSIGNED", false, "BIGINT", -1)
	r.add("INTEGER UNSIGNED", false, "BIGINT", -1)
	r.add("BIGINT UNSIGNED", false, "NUMERIC", -1)

	r.add("DATE", false, "DATE", -1)
	r.add("DATETIME", false, "TIMESTAMP", -1)
	r.add("TIMESTAMP", false, "TIMESTAMPTZ", -1)
	r.add("TIME", false, "TIME", -1)
	r.add("YEAR", false, "SMALLINT", -1)

	r.add("CHAR", false, "BPCHAR", -1)
	r.add("VARCHAR", false, "VARCHAR", -1)
	r.add("TINYTEXT", false, "TEXT", -1)
	r.add("TEXT", false, "TEXT", -1)
	r.add("MEDIUMTEXT", false, "TEXT", -1)
	r.add("LONGTEXT", false, "TEXT", -1)

	r.add("BINARY", false, "BYTEA", -1)
	r.add("VARBINARY", false, "BYTEA", -1)
	r.add("TINYBLOB", false, "BYTEA", -1)
	r.add("BLOB", false, "BYTEA", -1)
	r.add("MEDIUMBLOB", false, "BYTEA", -1)
	r.add("LONGBLOB", false, "BYTEA", -1)

	r.add("JSON", false, "JSONB", -1)
	r.add("ENUM", false, "TEXT", -1)
	r.add("SET", false, "TEXT", -1)

	r.add("GEOMETRY", false, "BYTEA", -1)
	r.add("POINT", false, "BYTEA", -1)

	return r
}

// NewSQLServer returns SQL Server's default source-type -> target-type
// table, grounded the same way as NewMySQL.
func NewSQLServer() *Registry {
	r := newRegistry()

	r.add("TINYINT", false, "SMALLINT", -1)
	r.add("SMALLINT", false, "SMALLINT", -1)
	r.add("INT", false, "INTEGER", -1)
	r.add("BIGINT", false, "BIGINT", -1)
	r.add("BIT", false, "BOOLEAN", -1)
	r.add("BIT(1)", false, "BOOLEAN", -1) // §4.4 special case, same as MySQL
	r.add("DECIMAL", false, "NUMERIC", -1)
	r.add("NUMERIC", false, "NUMERIC", -1)
	r.add("MONEY", false, "MONEY", -1)
	r.add("SMALLMONEY", false, "MONEY", -1)
	r.add("FLOAT", false, "DOUBLE PRECISION", -1)
	r.add("REAL", false, "REAL", -1)

	r.add("DATE", false, "DATE", -1)
	r.add("DATETIME", false, "TIMESTAMP", -1)
	r.add("DATETIME2", false, "TIMESTAMP", -1)
	r.add("SMALLDATETIME", false, "TIMESTAMP", -1)
	r.add("DATETIMEOFFSET", false, "TIMESTAMPTZ", -1)
	r.add("TIME", false, "TIME", -1)

	r.add("CHAR", false, "BPCHAR", -1)
	r.add("VARCHAR", false, "VARCHAR", -1)
	r.add("NCHAR", false, "BPCHAR", -1)
	r.add("NVARCHAR", false, "VARCHAR", -1)
	r.add("TEXT", false, "TEXT", -1)
	r.add("NTEXT", false, "TEXT", -1)

	r.add("BINARY", false, "BYTEA", -1)
	r.add("VARBINARY", false, "BYTEA", -1)
	r.add("IMAGE", false, "BYTEA", -1)

	r.add("UNIQUEIDENTIFIER", false, "UUID", -1)
	r.add("XML", false, "TEXT", -1)

	return r
}

// NewOracle returns a non-nil but unpopulated registry: the Oracle
// initialization and type table are empty in the original source (spec.md
// §9 open question), so every lookup misses and the DDL translator falls
// through to "pass the source type through unchanged".
func NewOracle() *Registry {
	return newRegistry()
}
