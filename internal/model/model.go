// Package model holds the intermediate representation shared by the parser,
// translator, and value-conversion stages: the connector dialect tag, the
// DDL/DML records produced from a change event, and the schema-cache entry
// shape those records are translated against.
package model

import "fmt"

// SourceDialect identifies the upstream database engine that produced a
// change event. It is a tagged variant, not a free-form string, so that
// per-dialect code paths (type registry selection, SQL Server's
// scale-on-temporal DDL quirk) dispatch on this tag rather than on string
// comparison.
type SourceDialect string

const (
	DialectMySQL     SourceDialect = "mysql"
	DialectSQLServer SourceDialect = "sqlserver"
	DialectOracle    SourceDialect = "oracle"
	DialectUndef     SourceDialect = ""
)

// ParseSourceDialect maps the connector tag carried in
// payload.source.connector to a SourceDialect. An unrecognized tag yields
// DialectUndef, which callers must treat as present-but-inert rather than
// fatal (the Oracle dialect itself is also deliberately inert; see
// typemap.NewOracle).
func ParseSourceDialect(connector string) SourceDialect {
	switch connector {
	case "mysql":
		return DialectMySQL
	case "sqlserver":
		return DialectSQLServer
	case "oracle":
		return DialectOracle
	default:
		return DialectUndef
	}
}

// DDLKind identifies the shape of a parsed DDL record.
type DDLKind string

const (
	DDLCreate DDLKind = "CREATE"
	DDLAlter  DDLKind = "ALTER"
	DDLDrop   DDLKind = "DROP"
)

// ColumnDecl describes one column inside a DDL record, as carried by the
// upstream tableChanges[0].table.columns[] array.
type ColumnDecl struct {
	Name                 string
	TypeName             string
	Length               int
	Scale                int
	Optional             bool
	Position             int
	AutoIncremented      bool
	DefaultValueExpr     string
	HasDefaultValueExpr  bool
	EnumValues           []string
	CharsetName          string
}

// DDLRecord is the intermediate representation of a single DDL event,
// produced by the DDL parser (C4) and consumed by the DDL translator (C7).
type DDLRecord struct {
	ID                    string
	Kind                  DDLKind
	PrimaryKeyColumnNames []string
	Columns               []ColumnDecl
}

// DMLOp identifies the kind of row-level change a DML record carries.
type DMLOp string

const (
	OpRead   DMLOp = "r"
	OpCreate DMLOp = "c"
	OpUpdate DMLOp = "u"
	OpDelete DMLOp = "d"
)

// Timerep tags how an integer (or, for ZONEDTIMESTAMP, string) temporal
// value must be interpreted by the value converter (C9).
type Timerep string

const (
	TimerepDate             Timerep = "DATE"
	TimerepTime             Timerep = "TIME"
	TimerepMicroTime        Timerep = "MICROTIME"
	TimerepNanoTime         Timerep = "NANOTIME"
	TimerepTimestamp        Timerep = "TIMESTAMP"
	TimerepMicroTimestamp   Timerep = "MICROTIMESTAMP"
	TimerepNanoTimestamp    Timerep = "NANOTIMESTAMP"
	TimerepZonedTimestamp   Timerep = "ZONEDTIMESTAMP"
	TimerepUndef            Timerep = "UNDEF"
)

// ColumnValue is one column's before/after value inside a DML record, with
// the target-side type information already resolved against the schema
// cache (C6).
type ColumnValue struct {
	Name             string
	RemoteColumnName string
	Value            string
	IsNull           bool
	DataType         TargetTypeID
	Position         int
	Typemod          int
	Scale            int
	HasScale         bool
	Timerep          Timerep
}

// DMLRecord is the intermediate representation of a single row-level
// change event, produced by the DML parser (C5) and consumed by the DML
// translator (C8).
type DMLRecord struct {
	Op                  DMLOp
	RemoteObjectID       string
	MappedObjectID       string
	Schema               string
	Table                string
	TableOID             int64
	ColumnValuesBefore   []ColumnValue
	ColumnValuesAfter    []ColumnValue
}

// TargetTypeID identifies a target-native column type the value converter
// (C9) knows how to render. These correspond to the "Class" column of the
// spec's value-conversion table, not to any particular target SQL
// dialect's full type system.
type TargetTypeID string

const (
	TypeInteger     TargetTypeID = "integer"
	TypeFloat       TargetTypeID = "float"
	TypeBool        TargetTypeID = "bool"
	TypeNumeric     TargetTypeID = "numeric"
	TypeMoney       TargetTypeID = "money"
	TypeText        TargetTypeID = "text"
	TypeBit         TargetTypeID = "bit"
	TypeVarBit      TargetTypeID = "varbit"
	TypeDate        TargetTypeID = "date"
	TypeTimestamp   TargetTypeID = "timestamp"
	TypeTimestampTZ TargetTypeID = "timestamptz"
	TypeTime        TargetTypeID = "time"
	TypeBytea       TargetTypeID = "bytea"
	TypeJSONB       TargetTypeID = "jsonb"
	TypeUUID        TargetTypeID = "uuid"
	TypeDefault     TargetTypeID = "default"
)

// SortColumnValuesByPosition sorts vs in place by Position, ascending. The
// DML parser must call this before returning a record (the ordering
// invariant, spec.md §3/§8 invariant 1): aligning before/after lists with
// the target tuple descriptor requires strictly increasing positions.
func SortColumnValuesByPosition(vs []ColumnValue) {
	// Simple insertion sort: DML records are small (one row's columns),
	// so this avoids pulling in sort.Slice's interface-based comparator
	// overhead for the common case while staying stable.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j-1].Position > vs[j].Position; j-- {
			vs[j-1], vs[j] = vs[j], vs[j-1]
		}
	}
}

// QualifiedColumnID renders the "schema.table.column" key used to look up
// per-column type, object-name, and expression rules (spec.md §3).
func QualifiedColumnID(schema, table, column string) string {
	return fmt.Sprintf("%s.%s.%s", schema, table, column)
}

// String implements fmt.Stringer for DDLKind so log lines render cleanly.
func (k DDLKind) String() string { return string(k) }

// String implements fmt.Stringer for DMLOp so log lines render cleanly.
func (o DMLOp) String() string { return string(o) }
