package dml

import (
	"fmt"
	"strings"

	"synchdb/internal/convert"
	"synchdb/internal/model"
)

// Mode selects which of spec.md §4.6's two translation shapes a
// Translator produces.
type Mode int

const (
	// ModeSQL renders a ready-to-execute SQL statement string.
	ModeSQL Mode = iota
	// ModeDirectApply renders a structured Row for a driver that binds
	// values itself rather than interpolating literal text into SQL.
	ModeDirectApply
)

// ColumnLiteral is one column's converted value inside a direct-apply Row.
type ColumnLiteral struct {
	Name     string
	Value    string
	IsNull   bool
	DataType model.TargetTypeID
	Position int
}

// Row is the direct-apply structured form of one DML record (spec.md
// §4.6's "structured record" branch).
type Row struct {
	Op       model.DMLOp
	Schema   string
	Table    string
	TableOID int64
	Before   []ColumnLiteral
	After    []ColumnLiteral
}

// Translator turns a model.DMLRecord into either a SQL statement string or
// a structured Row, per the process-wide mode the worker loop selects for
// a connector (spec.md §4.6, C8).
type Translator struct {
	Mode    Mode
	Convert *convert.Converter
}

// NewTranslator builds a Translator.
func NewTranslator(mode Mode, converter *convert.Converter) *Translator {
	return &Translator{Mode: mode, Convert: converter}
}

// Change is the applier-facing result of translating one DML record: a
// ready SQL statement in ModeSQL, or a structured Row in ModeDirectApply,
// matching the Applier.ExecuteDML boundary of SPEC_FULL.md §6.
type Change struct {
	SQL string
	Row *Row
}

// TranslateChange wraps Translate's two-return-value shape into the
// single Change value the applier interface consumes.
func (t *Translator) TranslateChange(rec *model.DMLRecord) (*Change, error) {
	sql, row, err := t.Translate(rec)
	if err != nil {
		return nil, err
	}
	return &Change{SQL: sql, Row: row}, nil
}

// Translate implements spec.md §4.6. For ModeSQL it returns a non-empty
// sqlStatement and a nil row; for ModeDirectApply the reverse.
func (t *Translator) Translate(rec *model.DMLRecord) (sqlStatement string, row *Row, err error) {
	if rec.Op == model.OpUpdate && len(rec.ColumnValuesBefore) != len(rec.ColumnValuesAfter) {
		return "", nil, fmt.Errorf("dml: update on %s: before/after column counts differ (%d vs %d)",
			rec.MappedObjectID, len(rec.ColumnValuesBefore), len(rec.ColumnValuesAfter))
	}

	if t.Mode == ModeDirectApply {
		row, err := t.translateRow(rec)
		return "", row, err
	}
	sql, err := t.translateSQL(rec)
	return sql, nil, err
}

func (t *Translator) translateRow(rec *model.DMLRecord) (*Row, error) {
	before, err := t.literalsFor(rec.ColumnValuesBefore, rec.MappedObjectID)
	if err != nil {
		return nil, err
	}
	after, err := t.literalsFor(rec.ColumnValuesAfter, rec.MappedObjectID)
	if err != nil {
		return nil, err
	}

	if rec.Op == model.OpUpdate {
		for i := range before {
			if before[i].Position != after[i].Position {
				return nil, fmt.Errorf("dml: update on %s: before/after column at index %d misaligned (position %d vs %d)",
					rec.MappedObjectID, i, before[i].Position, after[i].Position)
			}
		}
	}

	return &Row{
		Op:       rec.Op,
		Schema:   rec.Schema,
		Table:    rec.Table,
		TableOID: rec.TableOID,
		Before:   before,
		After:    after,
	}, nil
}

func (t *Translator) literalsFor(values []model.ColumnValue, remoteObjectID string) ([]ColumnLiteral, error) {
	out := make([]ColumnLiteral, len(values))
	for i, cv := range values {
		text, err := t.Convert.Convert(cv, false, remoteObjectID)
		if err != nil {
			return nil, fmt.Errorf("dml: convert column %q: %w", cv.Name, err)
		}
		out[i] = ColumnLiteral{
			Name:     cv.Name,
			Value:    text,
			IsNull:   cv.IsNull,
			DataType: cv.DataType,
			Position: cv.Position,
		}
	}
	return out, nil
}

func (t *Translator) translateSQL(rec *model.DMLRecord) (string, error) {
	switch rec.Op {
	case model.OpRead, model.OpCreate:
		return t.insertStatement(rec)
	case model.OpDelete:
		return t.deleteStatement(rec)
	case model.OpUpdate:
		return t.updateStatement(rec)
	default:
		return "", fmt.Errorf("dml: unknown op %q", rec.Op)
	}
}

func (t *Translator) insertStatement(rec *model.DMLRecord) (string, error) {
	names := make([]string, len(rec.ColumnValuesAfter))
	literals := make([]string, len(rec.ColumnValuesAfter))
	for i, cv := range rec.ColumnValuesAfter {
		text, err := t.Convert.Convert(cv, true, rec.MappedObjectID)
		if err != nil {
			return "", fmt.Errorf("dml: convert column %q: %w", cv.Name, err)
		}
		names[i] = quoteIdent(cv.Name)
		literals[i] = text
	}
	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdent(rec.Schema), quoteIdent(rec.Table),
		strings.Join(names, ", "), strings.Join(literals, ", ")), nil
}

func (t *Translator) deleteStatement(rec *model.DMLRecord) (string, error) {
	where, err := t.whereClause(rec.ColumnValuesBefore, rec.MappedObjectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s.%s WHERE %s",
		quoteIdent(rec.Schema), quoteIdent(rec.Table), where), nil
}

func (t *Translator) updateStatement(rec *model.DMLRecord) (string, error) {
	var sets []string
	for _, cv := range rec.ColumnValuesAfter {
		text, err := t.Convert.Convert(cv, true, rec.MappedObjectID)
		if err != nil {
			return "", fmt.Errorf("dml: convert column %q: %w", cv.Name, err)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", quoteIdent(cv.Name), text))
	}
	where, err := t.whereClause(rec.ColumnValuesBefore, rec.MappedObjectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s",
		quoteIdent(rec.Schema), quoteIdent(rec.Table), strings.Join(sets, ", "), where), nil
}

// whereClause builds an AND-joined equality predicate over every before
// column. spec.md §4.6 leaves key selection to the whole before-row rather
// than a declared primary key, since the schema cache does not track one.
func (t *Translator) whereClause(values []model.ColumnValue, remoteObjectID string) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("dml: no before-values to build a WHERE clause from")
	}
	var preds []string
	for _, cv := range values {
		text, err := t.Convert.Convert(cv, true, remoteObjectID)
		if err != nil {
			return "", fmt.Errorf("dml: convert column %q: %w", cv.Name, err)
		}
		preds = append(preds, fmt.Sprintf("%s = %s", quoteIdent(cv.Name), text))
	}
	return strings.Join(preds, " AND "), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
