// Package ddl implements the DDL parser (C4) and DDL translator (C7): it
// turns an envelope's tableChanges payload into a model.DDLRecord, and
// turns a model.DDLRecord back into target-dialect DDL text. Grounded on
// the teacher's internal/parser (AST-walking column extraction) for the
// parse half and internal/dialect + internal/diff (registry dispatch,
// compareColumns triage) for the translate half.
package ddl

import (
	"encoding/json"
	"strconv"

	"synchdb/internal/envelope"
	"synchdb/internal/model"
)

// Parse drives the envelope reader over payload.tableChanges.0 per
// spec.md §4.2. Returns (nil, nil) when the event is not a DDL event
// (both id and kind are the NULL sentinel) — not an error.
func Parse(e *envelope.Envelope) (*model.DDLRecord, error) {
	id := e.GetString("payload.tableChanges.0.id", true)
	kindStr := e.GetString("payload.tableChanges.0.type", true)

	if id == envelope.Null && kindStr == envelope.Null {
		return nil, nil
	}

	rec := &model.DDLRecord{
		ID:   id,
		Kind: model.DDLKind(kindStr),
	}

	if pkRaw := e.GetString("payload.tableChanges.0.table.primaryKeyColumnNames", false); pkRaw != envelope.Null {
		var pk []string
		if err := json.Unmarshal([]byte(pkRaw), &pk); err == nil {
			rec.PrimaryKeyColumnNames = pk
		}
	}

	if rec.Kind == model.DDLDrop {
		return rec, nil
	}

	sub, ok := e.GetSubtree("payload.tableChanges.0.table.columns")
	if !ok {
		return rec, nil
	}
	cols, ok := sub.([]any)
	if !ok {
		return rec, nil
	}

	for _, c := range cols {
		obj, ok := c.(map[string]any)
		if !ok {
			continue
		}
		rec.Columns = append(rec.Columns, parseColumn(obj))
	}

	return rec, nil
}

// parseColumn consumes the fixed key set spec.md §4.2 names; any other
// key present in the object (and any nested array such as enumValues'
// siblings) is ignored.
func parseColumn(obj map[string]any) model.ColumnDecl {
	var col model.ColumnDecl

	col.Name = stringField(obj, "name")
	col.TypeName = stringField(obj, "typeName")
	col.Length = intField(obj, "length")
	col.Scale = intField(obj, "scale")
	col.Optional = boolField(obj, "optional")
	col.Position = intField(obj, "position")
	col.AutoIncremented = boolField(obj, "autoIncremented")
	col.CharsetName = stringField(obj, "charsetName")

	if v, ok := obj["defaultValueExpression"]; ok && v != nil {
		col.DefaultValueExpr = stringField(obj, "defaultValueExpression")
		col.HasDefaultValueExpr = true
	}

	if raw, ok := obj["enumValues"]; ok {
		if arr, ok := raw.([]any); ok {
			for _, v := range arr {
				if s, ok := v.(string); ok {
					col.EnumValues = append(col.EnumValues, s)
				}
			}
		}
	}

	return col
}

func stringField(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func intField(obj map[string]any, key string) int {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			f, ferr := t.Float64()
			if ferr == nil {
				return int(f)
			}
			return 0
		}
		return n
	case float64:
		return int(t)
	default:
		return 0
	}
}

func boolField(obj map[string]any, key string) bool {
	v, ok := obj[key]
	if !ok || v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
