// Package dml implements the DML parser (C5) and DML translator (C8): it
// resolves one row-level change event against the target schema cache
// and produces a model.DMLRecord, then turns that record into either a
// target-dialect SQL string or a structured row for direct application.
// Grounded on the teacher's internal/parser (schema-aware column
// resolution) for the parse half and internal/apply's transaction
// handling for the translate half's two execution modes.
package dml

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"synchdb/internal/envelope"
	"synchdb/internal/model"
	"synchdb/internal/rules"
	"synchdb/internal/schemacache"
)

// Parser resolves one DML envelope against a connector's rule store and
// schema cache (C6).
type Parser struct {
	Rules *rules.Store
	Cache *schemacache.Cache
}

// NewParser builds a Parser for one connector.
func NewParser(ruleStore *rules.Store, cache *schemacache.Cache) *Parser {
	return &Parser{Rules: ruleStore, Cache: cache}
}

// Parse implements spec.md §4.3. ctx bounds the schema-cache populate
// query the parser issues on a cache miss.
func (p *Parser) Parse(ctx context.Context, e *envelope.Envelope) (*model.DMLRecord, error) {
	db := e.GetString("payload.source.db", true)
	schema := e.GetString("payload.source.schema", true)
	table := e.GetString("payload.source.table", true)
	if db == envelope.Null || table == envelope.Null {
		return nil, fmt.Errorf("dml: payload.source.db and payload.source.table are required")
	}

	remoteObjectID := db
	if schema != envelope.Null {
		remoteObjectID = db + "." + schema
	}
	remoteObjectID = remoteObjectID + "." + table

	mappedSchema, mappedTable := p.resolveObject(remoteObjectID)
	mappedObjectID := mappedSchema + "." + mappedTable

	entry, err := p.Cache.Get(ctx, mappedSchema, mappedTable)
	if err != nil {
		return nil, fmt.Errorf("dml: schema resolution for %s: %w", mappedObjectID, err)
	}

	op := model.DMLOp(e.GetString("payload.op", true))

	rec := &model.DMLRecord{
		Op:             op,
		RemoteObjectID: remoteObjectID,
		MappedObjectID: mappedObjectID,
		Schema:         mappedSchema,
		Table:          mappedTable,
		TableOID:       entry.TableID,
	}

	switch op {
	case model.OpRead, model.OpCreate:
		rec.ColumnValuesAfter, err = p.parseRow(e, "payload.after", schemaFieldIndexAfter, remoteObjectID, mappedObjectID, entry, op)
	case model.OpDelete:
		rec.ColumnValuesBefore, err = p.parseRow(e, "payload.before", schemaFieldIndexBefore, remoteObjectID, mappedObjectID, entry, op)
	case model.OpUpdate:
		rec.ColumnValuesBefore, err = p.parseRow(e, "payload.before", schemaFieldIndexBefore, remoteObjectID, mappedObjectID, entry, op)
		if err == nil {
			rec.ColumnValuesAfter, err = p.parseRow(e, "payload.after", schemaFieldIndexAfter, remoteObjectID, mappedObjectID, entry, op)
		}
	default:
		return nil, fmt.Errorf("dml: unknown op %q", op)
	}
	if err != nil {
		return nil, err
	}

	model.SortColumnValuesByPosition(rec.ColumnValuesBefore)
	model.SortColumnValuesByPosition(rec.ColumnValuesAfter)

	return rec, nil
}

func (p *Parser) resolveObject(remoteObjectID string) (schema, table string) {
	if dest, ok := p.Rules.LookupObjectName(remoteObjectID, rules.ObjectTable); ok {
		return splitMapped(dest)
	}
	return defaultMapping(remoteObjectID)
}

// schemaFieldIndex is the Kafka-Connect-schema convention this reader
// relies on for get-additional-parameters (spec.md §4.3 step 3): the
// envelope's top-level schema.fields array carries "before" at index 0
// and "after" at index 1, ahead of source/op/ts_ms/transaction.
const (
	schemaFieldIndexBefore = 0
	schemaFieldIndexAfter  = 1
)

func (p *Parser) parseRow(e *envelope.Envelope, path string, schemaFieldIndex int, remoteObjectID, mappedObjectID string, entry *schemacache.Entry, op model.DMLOp) ([]model.ColumnValue, error) {
	sub, ok := e.GetSubtree(path)
	if !ok {
		return nil, nil
	}
	obj, ok := sub.(map[string]any)
	if !ok {
		return nil, nil
	}

	var out []model.ColumnValue
	for colName, raw := range obj {
		targetName := colName
		qualifiedColumnID := remoteObjectID + "." + colName
		if renamed, ok := p.Rules.LookupObjectName(qualifiedColumnID, rules.ObjectColumn); ok {
			targetName = renamed
		}

		info, ok := entry.ByName[targetName]
		if !ok {
			if op == model.OpUpdate || op == model.OpDelete {
				return nil, fmt.Errorf("dml: column %q not found on %s (required for %s)", targetName, mappedObjectID, op)
			}
			continue // c/r: the column is skipped without error; no warning is logged here
		}

		scale, hasScale, timerep := additionalParams(e, schemaFieldIndex, colName)

		value, isNull := scalarText(raw)
		out = append(out, model.ColumnValue{
			Name:             targetName,
			RemoteColumnName: colName,
			Value:            value,
			IsNull:           isNull,
			DataType:         info.TargetType,
			Position:         info.Attnum,
			Typemod:          info.Typemod,
			Scale:            scale,
			HasScale:         hasScale,
			Timerep:          timerep,
		})
	}

	return out, nil
}

func scalarText(raw any) (value string, isNull bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, false
	case json.Number:
		return v.String(), false
	case bool:
		if v {
			return "true", false
		}
		return "false", false
	case map[string]any, []any:
		serialized, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(serialized), false
	default:
		return fmt.Sprintf("%v", v), false
	}
}

// additionalParams implements get-additional-parameters (spec.md §4.3
// step 3): reading the envelope's schema descriptor to resolve a
// Decimal/Money column's scale, or a temporal column's timerep, from its
// Kafka-Connect logical schema name and parameters.
func additionalParams(e *envelope.Envelope, schemaFieldIndex int, colName string) (scale int, hasScale bool, timerep model.Timerep) {
	sub, ok := e.GetSubtree(fmt.Sprintf("schema.fields.%d.fields", schemaFieldIndex))
	if !ok {
		return 0, false, model.TimerepUndef
	}
	fields, ok := sub.([]any)
	if !ok {
		return 0, false, model.TimerepUndef
	}

	for _, f := range fields {
		field, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := field["field"].(string); name != colName {
			continue
		}

		logicalName, _ := field["name"].(string)
		timerep = timerepForLogicalName(logicalName)

		if params, ok := field["parameters"].(map[string]any); ok {
			if raw, ok := params["scale"]; ok {
				if n, err := strconv.Atoi(fmt.Sprintf("%v", raw)); err == nil {
					scale, hasScale = n, true
				}
			}
		}
		break
	}

	if timerep == "" {
		timerep = model.TimerepUndef
	}
	return scale, hasScale, timerep
}

func timerepForLogicalName(logicalName string) model.Timerep {
	switch logicalName {
	case "io.debezium.time.Date":
		return model.TimerepDate
	case "io.debezium.time.Time":
		return model.TimerepTime
	case "io.debezium.time.MicroTime":
		return model.TimerepMicroTime
	case "io.debezium.time.NanoTime":
		return model.TimerepNanoTime
	case "io.debezium.time.Timestamp":
		return model.TimerepTimestamp
	case "io.debezium.time.MicroTimestamp":
		return model.TimerepMicroTimestamp
	case "io.debezium.time.NanoTimestamp":
		return model.TimerepNanoTimestamp
	case "io.debezium.time.ZonedTimestamp":
		return model.TimerepZonedTimestamp
	default:
		return ""
	}
}

func defaultMapping(remoteObjectID string) (schema, table string) {
	parts := splitDotted(remoteObjectID)
	switch len(parts) {
	case 1:
		return "public", parts[0]
	case 2:
		return parts[0], parts[1]
	case 3:
		return parts[0], parts[2]
	default:
		return "public", parts[len(parts)-1]
	}
}

func splitMapped(dest string) (schema, table string) {
	parts := splitDotted(dest)
	if len(parts) == 1 {
		return "public", parts[0]
	}
	return parts[0], parts[len(parts)-1]
}

func splitDotted(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
