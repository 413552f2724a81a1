package dml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synchdb/internal/convert"
	"synchdb/internal/model"
)

func col(name string, position int, dataType model.TargetTypeID, value string, isNull bool) model.ColumnValue {
	return model.ColumnValue{
		Name:             name,
		RemoteColumnName: name,
		Value:            value,
		IsNull:           isNull,
		DataType:         dataType,
		Position:         position,
	}
}

func TestTranslateInsertStatement(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpCreate,
		MappedObjectID: "inventory.orders",
		Schema:         "inventory",
		Table:          "orders",
		ColumnValuesAfter: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("note", 2, model.TypeText, "hi", false),
		},
	}

	tr := NewTranslator(ModeSQL, convert.New(nil, nil))
	sql, row, err := tr.Translate(rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Equal(t, `INSERT INTO "inventory"."orders" ("id", "note") VALUES (1, 'hi')`, sql)
}

func TestTranslateDeleteStatementUsesBeforeRow(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpDelete,
		MappedObjectID: "inventory.orders",
		Schema:         "inventory",
		Table:          "orders",
		ColumnValuesBefore: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
		},
	}

	tr := NewTranslator(ModeSQL, convert.New(nil, nil))
	sql, row, err := tr.Translate(rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Equal(t, `DELETE FROM "inventory"."orders" WHERE "id" = 1`, sql)
}

func TestTranslateUpdateStatementSetsAfterWhereBefore(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpUpdate,
		MappedObjectID: "inventory.orders",
		Schema:         "inventory",
		Table:          "orders",
		ColumnValuesBefore: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("qty", 2, model.TypeInteger, "5", false),
		},
		ColumnValuesAfter: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("qty", 2, model.TypeInteger, "9", false),
		},
	}

	tr := NewTranslator(ModeSQL, convert.New(nil, nil))
	sql, _, err := tr.Translate(rec)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "inventory"."orders" SET "id" = 1, "qty" = 9 WHERE "id" = 1 AND "qty" = 5`, sql)
}

func TestTranslateUpdateNullBeforeColumnUsesLiteralNull(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpUpdate,
		MappedObjectID: "inventory.orders",
		Schema:         "inventory",
		Table:          "orders",
		ColumnValuesBefore: []model.ColumnValue{
			col("note", 1, model.TypeText, "", true),
		},
		ColumnValuesAfter: []model.ColumnValue{
			col("note", 1, model.TypeText, "hi", false),
		},
	}

	tr := NewTranslator(ModeSQL, convert.New(nil, nil))
	sql, _, err := tr.Translate(rec)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "inventory"."orders" SET "note" = 'hi' WHERE "note" = null`, sql)
}

func TestTranslateUpdateMismatchedColumnCountIsFatal(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpUpdate,
		MappedObjectID: "inventory.orders",
		ColumnValuesBefore: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
		},
	}

	tr := NewTranslator(ModeSQL, convert.New(nil, nil))
	_, _, err := tr.Translate(rec)
	assert.Error(t, err)
}

func TestTranslateDirectApplyProducesStructuredRow(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpCreate,
		MappedObjectID: "inventory.orders",
		Schema:         "inventory",
		Table:          "orders",
		TableOID:       7,
		ColumnValuesAfter: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("note", 2, model.TypeText, "hi", false),
		},
	}

	tr := NewTranslator(ModeDirectApply, convert.New(nil, nil))
	sql, row, err := tr.Translate(rec)
	require.NoError(t, err)
	assert.Empty(t, sql)
	require.NotNil(t, row)
	assert.Equal(t, int64(7), row.TableOID)
	require.Len(t, row.After, 2)
	assert.Equal(t, "id", row.After[0].Name)
	assert.Equal(t, "1", row.After[0].Value)
	assert.Equal(t, "hi", row.After[1].Value) // unquoted in direct-apply mode
}

func TestTranslateDirectApplyChecksBeforeAfterAlignment(t *testing.T) {
	rec := &model.DMLRecord{
		Op:             model.OpUpdate,
		MappedObjectID: "inventory.orders",
		ColumnValuesBefore: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("qty", 3, model.TypeInteger, "5", false),
		},
		ColumnValuesAfter: []model.ColumnValue{
			col("id", 1, model.TypeInteger, "1", false),
			col("qty", 2, model.TypeInteger, "9", false),
		},
	}

	tr := NewTranslator(ModeDirectApply, convert.New(nil, nil))
	_, _, err := tr.Translate(rec)
	assert.Error(t, err)
}
