package dml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synchdb/internal/envelope"
	"synchdb/internal/model"
	"synchdb/internal/rules"
	"synchdb/internal/schemacache"
)

func seedCache(t *testing.T) *schemacache.Cache {
	t.Helper()
	cache := schemacache.New(nil)
	cache.Put("inventory", "orders", []schemacache.ColumnInfo{
		{Name: "id", TargetType: model.TypeInteger, Attnum: 1},
		{Name: "qty", TargetType: model.TypeInteger, Attnum: 2},
		{Name: "price", TargetType: model.TypeNumeric, Attnum: 3},
	})
	return cache
}

const createEnvelope = `{
	"schema": {"fields": [
		{"field": "before"},
		{"fields": [
			{"field": "id"},
			{"field": "qty"},
			{"field": "price", "name": "org.apache.kafka.connect.data.Decimal", "parameters": {"scale": "2"}}
		], "field": "after"}
	]},
	"payload": {
		"op": "c",
		"source": {"db": "inventory", "table": "orders"},
		"after": {"id": 1, "qty": 5, "price": "AeJA"}
	}
}`

func TestParseCreateResolvesColumnsAndSortsByPosition(t *testing.T) {
	e, err := envelope.Parse([]byte(createEnvelope))
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, model.OpCreate, rec.Op)
	assert.Equal(t, "inventory.orders", rec.RemoteObjectID)
	assert.Equal(t, "inventory.orders", rec.MappedObjectID)
	require.Len(t, rec.ColumnValuesAfter, 3)
	assert.Equal(t, "id", rec.ColumnValuesAfter[0].Name)
	assert.Equal(t, "qty", rec.ColumnValuesAfter[1].Name)
	assert.Equal(t, "price", rec.ColumnValuesAfter[2].Name)
	assert.True(t, rec.ColumnValuesAfter[2].HasScale)
	assert.Equal(t, 2, rec.ColumnValuesAfter[2].Scale)
}

func TestParseDeleteRequiresAllColumnsResolved(t *testing.T) {
	raw := []byte(`{
		"payload": {
			"op": "d",
			"source": {"db": "inventory", "table": "orders"},
			"before": {"id": 1, "qty": 5, "price": "AeJA"}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, rec.ColumnValuesBefore, 3)
}

func TestParseDeleteFailsOnUnresolvedColumn(t *testing.T) {
	raw := []byte(`{
		"payload": {
			"op": "d",
			"source": {"db": "inventory", "table": "orders"},
			"before": {"id": 1, "nonexistent_column": "x"}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	_, err = p.Parse(context.Background(), e)
	assert.Error(t, err)
}

func TestParseCreateSkipsUnresolvedColumnNonFatally(t *testing.T) {
	raw := []byte(`{
		"payload": {
			"op": "c",
			"source": {"db": "inventory", "table": "orders"},
			"after": {"id": 1, "nonexistent_column": "x"}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, rec.ColumnValuesAfter, 1)
	assert.Equal(t, "id", rec.ColumnValuesAfter[0].Name)
}

func TestParseUpdateCollectsBeforeAndAfter(t *testing.T) {
	raw := []byte(`{
		"payload": {
			"op": "u",
			"source": {"db": "inventory", "table": "orders"},
			"before": {"id": 1, "qty": 5},
			"after": {"id": 1, "qty": 9}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, rec.ColumnValuesBefore, 2)
	require.Len(t, rec.ColumnValuesAfter, 2)
	assert.Equal(t, "9", rec.ColumnValuesAfter[1].Value)
}

func TestParseAppliesColumnRenameRule(t *testing.T) {
	store := rules.NewStore()
	store.PutObjectName("inventory.orders.qty", rules.ObjectColumn, "quantity")

	cache := schemacache.New(nil)
	cache.Put("inventory", "orders", []schemacache.ColumnInfo{
		{Name: "id", TargetType: model.TypeInteger, Attnum: 1},
		{Name: "quantity", TargetType: model.TypeInteger, Attnum: 2},
	})

	raw := []byte(`{
		"payload": {
			"op": "c",
			"source": {"db": "inventory", "table": "orders"},
			"after": {"id": 1, "qty": 5}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(store, cache)
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)

	var names []string
	for _, cv := range rec.ColumnValuesAfter {
		names = append(names, cv.Name)
	}
	assert.Contains(t, names, "quantity")
	assert.NotContains(t, names, "qty")
}

func TestParseAppliesTableRenameRule(t *testing.T) {
	store := rules.NewStore()
	store.PutObjectName("inventory.orders", rules.ObjectTable, "shop.purchase_orders")

	cache := schemacache.New(nil)
	cache.Put("shop", "purchase_orders", []schemacache.ColumnInfo{
		{Name: "id", TargetType: model.TypeInteger, Attnum: 1},
	})

	raw := []byte(`{
		"payload": {
			"op": "c",
			"source": {"db": "inventory", "table": "orders"},
			"after": {"id": 1}
		}
	}`)
	e, err := envelope.Parse(raw)
	require.NoError(t, err)

	p := NewParser(store, cache)
	rec, err := p.Parse(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "shop", rec.Schema)
	assert.Equal(t, "purchase_orders", rec.Table)
}

func TestParseMissingSourceIsFatal(t *testing.T) {
	e, err := envelope.Parse([]byte(`{"payload":{"op":"c"}}`))
	require.NoError(t, err)

	p := NewParser(rules.NewStore(), seedCache(t))
	_, err = p.Parse(context.Background(), e)
	assert.Error(t, err)
}
