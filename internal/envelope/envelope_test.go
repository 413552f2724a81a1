package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStringAbsentOrNullReturnsSentinel(t *testing.T) {
	e, err := Parse([]byte(`{"payload":{"source":{"db":"inventory"}}}`))
	require.NoError(t, err)

	assert.Equal(t, Null, e.GetString("payload.source.schema", false))
	assert.Equal(t, Null, e.GetString("payload.op", false))
	assert.Equal(t, "inventory", e.GetString("payload.source.db", false))

	e2, err := Parse([]byte(`{"payload":{"op":null}}`))
	require.NoError(t, err)
	assert.Equal(t, Null, e2.GetString("payload.op", false))
}

func TestGetStringUnquoteStripsEscapes(t *testing.T) {
	e, err := Parse([]byte(`{"a":"hello \"world\""}`))
	require.NoError(t, err)

	assert.Equal(t, `hello "world"`, e.GetString("a", true))
	assert.Equal(t, `hello \"world\"`, e.GetString("a", false))
}

func TestGetStringNestedObjectIsSerializedAsScalar(t *testing.T) {
	e, err := Parse([]byte(`{"payload":{"after":{"shape":{"wkb":"AQI=","srid":4326}}}}`))
	require.NoError(t, err)

	s := e.GetString("payload.after.shape", false)
	assert.Contains(t, s, `"wkb":"AQI="`)
	assert.Contains(t, s, `"srid":4326`)
}

func TestGetSubtreeIteratesArrayOfObjectsInDocumentOrder(t *testing.T) {
	e, err := Parse([]byte(`{"payload":{"tableChanges":[{"id":"a.b"}]}}`))
	require.NoError(t, err)

	sub, ok := e.GetSubtree("payload.tableChanges.0")
	require.True(t, ok)
	obj, ok := sub.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.b", obj["id"])

	_, ok = e.GetSubtree("payload.tableChanges.1")
	assert.False(t, ok)
}

func TestGetStringNumberPreservesPrecision(t *testing.T) {
	e, err := Parse([]byte(`{"v":1700000000123456}`))
	require.NoError(t, err)
	assert.Equal(t, "1700000000123456", e.GetString("v", false))
}
