package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastWriteWins(t *testing.T) {
	s := NewStore()
	s.PutType("TINYINT", false, "SMALLINT", -1)
	s.PutType("TINYINT", false, "INT2", 4)

	m, ok := s.LookupType("TINYINT", false)
	require.True(t, ok)
	assert.Equal(t, "INT2", m.TargetTypeName)
	assert.Equal(t, 4, m.TargetLength)
}

func TestColumnQualifiedKeyDoesNotCollideWithBareKey(t *testing.T) {
	s := NewStore()
	s.PutType("TINYINT", false, "SMALLINT", -1)
	s.PutType("inventory.orders.qty.TINYINT", false, "BOOLEAN", -1)

	bare, ok := s.LookupType("TINYINT", false)
	require.True(t, ok)
	assert.Equal(t, "SMALLINT", bare.TargetTypeName)

	qualified, ok := s.LookupType("inventory.orders.qty.TINYINT", false)
	require.True(t, ok)
	assert.Equal(t, "BOOLEAN", qualified.TargetTypeName)
}

func TestBitOneSpecialCaseKey(t *testing.T) {
	s := NewStore()
	s.PutType("BIT(1)", false, "BOOL", -1)
	m, ok := s.LookupType("bit(1)", false)
	require.True(t, ok)
	assert.Equal(t, "BOOL", m.TargetTypeName)
}

func TestParseDocumentValid(t *testing.T) {
	raw := []byte(`{
		"transform_datatype_rules": [
			{"translate_from":"TINYINT","translate_from_autoinc":false,"translate_to":"SMALLINT","translate_to_size":-1}
		],
		"transform_objectname_rules": [
			{"object_type":"table","source_object":"inventory.orders","destination_object":"inv.orders"}
		],
		"transform_expression_rules": [
			{"transform_from":"inventory.orders.geom","transform_expression":"ST_GeomFromWKB(%w, %r)"}
		]
	}`)

	store, err := ParseDocument(raw)
	require.NoError(t, err)

	m, ok := store.LookupType("TINYINT", false)
	require.True(t, ok)
	assert.Equal(t, "SMALLINT", m.TargetTypeName)

	name, ok := store.LookupObjectName("inventory.orders", ObjectTable)
	require.True(t, ok)
	assert.Equal(t, "inv.orders", name)

	expr, ok := store.LookupExpression("inventory.orders.geom")
	require.True(t, ok)
	assert.Equal(t, "ST_GeomFromWKB(%w, %r)", expr)
}

func TestParseDocumentRejectsMalformedObjectType(t *testing.T) {
	raw := []byte(`{"transform_objectname_rules":[{"object_type":"bogus","source_object":"a","destination_object":"b"}]}`)
	_, err := ParseDocument(raw)
	assert.Error(t, err)
}

func TestParseDocumentRejectsInvalidJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`{not json`))
	assert.Error(t, err)
}
