package applier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synchdb/internal/dml"
)

func lit(name, value string, isNull bool) dml.ColumnLiteral {
	return dml.ColumnLiteral{Name: name, Value: value, IsNull: isNull}
}

func TestInsertStatementBindsPlaceholders(t *testing.T) {
	row := &dml.Row{Schema: "inventory", Table: "orders", After: []dml.ColumnLiteral{
		lit("id", "1", false),
		lit("note", "hi", false),
	}}
	stmt, args := insertStatement(row)
	assert.Equal(t, "INSERT INTO `inventory`.`orders` (`id`, `note`) VALUES (?, ?)", stmt)
	assert.Equal(t, []any{"1", "hi"}, args)
}

func TestDeleteStatementUsesBeforeRowAsPredicate(t *testing.T) {
	row := &dml.Row{Schema: "inventory", Table: "orders", Before: []dml.ColumnLiteral{
		lit("id", "42", false),
	}}
	stmt, args, err := deleteStatement(row)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `inventory`.`orders` WHERE `id` = ?", stmt)
	assert.Equal(t, []any{"42"}, args)
}

func TestDeleteStatementRejectsEmptyBeforeRow(t *testing.T) {
	row := &dml.Row{Schema: "inventory", Table: "orders"}
	_, _, err := deleteStatement(row)
	assert.Error(t, err)
}

func TestUpdateStatementSetsAfterWheresBefore(t *testing.T) {
	row := &dml.Row{
		Schema: "inventory",
		Table:  "orders",
		Before: []dml.ColumnLiteral{lit("id", "1", false)},
		After:  []dml.ColumnLiteral{lit("qty", "9", false)},
	}
	stmt, args, err := updateStatement(row)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `inventory`.`orders` SET `qty` = ? WHERE `id` = ?", stmt)
	assert.Equal(t, []any{"9", "1"}, args)
}

func TestWherePredicateRendersNullAsIsNull(t *testing.T) {
	where, args, err := wherePredicate([]dml.ColumnLiteral{lit("note", "", true)})
	require.NoError(t, err)
	assert.Equal(t, "`note` IS NULL", where)
	assert.Empty(t, args)
}

func TestLiteralArgReturnsNilForNull(t *testing.T) {
	assert.Nil(t, literalArg(lit("x", "", true)))
	assert.Equal(t, "5", literalArg(lit("x", "5", false)))
}

func TestEvaluateTransformExpressionSubstitutesPlaceholders(t *testing.T) {
	a := New(nil)
	s, w, r := "escaped", "wkbbytes", "4326"
	out, err := a.EvaluateTransformExpression(context.Background(), "ST_GeomFromWKB(%w, %r) /* %s */", &s, &w, &r)
	require.NoError(t, err)
	assert.Equal(t, "ST_GeomFromWKB(wkbbytes, 4326) /* escaped */", out)
}

func TestEvaluateTransformExpressionHandlesNilPlaceholders(t *testing.T) {
	a := New(nil)
	out, err := a.EvaluateTransformExpression(context.Background(), "%s-%w-%r", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "--", out)
}
