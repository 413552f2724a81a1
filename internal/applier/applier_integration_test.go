package applier

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"synchdb/internal/dml"
)

func TestSQLApplierIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := setupMySQL(t, ctx)
	a := New(db)

	require.NoError(t, a.ExecuteDDL(ctx, "CREATE TABLE IF NOT EXISTS orders (id INT PRIMARY KEY, note VARCHAR(255))"))

	insert := &dml.Change{Row: &dml.Row{
		Op:     "c",
		Schema: "testdb",
		Table:  "orders",
		After: []dml.ColumnLiteral{
			{Name: "id", Value: "1"},
			{Name: "note", Value: "hello"},
		},
	}}
	require.NoError(t, a.ExecuteDML(ctx, insert))

	update := &dml.Change{Row: &dml.Row{
		Op:     "u",
		Schema: "testdb",
		Table:  "orders",
		Before: []dml.ColumnLiteral{{Name: "id", Value: "1"}},
		After:  []dml.ColumnLiteral{{Name: "id", Value: "1"}, {Name: "note", Value: "updated"}},
	}}
	require.NoError(t, a.ExecuteDML(ctx, update))

	var note string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT note FROM orders WHERE id = 1").Scan(&note))
	assert.Equal(t, "updated", note)

	del := &dml.Change{Row: &dml.Row{
		Op:     "d",
		Schema: "testdb",
		Table:  "orders",
		Before: []dml.ColumnLiteral{{Name: "id", Value: "1"}},
	}}
	require.NoError(t, a.ExecuteDML(ctx, del))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count))
	assert.Equal(t, 0, count)
}

func setupMySQL(t *testing.T, ctx context.Context) *sql.DB {
	t.Helper()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { db.Close() })

	return db
}
