package datatools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/tool"
)

const salesCSV = `invoice_no,customer_id,category,quantity,price,invoice_date,shopping_mall
I138884,C241288,Clothing,5,1500.4,05-08-2022,Kanyon
I317333,C111565,Shoes,3,1800.51,12-12-2021,Forum Istanbul
I127801,C266599,Clothing,1,300.08,09-11-2021,Metrocity
`

func ingestedDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.IngestCSV(context.Background(), strings.NewReader(salesCSV), "sales_data")
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)

	return path
}

func readOnly(t *testing.T, path string) *DB {
	t.Helper()

	db, err := Open(path, func(o *Options) {
		o.ReadOnly = true
		o.MaxRows = 2
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestIngestCSVInfersTypes(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	defer db.Close()

	res, err := db.IngestCSV(context.Background(), strings.NewReader(salesCSV), "sales_data")
	require.NoError(t, err)

	types := map[string]string{}
	for _, c := range res.Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, "TEXT", types["invoice_no"])
	assert.Equal(t, "INTEGER", types["quantity"])
	assert.Equal(t, "REAL", types["price"])
	assert.Equal(t, "TEXT", types["invoice_date"])

	schema, err := db.Describe(context.Background(), "sales_data")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 7)
	assert.Equal(t, "quantity", schema.Columns[3].Name)
	assert.Equal(t, "INTEGER", schema.Columns[3].Type)
	assert.Contains(t, schema.DDL, "CREATE TABLE")
}

func TestIngestCSVFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "customer-data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("customer_id,gender,age\nC1,Female,28\nC2,Male,\n"), 0o600))

	db, err := Open(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	defer db.Close()

	res, err := db.IngestCSVFile(context.Background(), csvPath, "")
	require.NoError(t, err)
	assert.Equal(t, "customer_data", res.Table)
	assert.Equal(t, 2, res.Rows)

	q, err := db.Query(context.Background(), "SELECT age FROM customer_data WHERE customer_id = 'C2'")
	require.NoError(t, err)
	require.Len(t, q.Rows, 1)
	assert.Nil(t, q.Rows[0][0], "empty values are stored as NULL")
}

func TestIngestCSVErrors(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.IngestCSV(context.Background(), strings.NewReader("a,b\n1,2\n"), "bad name")
	require.Error(t, err)

	_, err = db.IngestCSV(context.Background(), strings.NewReader(""), "empty")
	require.Error(t, err)

	_, err = db.IngestCSV(context.Background(), strings.NewReader("a,b\n1,2,3\n"), "ragged")
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	db := readOnly(t, ingestedDB(t))
	ctx := context.Background()

	res, err := db.Query(ctx, "SELECT category, SUM(quantity) AS qty FROM sales_data GROUP BY category ORDER BY category;")
	require.NoError(t, err)
	assert.Equal(t, []string{"category", "qty"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Clothing", res.Rows[0][0])
	assert.EqualValues(t, 6, res.Rows[0][1])
	assert.False(t, res.Truncated)

	res, err = db.Query(ctx, "with t as (select * from sales_data) select invoice_no from t")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Truncated)
}

func TestQueryRejectsWrites(t *testing.T) {
	db := readOnly(t, ingestedDB(t))
	ctx := context.Background()

	for _, q := range []string{
		"",
		"DELETE FROM sales_data",
		"DROP TABLE sales_data",
		"SELECT 1; DELETE FROM sales_data",
		"selection",
	} {
		_, err := db.Query(ctx, q)
		assert.ErrorIs(t, err, ErrNotReadOnly, q)
	}

	_, err := db.Query(ctx, "WITH x AS (SELECT 1) DELETE FROM sales_data")
	require.Error(t, err, "query_only blocks writes hidden in a WITH statement")

	res, err := db.Query(ctx, "SELECT COUNT(*) FROM sales_data")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Rows[0][0])
}

func TestTables(t *testing.T) {
	db := readOnly(t, ingestedDB(t))

	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sales_data"}, tables)

	_, err = db.Describe(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownTable)

	_, err = db.Describe(context.Background(), "x; DROP TABLE sales_data")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "sales_data_2024", TableName("Sales-Data 2024"))
	assert.Equal(t, "t_2024", TableName("2024"))
	assert.Equal(t, "t_", TableName("---"))
}

func invoke(t *testing.T, reg *tool.Registry, name, args string) (string, error) {
	t.Helper()

	call := testutil.Call("c1", name, args)
	return reg.Invoke(core.NewToolContext(context.Background(), "data_analyst", call, nil), call)
}

func TestTools(t *testing.T) {
	db := readOnly(t, ingestedDB(t))
	docs := memory.NewInMemoryStore(memory.Document{ID: "fy", Content: "Financial year starts in april"})

	reg, err := tool.NewRegistry(Tools(db, docs)...)
	require.NoError(t, err)
	assert.Equal(t, []string{ListTablesToolName, DescribeTableToolName, RunSQLToolName, SearchDocumentationToolName}, reg.Names())

	out, err := invoke(t, reg, ListTablesToolName, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tables":["sales_data"]}`, out)

	out, err = invoke(t, reg, RunSQLToolName, `{"query":"SELECT COUNT(*) AS n FROM sales_data"}`)
	require.NoError(t, err)
	var res QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.EqualValues(t, 3, res.Rows[0][0])

	_, err = invoke(t, reg, RunSQLToolName, `{"query":"DELETE FROM sales_data"}`)
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	_, err = invoke(t, reg, DescribeTableToolName, `{"table":"nope"}`)
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	out, err = invoke(t, reg, SearchDocumentationToolName, `{"query":"financial year"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"fy"`)
}

func TestToolsWithoutDocumentation(t *testing.T) {
	db := readOnly(t, ingestedDB(t))
	assert.Len(t, Tools(db, nil), 3)
}
