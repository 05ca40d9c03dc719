package datatools

import (
	"errors"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/tool"
)

// Tool names.
const (
	ListTablesToolName          = "list_tables"
	DescribeTableToolName       = "describe_table"
	RunSQLToolName              = "run_sql"
	SearchDocumentationToolName = "search_documentation"
)

type listTablesArgs struct{}

type describeTableArgs struct {
	Table string `json:"table" jsonschema:"description=Name of the table to describe"`
}

type runSQLArgs struct {
	Query string `json:"query" jsonschema:"description=A single SQLite SELECT or WITH query"`
}

type searchDocumentationArgs struct {
	Query string `json:"query" jsonschema:"description=Keywords describing the business term or convention to look up"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of snippets to return (default 5)"`
}

// Tools returns the data analyst tools over db. search_documentation is
// included when docs is non-nil.
func Tools(db *DB, docs *memory.InMemoryStore) []tool.Tool {
	tools := []tool.Tool{
		tool.NewTypedTool(
			ListTablesToolName,
			"List the tables of the analytics database.",
			func(tc *core.ToolContext, _ listTablesArgs) (any, error) {
				tables, err := db.Tables(tc.Context())
				if err != nil {
					return nil, err
				}
				return map[string]any{"tables": tables}, nil
			},
		),
		tool.NewTypedTool(
			DescribeTableToolName,
			"Describe the columns and the CREATE statement of a table.",
			func(tc *core.ToolContext, in describeTableArgs) (any, error) {
				schema, err := db.Describe(tc.Context(), in.Table)
				if errors.Is(err, ErrUnknownTable) {
					return nil, tool.NewToolError(DescribeTableToolName, err.Error(), tool.CodeValidation)
				}
				if err != nil {
					return nil, err
				}
				return schema, nil
			},
		),
		tool.NewTypedTool(
			RunSQLToolName,
			"Run a read-only SQLite query and return the result rows as JSON. Only SELECT and WITH statements are allowed; large results are truncated.",
			func(tc *core.ToolContext, in runSQLArgs) (any, error) {
				res, err := db.Query(tc.Context(), in.Query)
				if errors.Is(err, ErrNotReadOnly) {
					return nil, tool.NewToolError(RunSQLToolName, err.Error(), tool.CodeValidation)
				}
				if err != nil {
					return nil, err
				}
				tc.Logger().Debug("datatools.run_sql", "rows", res.RowCount)
				return res, nil
			},
		),
	}

	if docs != nil {
		tools = append(tools, tool.NewTypedTool(
			SearchDocumentationToolName,
			"Search the business documentation for definitions and conventions such as fiscal years or date formats.",
			func(_ *core.ToolContext, in searchDocumentationArgs) (any, error) {
				limit := in.Limit
				if limit <= 0 {
					limit = 5
				}
				return map[string]any{"results": docs.Search(in.Query, limit)}, nil
			},
		))
	}

	return tools
}
