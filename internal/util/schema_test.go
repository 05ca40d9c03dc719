package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func querySchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
	}
}

func TestValidateParameters(t *testing.T) {
	schema := querySchema()

	assert.NoError(t, ValidateParameters(map[string]any{"query": "SELECT 1"}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"query": "SELECT 1", "limit": float64(5)}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"query": "SELECT 1", "limit": nil}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"query": "SELECT 1", "extra": true}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	err = ValidateParameters(map[string]any{"query": 1.5}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "expected type string")

	err = ValidateParameters(map[string]any{"query": "x", "limit": 1.5}, schema)
	assert.Error(t, err)
}

func TestValidateParametersNilSchema(t *testing.T) {
	assert.NoError(t, ValidateParameters(map[string]any{"anything": 1}, nil))
}

func TestValidateParametersDecodedSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"mode"},
		"properties": map[string]any{
			"mode": map[string]any{"type": "string", "enum": []any{"fast", "slow"}},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"mode": "fast"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"mode": "medium"}, schema))
}

func TestValidateParametersNested(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filter": map[string]any{
				"type":     "object",
				"required": []any{"column"},
				"properties": map[string]any{
					"column": map[string]any{"type": "string"},
				},
			},
			"columns": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{
		"filter":  map[string]any{"column": "category"},
		"columns": []any{"price", "quantity"},
	}, schema))

	var verr *ValidationError

	err := ValidateParameters(map[string]any{"filter": map[string]any{}}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "filter.column", verr.Field)

	err = ValidateParameters(map[string]any{"columns": []any{"price", 3.0}}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "columns[1]", verr.Field)
}
