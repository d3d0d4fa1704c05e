package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"client_id": map[string]any{"type": "string"},
		"age":       map[string]any{"type": "integer"},
		"data":      map[string]any{"type": "object"},
	},
	"required": []any{"client_id"},
}

func TestValidateParametersMissingRequired(t *testing.T) {
	err := ValidateParameters(map[string]any{"age": 30}, schema)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "client_id", verr.Field)
}

func TestValidateParametersTypeMismatch(t *testing.T) {
	err := ValidateParameters(map[string]any{"client_id": 42}, schema)
	require.Error(t, err)

	err = ValidateParameters(map[string]any{"client_id": "c1", "data": "not an object"}, schema)
	assert.Error(t, err)
}

func TestValidateParametersAcceptsJSONNumbers(t *testing.T) {
	// JSON decoding yields float64 for integers.
	err := ValidateParameters(map[string]any{"client_id": "c1", "age": float64(30)}, schema)
	assert.NoError(t, err)

	err = ValidateParameters(map[string]any{"client_id": "c1", "age": 30.5}, schema)
	assert.Error(t, err)
}

func TestValidateParametersAllowsExtraFields(t *testing.T) {
	err := ValidateParameters(map[string]any{"client_id": "c1", "note": "extra"}, schema)
	assert.NoError(t, err)
}
