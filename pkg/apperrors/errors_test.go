package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation_Kinds(t *testing.T) {
	err := Validation("table", "Invalid table name")

	assert.True(t, IsValidation(err))
	assert.False(t, IsExecution(err))
	assert.Equal(t, "Invalid table name", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	var v *ValidationError
	assert.True(t, errors.As(err, &v))
	assert.Equal(t, "table", v.Field)
}

func TestValidationWrap_Sentinel(t *testing.T) {
	err := ValidationWrap("table", ErrTableNotAllowed, "Table '%s' is not whitelisted", "secrets")

	assert.True(t, errors.Is(err, ErrTableNotAllowed))
	assert.Equal(t, "Table 'secrets' is not whitelisted", err.Error())
}

func TestExecution_WrapsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Execution("Insert/Upsert failed", cause)

	assert.True(t, IsExecution(err))
	assert.False(t, IsValidation(err))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Insert/Upsert failed: duplicate key", err.Error())
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus_WrappedValidation(t *testing.T) {
	err := fmt.Errorf("select: %w", Validation("limit", "bad limit"))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
}

func TestHTTPStatus_NotFound(t *testing.T) {
	err := ValidationWrap("method", ErrNotFound, "Custom method '%s' not found", "nope")
	assert.True(t, IsValidation(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}
