package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeSettings struct {
	Path   string `validate:"required"`
	Driver string `validate:"omitempty,oneof=sqlite3 postgres"`
	Conns  int    `validate:"gte=0,lte=64"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := storeSettings{Path: "user_prompts.csv", Driver: "sqlite3", Conns: 2}

		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("empty optional driver", func(t *testing.T) {
		s := storeSettings{Path: "user_prompts.csv"}

		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("missing required field", func(t *testing.T) {
		s := storeSettings{Driver: "postgres"}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "Path is required", fields["Path"])
	})

	t.Run("value outside oneof", func(t *testing.T) {
		s := storeSettings{Path: "p", Driver: "mysql"}

		err := ValidateStruct(&s)
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Equal(t, "Driver must be one of: sqlite3 postgres", fields["Driver"])
	})

	t.Run("range violations", func(t *testing.T) {
		low := storeSettings{Path: "p", Conns: -1}
		high := storeSettings{Path: "p", Conns: 65}

		assert.Contains(t, GetValidationFields(ValidateStruct(&low))["Conns"], "greater than or equal to 0")
		assert.Contains(t, GetValidationFields(ValidateStruct(&high))["Conns"], "less than or equal to 64")
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Message: "Validation failed", Fields: map[string]string{"Path": "Path is required"}}
	assert.Equal(t, "Validation failed", err.Error())
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(&ValidationError{Message: "x"}))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestGetValidationFields(t *testing.T) {
	assert.Nil(t, GetValidationFields(errors.New("plain")))
	assert.Equal(t, map[string]string{"A": "b"}, GetValidationFields(&ValidationError{Fields: map[string]string{"A": "b"}}))
}
