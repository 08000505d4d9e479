package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name   string   `validate:"required"`
	Email  string   `validate:"required,email"`
	Port   int      `validate:"gt=0,lte=65535"`
	Users  []string `validate:"min=1,dive,email"`
	First  string   `validate:"required,nefield=Second"`
	Second string   `validate:"required"`
}

func validTestStruct() TestStruct {
	return TestStruct{
		Name:   "gateway",
		Email:  "ops@example.com",
		Port:   8080,
		Users:  []string{"alice@example.com"},
		First:  "a",
		Second: "b",
	}
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := validTestStruct()

		err := ValidateStruct(&s)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		s := validTestStruct()
		s.Name = ""

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "Name is required", fields["Name"])
		assert.Contains(t, err.Error(), "Name is required")
	})

	t.Run("port out of range", func(t *testing.T) {
		s := validTestStruct()
		s.Port = 70000

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Equal(t, "Port must be less than or equal to 65535", GetValidationFields(err)["Port"])
	})

	t.Run("empty list", func(t *testing.T) {
		s := validTestStruct()
		s.Users = nil

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Equal(t, "Users must be at least 1", GetValidationFields(err)["Users"])
	})

	t.Run("list element not an email", func(t *testing.T) {
		s := validTestStruct()
		s.Users = []string{"alice@example.com", "bob"}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err), "Users[1]")
	})

	t.Run("fields must differ", func(t *testing.T) {
		s := validTestStruct()
		s.Second = s.First

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Equal(t, "First must differ from Second", GetValidationFields(err)["First"])
	})

	t.Run("multiple failures sorted in message", func(t *testing.T) {
		s := validTestStruct()
		s.Name = ""
		s.Email = ""

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Equal(t, "Validation failed: Email is required; Name is required", err.Error())
	})
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(nil))
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID(uuid.NewString()))
	assert.Error(t, ValidateUUID("not-a-uuid"))
	assert.Error(t, ValidateUUID(""))
}
