package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dose struct {
	Name   string `json:"name" validate:"required,notblank"`
	Amount string `json:"amount" validate:"required,notblank"`
}

func TestValidate_NotBlank(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		in      dose
		wantErr string
	}{
		{name: "filled", in: dose{Name: "Siro", Amount: "5ml"}},
		{name: "empty", in: dose{Amount: "5ml"}, wantErr: "name is required"},
		{name: "spaces", in: dose{Name: "   ", Amount: "5ml"}, wantErr: "name is required"},
		{name: "tabs_and_newlines", in: dose{Name: "Siro", Amount: "\t\n"}, wantErr: "amount is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateField_NotBlank(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateField("reason", "out of stock", "notblank"))
	err := v.ValidateField("reason", "  ", "notblank")
	require.Error(t, err)
	assert.Equal(t, "reason is required", err.Error())
}
