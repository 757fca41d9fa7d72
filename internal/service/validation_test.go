package service

import (
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestValidateStruct(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		value   interface{}
		message string
	}{
		{
			name:  "valid",
			value: types.CreateInstanceParams{AppName: "acme-01", PackageID: uuid.New()},
		},
		{
			name:    "bad name",
			value:   types.CreateInstanceParams{AppName: "acme.io", PackageID: uuid.New()},
			message: appNameFormatError,
		},
		{
			name:    "missing fields",
			value:   types.CreateInstanceParams{},
			message: "invalid value provided for: appname, invalid value provided for: packageid",
		},
		{
			name:    "webhook without source",
			value:   types.WebhookPayload{AppName: "acme", Status: "synced"},
			message: "invalid value provided for: source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStruct(v, tt.value)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, types.IsValidationError(err))
			assert.EqualError(t, err, tt.message)
		})
	}
}
