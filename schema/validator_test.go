package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestValidate(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr bool
	}{
		{
			name: "minimal valid config",
			config: map[string]interface{}{
				"version": "1.0",
			},
			wantErr: false,
		},
		{
			name: "full valid config",
			config: map[string]interface{}{
				"version": "1.0",
				"listener": map[string]interface{}{
					"port": 7842,
				},
				"scan": map[string]interface{}{
					"interval":     "20s",
					"process_name": "claude",
					"ignore":       []string{"/tmp/*"},
				},
				"pricing": map[string]interface{}{
					"models": map[string]interface{}{
						"sonnet": map[string]interface{}{
							"input_per_mtok":  3.0,
							"output_per_mtok": 15.0,
						},
					},
				},
			},
			wantErr: false,
		},
		{
			name:    "missing version",
			config:  map[string]interface{}{},
			wantErr: true,
		},
		{
			name: "port out of range",
			config: map[string]interface{}{
				"version": "1.0",
				"listener": map[string]interface{}{
					"port": 99999,
				},
			},
			wantErr: true,
		},
		{
			name: "unknown listener field rejected",
			config: map[string]interface{}{
				"version": "1.0",
				"listener": map[string]interface{}{
					"host": "0.0.0.0",
				},
			},
			wantErr: true,
		},
		{
			name: "negative pricing rejected",
			config: map[string]interface{}{
				"version": "1.0",
				"pricing": map[string]interface{}{
					"models": map[string]interface{}{
						"sonnet": map[string]interface{}{
							"input_per_mtok": -1.0,
						},
					},
				},
			},
			wantErr: true,
		},
		{
			name: "extension sections allowed at top level",
			config: map[string]interface{}{
				"version": "1.0",
				"logging": map[string]interface{}{
					"level": "debug",
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
