package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		valid   bool
		wantErr bool
	}{
		{name: "number", input: `800000`, want: 800000, valid: true},
		{name: "float", input: `2.5`, want: 2.5, valid: true},
		{name: "numeric string", input: `"1250.75"`, want: 1250.75, valid: true},
		{name: "null", input: `null`, valid: false},
		{name: "empty string", input: `""`, valid: false},
		{name: "whitespace string", input: `"  "`, valid: false},
		{name: "NaN string", input: `"NaN"`, wantErr: true},
		{name: "word", input: `"expensive"`, wantErr: true},
		{name: "object", input: `{"amount": 3}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexFloat
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, f.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, f.Value)
			}
		})
	}
}

func TestFlexFloatPtr(t *testing.T) {
	var f FlexFloat
	require.NoError(t, json.Unmarshal([]byte(`42`), &f))
	require.NotNil(t, f.Ptr())
	assert.Equal(t, 42.0, *f.Ptr())

	var missing FlexFloat
	require.NoError(t, json.Unmarshal([]byte(`null`), &missing))
	assert.Nil(t, missing.Ptr())
}

func TestFlexInt(t *testing.T) {
	var i FlexInt
	require.NoError(t, json.Unmarshal([]byte(`3`), &i))
	assert.Equal(t, int64(3), i.Value)

	// Whole floats are accepted; JSON sources routinely emit 3.0 for counts.
	require.NoError(t, json.Unmarshal([]byte(`3.0`), &i))
	assert.Equal(t, int64(3), i.Value)

	require.Error(t, json.Unmarshal([]byte(`3.5`), &i))
	require.Error(t, json.Unmarshal([]byte(`"three"`), &i))
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "string trimmed", input: `"  San Francisco  "`, want: "San Francisco"},
		{name: "integer", input: `94110`, want: "94110"},
		{name: "float", input: `2.5`, want: "2.5"},
		{name: "bool", input: `true`, want: "true"},
		{name: "null", input: `null`, want: ""},
		{name: "empty", input: `""`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.want, s.Value)
		})
	}
}

func TestFlexStringSlice(t *testing.T) {
	var s FlexStringSlice
	require.NoError(t, json.Unmarshal([]byte(`["Pool", " Garage ", ""]`), &s))
	assert.Equal(t, FlexStringSlice{"Pool", "Garage"}, s)

	// Missing arrays must come back empty, not nil.
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	require.NotNil(t, s)
	assert.Empty(t, s)

	// A bare scalar is a one-element list.
	require.NoError(t, json.Unmarshal([]byte(`"Pool"`), &s))
	assert.Equal(t, FlexStringSlice{"Pool"}, s)

	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &s))
}
