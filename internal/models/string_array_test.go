package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArray_Value(t *testing.T) {
	v, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringArray{"a.png", "b.png"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a.png","b.png"]`, v)
}

func TestStringArray_Scan(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want StringArray
	}{
		{"nil", nil, StringArray{}},
		{"empty string", "", StringArray{}},
		{"null", "null", StringArray{}},
		{"bytes", []byte(`["x"]`), StringArray{"x"}},
		{"string", `["x","y"]`, StringArray{"x", "y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a StringArray
			require.NoError(t, a.Scan(tc.in))
			assert.Equal(t, tc.want, a)
		})
	}

	var a StringArray
	assert.Error(t, a.Scan(42))
	assert.Error(t, a.Scan("not json"))
}

func TestStringArray_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Images StringArray `json:"images"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"images":[]}`, string(b))
}
