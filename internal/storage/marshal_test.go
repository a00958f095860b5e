package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"empty slice", []string{}, "[]"},
		{"no html escaping", map[string]string{"q": "<a&b>"}, `{"q":"<a&b>"}`},
		{"sorted keys", map[string]int{"b": 2, "a": 1}, `{"a":1,"b":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeJSON_Unsupported(t *testing.T) {
	_, err := EncodeJSON(make(chan int))
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var badges []string
	require.NoError(t, DecodeJSON(`["a","b"]`, &badges))
	assert.Equal(t, []string{"a", "b"}, badges)

	untouched := []string{"keep"}
	require.NoError(t, DecodeJSON(nil, &untouched))
	require.NoError(t, DecodeJSON("", &untouched))
	assert.Equal(t, []string{"keep"}, untouched)

	assert.Error(t, DecodeJSON(int64(3), &badges))
	assert.Error(t, DecodeJSON("{", &badges))
}

func TestRowAccessors(t *testing.T) {
	row := Row{"s": "x", "i": int64(3), "f": 2.5, "n": nil}

	assert.Equal(t, "x", row.String("s"))
	assert.Equal(t, "", row.String("n"))
	assert.Nil(t, row.NullString("n"))
	assert.Equal(t, "x", *row.NullString("s"))
	assert.Equal(t, int64(3), row.Int("i"))
	assert.Equal(t, int64(2), row.Int("f"))
	assert.Equal(t, 3.0, row.Float("i"))
	assert.True(t, row.Bool("i"))
	assert.False(t, row.Bool("missing"))
}
