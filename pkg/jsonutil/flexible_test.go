package jsonutil

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleInt(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   int
		wantOK bool
	}{
		{name: "int", input: 5, want: 5, wantOK: true},
		{name: "int64", input: int64(7), want: 7, wantOK: true},
		{name: "integral float", input: 3.0, want: 3, wantOK: true},
		{name: "fractional float truncates", input: 3.5, want: 3, wantOK: true},
		{name: "negative fraction truncates", input: -1.9, want: -1, wantOK: true},
		{name: "fractional string truncates", input: "2.5", want: 2, wantOK: true},
		{name: "float beyond int range", input: 1e19, wantOK: false},
		{name: "infinity", input: math.Inf(1), wantOK: false},
		{name: "json number", input: json.Number("42"), want: 42, wantOK: true},
		{name: "numeric string", input: " 12 ", want: 12, wantOK: true},
		{name: "float string", input: "2.0", want: 2, wantOK: true},
		{name: "negative string", input: "-4", want: -4, wantOK: true},
		{name: "garbage string", input: "abc", wantOK: false},
		{name: "bool", input: true, wantOK: false},
		{name: "nil", input: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleInt(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFlexibleBool(t *testing.T) {
	assert.True(t, FlexibleBool(true))
	assert.True(t, FlexibleBool("TRUE"))
	assert.True(t, FlexibleBool("1"))
	assert.True(t, FlexibleBool("yes"))
	assert.True(t, FlexibleBool(json.Number("1")))
	assert.True(t, FlexibleBool(1.0))
	assert.False(t, FlexibleBool(false))
	assert.False(t, FlexibleBool("no"))
	assert.False(t, FlexibleBool(""))
	assert.False(t, FlexibleBool(0))
	assert.False(t, FlexibleBool(nil))
}

func TestFlexibleString(t *testing.T) {
	assert.Equal(t, "", FlexibleString(nil))
	assert.Equal(t, "hello", FlexibleString("hello"))
	assert.Equal(t, "42", FlexibleString(json.Number("42")))
	assert.Equal(t, "42", FlexibleString(42.0))
	assert.Equal(t, "3.14", FlexibleString(3.14))
	assert.Equal(t, "true", FlexibleString(true))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(42), NormalizeValue(json.Number("42")))
	assert.Equal(t, 3.5, NormalizeValue(json.Number("3.5")))
	assert.Equal(t, int64(3), NormalizeValue(3.0))
	assert.Equal(t, 3.25, NormalizeValue(3.25))
	assert.Equal(t, "x", NormalizeValue("x"))
	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t,
		[]any{int64(1), "a", map[string]any{"n": int64(2)}},
		NormalizeValue([]any{json.Number("1"), "a", map[string]any{"n": 2.0}}))
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject(strings.NewReader(`{"table":"users","limit":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, "users", obj["table"])
	assert.Equal(t, json.Number("9007199254740993"), obj["limit"])

	obj, err = DecodeObject(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, obj)

	_, err = DecodeObject(strings.NewReader(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeObject(strings.NewReader(`{"table":`))
	assert.Error(t, err)
}

func TestDecodeString(t *testing.T) {
	v, err := DecodeString(`[{"field":"id","operator":"=","value":1}]`)
	require.NoError(t, err)
	list, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, json.Number("1"), list[0].(map[string]any)["value"])

	_, err = DecodeString(`[1] [2]`)
	assert.Error(t, err)

	_, err = DecodeString(`not json`)
	assert.Error(t, err)
}
