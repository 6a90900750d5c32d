package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	c := New()
	assert.Equal(t, "json", c.Name())

	s, err := c.Write(map[string]any{"a": float64(1), "b": []any{"x", "y"}})
	require.NoError(t, err)

	v, err := c.Read(s)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": []any{"x", "y"}}, v)
}

func TestReadInvalidJSONIsCodecError(t *testing.T) {
	c := New()
	_, err := c.Read("{not json")
	assert.Error(t, err)
}

func TestWriteUnsupportedValueIsCodecError(t *testing.T) {
	c := New()
	_, err := c.Write(make(chan int))
	assert.Error(t, err)
}
