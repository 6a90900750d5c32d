package edn

import (
	"testing"

	"github.com/judepayne/gopods/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLiterals(t *testing.T) {
	t.Parallel()

	c := New()
	cases := map[string]any{
		"nil":          nil,
		"true":         true,
		"false":        false,
		"42":           int64(42),
		"-7":           int64(-7),
		"3.14":         3.14,
		`"hello"`:      "hello",
		`"with \"q\""`: `with "q"`,
	}
	for input, want := range cases {
		input, want := input, want
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			got, err := c.Read(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReadKeywordAndSymbolDropNamespaceInMapKeys(t *testing.T) {
	t.Parallel()

	c := New()
	got, err := c.Read(`{:a/x 1 :y 2}`)
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["x"])
	assert.Equal(t, int64(2), m["y"])
}

func TestReadPreservesQualifierOutsideMapKeys(t *testing.T) {
	t.Parallel()

	c := New()
	got, err := c.Read(`[:ns/kw a/sym]`)
	require.NoError(t, err)
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)

	kw, ok := list[0].(Keyword)
	require.True(t, ok)
	assert.Equal(t, "ns", kw.Namespace)
	assert.Equal(t, "kw", kw.Name)

	sym, ok := list[1].(Symbol)
	require.True(t, ok)
	assert.Equal(t, "a", sym.Namespace)
	assert.Equal(t, "sym", sym.Name)
}

func TestVectorsAndListsCollapseToSequence(t *testing.T) {
	t.Parallel()

	c := New()
	vec, err := c.Read(`[1 2 3]`)
	require.NoError(t, err)
	lst, err := c.Read(`(1 2 3)`)
	require.NoError(t, err)
	assert.Equal(t, vec, lst)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, vec)
}

func TestNestedMap(t *testing.T) {
	t.Parallel()

	c := New()
	got, err := c.Read(`{:a {:x 1} :b {:y 2}}`)
	require.NoError(t, err)
	m := got.(map[string]any)
	a := m["a"].(map[string]any)
	b := m["b"].(map[string]any)
	assert.Equal(t, int64(1), a["x"])
	assert.Equal(t, int64(2), b["y"])
}

func TestMissingTagHandlerIsCodecError(t *testing.T) {
	t.Parallel()

	c := New()
	_, err := c.Read(`#my/tag "value"`)
	require.Error(t, err)
	var ce *codec.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "read", ce.Op)
}

func TestRegisteredTagHandlerRuns(t *testing.T) {
	t.Parallel()

	c := New()
	c.Tags["my/tag"] = func(inner any) (any, error) {
		s, _ := inner.(string)
		return "handled:" + s, nil
	}
	got, err := c.Read(`#my/tag "value"`)
	require.NoError(t, err)
	assert.Equal(t, "handled:value", got)
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	c := New()
	values := []any{
		nil,
		true,
		false,
		int64(5),
		3.5,
		"a string",
		[]any{int64(1), "two", false},
		map[string]any{"a": int64(1), "b": []any{int64(2), int64(3)}},
	}
	for _, v := range values {
		s, err := c.Write(v)
		require.NoError(t, err)
		got, err := c.Read(s)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDeepMergeShapedValueRoundTrips(t *testing.T) {
	t.Parallel()

	c := New()
	v := map[string]any{
		"a": map[string]any{"x": int64(1), "y": int64(2)},
	}
	s, err := c.Write(v)
	require.NoError(t, err)
	got, err := c.Read(s)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
