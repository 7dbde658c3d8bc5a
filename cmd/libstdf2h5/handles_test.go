package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

func TestHandleTable(t *testing.T) {
	var table handleTable
	c := converter.New(converter.Options{})

	h := table.add(c)
	require.NotZero(t, h)
	got, ok := table.get(h)
	require.True(t, ok)
	assert.Same(t, c, got)

	removed, ok := table.remove(h)
	require.True(t, ok)
	assert.Same(t, c, removed)

	_, ok = table.get(h)
	assert.False(t, ok, "deleted handle")
	_, ok = table.remove(h)
	assert.False(t, ok, "double delete")
	_, ok = table.get(0)
	assert.False(t, ok)
	_, ok = table.get(h + 1000)
	assert.False(t, ok, "foreign handle")
}

func TestExports_StaleHandle(t *testing.T) {
	h := NewStdf()
	assert.Equal(t, 0, int(GetFinishT(h)))

	DeleteStdf(h)
	assert.NotPanics(t, func() {
		DeleteStdf(h)
		assert.Equal(t, 0, int(GetFinishT(h)))
		assert.False(t, bool(ParserStdfToHdf5(h, nil)))
	})
	assert.NotPanics(t, func() { DeleteStdf(0) })
}
