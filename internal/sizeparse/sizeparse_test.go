package sizeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainNumber(t *testing.T) {
	n, err := Parse("1024")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)
}

func TestParseSuffixes(t *testing.T) {
	cases := map[string]int64{
		"1K":  1 << 10,
		"1k":  1 << 10,
		"1M":  1 << 20,
		"1G":  1 << 30,
		"1T":  1 << 40,
		"1B":  1,
		"1KiB": 1 << 10,
		"1MiB": 1 << 20,
	}
	for in, want := range cases {
		n, err := Parse(in)
		require.NoErrorf(t, err, "input %q", in)
		assert.Equalf(t, want, n, "input %q", in)
	}
}

func TestParseFractional(t *testing.T) {
	n, err := Parse("1.5G")
	require.NoError(t, err)
	assert.Equal(t, int64(1.5*(1<<30)), n)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("nope")
	assert.Error(t, err)
}

func TestParseSuffixOnly(t *testing.T) {
	_, err := Parse("M")
	assert.Error(t, err)
}
