package cmdrunner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccessStripsTrailingNewline(t *testing.T) {
	r := New()
	res := r.Run("echo hello", true, 4096, 2000)
	require.NoError(t, res.Err)
	assert.Equal(t, OK, res.Code)
	assert.Equal(t, "hello", res.Output)
}

func TestRunNonZeroExitIsFail(t *testing.T) {
	r := New()
	res := r.Run("exit 3", false, 4096, 2000)
	assert.Equal(t, FAIL, res.Code)
	assert.Error(t, res.Err)
}

func TestRunOutputCapped(t *testing.T) {
	r := New()
	res := r.Run("yes x | head -c 100000", false, 16, 2000)
	assert.LessOrEqual(t, len(res.Output), 16)
}

func TestRunTimeout(t *testing.T) {
	r := New()
	res := r.Run("sleep 5", false, 4096, 50)
	assert.Equal(t, FAIL, res.Code)
	assert.Error(t, res.Err)
	assert.True(t, strings.Contains(res.Err.Error(), "timed out"))
}

func TestRunNoStartOnBadShell(t *testing.T) {
	r := &Runner{Shell: "/no/such/shell"}
	res := r.Run("echo hi", true, 4096, 2000)
	assert.Equal(t, NOSTART, res.Code)
	assert.Error(t, res.Err)
}

func TestRunNoOutputWhenWanted(t *testing.T) {
	r := New()
	res := r.Run("true", true, 4096, 2000)
	assert.Equal(t, NOOUTPUT, res.Code)
}
