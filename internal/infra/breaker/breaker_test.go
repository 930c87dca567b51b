package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_PassesThroughResult(t *testing.T) {
	cb := New("test", time.Minute)
	got, err := Execute(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}

	calls := 0
	_, err := Execute(cb, func() (int, error) { calls++; return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Zero(t, calls)
}
