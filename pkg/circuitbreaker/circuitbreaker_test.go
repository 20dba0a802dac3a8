package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New[int](Config{Name: "test", MaxRequests: 1, Timeout: time.Minute, FailureThreshold: 3})
	boom := errors.New("broker down")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.True(t, IsOpen(err))
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New[string](Config{Name: "test", Timeout: time.Minute, FailureThreshold: 2})
	boom := errors.New("timeout")

	_, _ = cb.Execute(func() (string, error) { return "", boom })
	v, err := cb.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	_, _ = cb.Execute(func() (string, error) { return "", boom })

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := New[int](Config{Name: "test", MaxRequests: 1, Timeout: 20 * time.Millisecond, FailureThreshold: 1})

	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("fail") })
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errors.New("other")))
	assert.False(t, IsOpen(nil))
}
