package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCodeShape(t *testing.T) {
	g := NewCodeGenerator(func(context.Context, string) (bool, error) { return false, nil })
	for i := 0; i < 50; i++ {
		code, err := g.EventCode(context.Background())
		require.NoError(t, err)
		assert.True(t, IsEventCode(code), code)
	}
	assert.False(t, IsEventCode("abc123"))
	assert.False(t, IsEventCode("ABC12"))
}

func TestEventCodeRetriesOnCollision(t *testing.T) {
	calls := 0
	g := NewCodeGenerator(func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	_, err := g.EventCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestEventCodeGivesUp(t *testing.T) {
	g := NewCodeGenerator(func(context.Context, string) (bool, error) { return true, nil })
	g.maxAttempts = 4
	_, err := g.EventCode(context.Background())
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)

	boom := errors.New("db down")
	g = NewCodeGenerator(func(context.Context, string) (bool, error) { return false, boom })
	_, err = g.EventCode(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPIN(t *testing.T) {
	g := NewCodeGenerator(nil)
	g.intn = func(int) int { return 42 }
	assert.Equal(t, "0042", g.PIN())
	g.intn = func(int) int { return 9999 }
	assert.Equal(t, "9999", g.PIN())
}
