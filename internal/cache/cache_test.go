package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/numbersense/internal/risk"
)

func profile(level risk.Level) *risk.Profile {
	return &risk.Profile{
		Level:      level,
		Confidence: 0.4,
		Indicators: []risk.Indicator{{Criterion: "no automatization", Severity: risk.SeveritySevere}},
		Patterns:   []string{},
	}
}

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	_, err := c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "alice", profile(risk.LevelModerate)))
	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, risk.LevelModerate, got.Level)
	assert.NotNil(t, got.Patterns)

	_, err = c.Get(ctx, "bob")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Invalidate(ctx, "alice"))
	_, err = c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "alice", profile(risk.LevelLow)))

	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "alice")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	p := profile(risk.LevelHigh)
	require.NoError(t, c.Set(ctx, "alice", p))

	p.Indicators[0].Criterion = "mutated after set"
	got, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "no automatization", got.Indicators[0].Criterion)

	got.Indicators[0].Criterion = "mutated after get"
	again, _ := c.Get(ctx, "alice")
	assert.Equal(t, "no automatization", again.Indicators[0].Criterion)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c ProfileCache = Nop{}
	require.NoError(t, c.Set(ctx, "alice", profile(risk.LevelLow)))
	_, err := c.Get(ctx, "alice")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.NoError(t, c.Invalidate(ctx, "alice"))
	assert.NoError(t, c.Close())
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), "  ", time.Minute)
	assert.Error(t, err)
}

func TestNewRedis_UnreachableFailsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Port 1 on loopback refuses connections immediately.
	_, err := NewRedis(ctx, "127.0.0.1:1", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "numbersense:risk:alice", key("alice"))
}
