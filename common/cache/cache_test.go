package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	id := uuid.New()

	_, ok := c.Get(id)
	require.False(t, ok)

	c.Set(id, RoundConfig{StartUnit: 8, TotalUnits: 18, ScoreRule: "value >= 1"})
	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, 8, got.StartUnit)
	require.Equal(t, 18, got.TotalUnits)

	c.Delete(id)
	_, ok = c.Get(id)
	require.False(t, ok)
}

func TestExpiredEntryMisses(t *testing.T) {
	c := New(time.Millisecond)
	defer c.Stop()

	id := uuid.New()
	c.Set(id, RoundConfig{TotalUnits: 18})

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(id)
	require.False(t, ok)
}

func TestStop(t *testing.T) {
	c := New(time.Minute)
	c.Stop()
	c.Stop() // repeat is a no-op

	// The cache keeps working without the janitor
	id := uuid.New()
	c.Set(id, RoundConfig{StartUnit: 1, TotalUnits: 18})
	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, 18, got.TotalUnits)
}
