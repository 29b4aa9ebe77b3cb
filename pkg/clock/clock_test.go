package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, time.January, 20, 15, 0, 0, 0, time.UTC)
	m := NewMock(start)
	require.True(t, m.Now().Equal(start))

	m.Advance(90 * time.Minute)
	require.True(t, m.Now().Equal(start.Add(90*time.Minute)))

	m.Set(start.Add(-time.Hour))
	require.True(t, m.Now().Equal(start.Add(-time.Hour)))
}

func TestSystemIsUTC(t *testing.T) {
	require.Equal(t, time.UTC, System{}.Now().Location())
}
