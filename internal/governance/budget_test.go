package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetTracker_ConsumeAndAllow(t *testing.T) {
	b := NewBudgetTracker()

	assert.True(t, b.Allow("agent-1", 100))
	b.Consume("agent-1", 60)
	assert.True(t, b.Allow("agent-1", 100))
	assert.Equal(t, int64(40), b.Remaining("agent-1", 100))

	b.Consume("agent-1", 40)
	assert.False(t, b.Allow("agent-1", 100))
	assert.Zero(t, b.Remaining("agent-1", 100))
}

func TestBudgetTracker_UnlimitedWhenNoLimit(t *testing.T) {
	b := NewBudgetTracker()
	b.Consume("agent-1", 1_000_000)

	assert.True(t, b.Allow("agent-1", 0))
	assert.True(t, b.Allow("agent-1", -1))
}

func TestBudgetTracker_PerPrincipalIsolation(t *testing.T) {
	b := NewBudgetTracker()
	b.Consume("agent-1", 100)

	assert.False(t, b.Allow("agent-1", 100))
	assert.True(t, b.Allow("agent-2", 100))
}

func TestBudgetTracker_DailyRollover(t *testing.T) {
	b := NewBudgetTracker()
	day := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }

	b.Consume("agent-1", 100)
	assert.False(t, b.Allow("agent-1", 100))

	day = day.Add(2 * time.Hour) // past UTC midnight
	assert.True(t, b.Allow("agent-1", 100))
	assert.Zero(t, b.Used("agent-1"))
}
