package budget_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrovis/starstream/budget"
)

func TestTrackerReserveRelease(t *testing.T) {
	tracker := budget.NewTracker(map[budget.Name]uint64{budget.CPU: 1000})

	t.Run("reservations up to the ceiling succeed", func(t *testing.T) {
		assert.True(t, tracker.TryReserve(budget.CPU, 400))
		assert.True(t, tracker.TryReserve(budget.CPU, 400))
		assert.Equal(t, uint64(800), tracker.Consumed(budget.CPU))
	})
	t.Run("refusal leaves consumption unchanged", func(t *testing.T) {
		assert.False(t, tracker.TryReserve(budget.CPU, 400))
		assert.Equal(t, uint64(800), tracker.Consumed(budget.CPU))
	})
	t.Run("release reopens headroom", func(t *testing.T) {
		tracker.Release(budget.CPU, 400)
		assert.True(t, tracker.TryReserve(budget.CPU, 400))
		assert.Equal(t, uint64(1000), tracker.Consumed(budget.CPU))
	})
	t.Run("release floors at zero", func(t *testing.T) {
		tracker.Release(budget.CPU, 5000)
		assert.Zero(t, tracker.Consumed(budget.CPU))
	})
	t.Run("budgets are independent", func(t *testing.T) {
		assert.False(t, tracker.TryReserve(budget.GPU, 1))
		assert.Zero(t, tracker.Consumed(budget.GPU))
	})
}

func TestTrackerNeverExceedsCeiling(t *testing.T) {
	tracker := budget.NewTracker(map[budget.Name]uint64{
		budget.CPU: 10_000,
		budget.GPU: 5_000,
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if tracker.TryReserve(budget.CPU, 7) {
					assert.LessOrEqual(t, tracker.Consumed(budget.CPU), tracker.Ceiling(budget.CPU))
					tracker.Release(budget.CPU, 7)
				}
				if tracker.TryReserve(budget.GPU, 13) {
					tracker.Release(budget.GPU, 13)
				}
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, tracker.Consumed(budget.CPU))
	assert.Zero(t, tracker.Consumed(budget.GPU))
}

func TestCeilings(t *testing.T) {
	ctx := context.Background()
	t.Run("gpu probe scales the gpu ceiling", func(t *testing.T) {
		total := uint64(8 << 30)
		ceilings := budget.Ceilings(ctx, func() (uint64, bool) {
			return total, true
		})
		assert.Equal(t, uint64(float64(total)*budget.DefaultGPUFraction), ceilings[budget.GPU])
	})
	t.Run("failed probe falls back to the default", func(t *testing.T) {
		ceilings := budget.Ceilings(ctx, func() (uint64, bool) {
			return 0, false
		})
		assert.Equal(t, uint64(budget.DefaultGPUCeiling), ceilings[budget.GPU])
	})
	t.Run("cpu ceiling is always positive", func(t *testing.T) {
		ceilings := budget.Ceilings(ctx, nil)
		require.Positive(t, ceilings[budget.CPU])
	})
}
