package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobProcessorRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c03 := key(t, "C03")

	_, err := f.coordinator.Enqueue(ctx, c03, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, c03, "userB", "Bob")
	require.NoError(t, err)

	holds := HoldSweeperFunc(func(context.Context) (int, error) { return 3, nil })
	jp := NewJobProcessor(f.coordinator, holds, f.clock, &JobConfig{SweepInterval: time.Second})

	assert.Equal(t, SweepReport{HoldsExpired: 3}, jp.RunOnce(ctx))

	f.clock.Advance(10 * time.Minute)
	report := jp.RunOnce(ctx)
	assert.Equal(t, SweepReport{QueuesTouched: 1, OffersExpired: 1, Promoted: 1, HoldsExpired: 3}, report)

	status := jp.GetJobStatus()
	assert.Equal(t, "stopped", status["status"])
	assert.Equal(t, report, status["last_sweep"])
}

func TestJobProcessorHoldSweepErrorIsLogged(t *testing.T) {
	f := newFixture(t)
	holds := HoldSweeperFunc(func(context.Context) (int, error) { return 0, errors.New("redis down") })
	jp := NewJobProcessor(f.coordinator, holds, f.clock, nil)

	assert.Equal(t, SweepReport{}, jp.RunOnce(context.Background()))
}

func TestJobProcessorTicks(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan struct{}, 4)
	holds := HoldSweeperFunc(func(context.Context) (int, error) {
		swept <- struct{}{}
		return 0, nil
	})
	jp := NewJobProcessor(f.coordinator, holds, f.clock, &JobConfig{SweepInterval: 15 * time.Second})
	jp.Start(ctx)
	defer jp.Stop()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(15 * time.Second)

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run on tick")
	}
	assert.Equal(t, "running", jp.GetJobStatus()["status"])
}
