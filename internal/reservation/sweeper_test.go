package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/queue"
)

func TestSweepReclaimsExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "GONE", DurationHours: 1})
	require.NoError(t, err)
	_, err = f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s2", Plate: "FRESH", DurationHours: 3})
	require.NoError(t, err)

	s := NewSweeper(f.engine, 0)

	// Still inside both windows: nothing happens.
	s.Sweep()
	sp, _ := f.engine.Space("s1")
	assert.Equal(t, model.StatusReserved, sp.Status)

	// Past the first deadline but not the second.
	f.clock.Advance(time.Hour + time.Second)
	s.Sweep()

	sp, _ = f.engine.Space("s1")
	assert.True(t, sp.Vacant())
	_, ok := f.engine.Registry().Lookup("GONE")
	assert.False(t, ok)

	sp, _ = f.engine.Space("s2")
	assert.Equal(t, model.StatusReserved, sp.Status)
	_, ok = f.engine.Registry().Lookup("FRESH")
	assert.True(t, ok)

	ev, ok := f.events.last()
	require.True(t, ok)
	assert.Equal(t, queue.EventExpired, ev.Event)
}

func TestSweepSkipsOccupied(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Reserve(ctx, ReserveRequest{SpaceID: "s1", Plate: "AB123CD", DurationHours: 1})
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkOccupied(ctx, "s1", "AB123CD"))

	f.clock.Advance(48 * time.Hour)
	NewSweeper(f.engine, 0).Sweep()

	sp, _ := f.engine.Space("s1")
	assert.Equal(t, model.StatusOccupied, sp.Status)
	_, ok := f.engine.Registry().Lookup("AB123CD")
	assert.True(t, ok)
}

func TestSweeperDefaultInterval(t *testing.T) {
	s := NewSweeper(newFixture().engine, 0)
	assert.Equal(t, DefaultSweepInterval, s.interval)
}

func TestSweeperStartStop(t *testing.T) {
	s := NewSweeper(newFixture().engine, time.Minute)
	require.NoError(t, s.Start())
	s.Stop()
}
