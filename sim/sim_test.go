package sim

import (
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtu-nova/nova-letter/trajectory"
)

func newTestVehicle() (*Vehicle, *clock.Mock) {
	clk := clock.NewMock()
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return New(clk, l), clk
}

func TestTakeoffAndMove(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()

	assert.Equal(t, ErrGrounded, v.CmdPosition(ctx, trajectory.Waypoint{X: 1}, 0))

	require.NoError(t, v.Takeoff(ctx, 1.0, 2*time.Second))
	clk.Add(time.Second)
	p, err := v.Position(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Z, 1e-9)

	clk.Add(5 * time.Second)
	p, _ = v.Position(ctx)
	assert.InDelta(t, 1.0, p.Z, 1e-9)

	// speed is capped at MaxSpeed
	require.NoError(t, v.CmdPosition(ctx, trajectory.Waypoint{X: 4, Z: 1}, 0))
	clk.Add(time.Second)
	p, _ = v.Position(ctx)
	assert.InDelta(t, 2.0, p.X, 1e-9)

	clk.Add(time.Second)
	p, _ = v.Position(ctx)
	assert.InDelta(t, 4.0, p.X, 1e-9)
	assert.Equal(t, 2, v.Commands())
}

func TestLand(t *testing.T) {
	v, clk := newTestVehicle()
	ctx := context.Background()

	assert.Equal(t, ErrGrounded, v.Land(ctx, 0, time.Second))

	require.NoError(t, v.Takeoff(ctx, 1, time.Second))
	clk.Add(time.Second)
	require.NoError(t, v.Land(ctx, 0.05, time.Second))
	clk.Add(2 * time.Second)

	p, _ := v.Position(ctx)
	assert.InDelta(t, 0.05, p.Z, 1e-9)
	assert.Equal(t, ErrGrounded, v.GoTo(ctx, trajectory.Waypoint{}, 0, time.Second))

	require.NoError(t, v.Close())
	assert.Error(t, v.Takeoff(ctx, 1, time.Second))
}
