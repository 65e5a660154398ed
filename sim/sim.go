// Package sim is an in-process quadrotor used for dry runs.
//
// The vehicle moves in a straight line towards its current setpoint at no
// more than MaxSpeed, integrated on the supplied clock. It has no dynamics
// beyond that.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gtu-nova/nova-letter/trajectory"
)

var ErrGrounded = errors.New("vehicle is on the ground")

type Vehicle struct {
	MaxSpeed float64 // m/s

	clock  clock.Clock
	logger *logrus.Logger

	mu       sync.Mutex
	pos      trajectory.Waypoint
	target   trajectory.Waypoint
	speed    float64
	last     time.Time
	airborne bool
	closed   bool
	commands int
}

func New(clk clock.Clock, logger *logrus.Logger) *Vehicle {
	if clk == nil {
		clk = clock.New()
	}
	return &Vehicle{
		MaxSpeed: 2,
		clock:    clk,
		logger:   logger,
		last:     clk.Now(),
	}
}

// advance integrates motion up to now. Caller holds mu.
func (v *Vehicle) advance() {
	now := v.clock.Now()
	dt := now.Sub(v.last).Seconds()
	v.last = now
	if dt <= 0 {
		return
	}

	dist := v.pos.Distance(v.target)
	if dist == 0 {
		return
	}
	step := math.Min(v.speed*dt, dist)
	f := step / dist
	v.pos.X += f * (v.target.X - v.pos.X)
	v.pos.Y += f * (v.target.Y - v.pos.Y)
	v.pos.Z += f * (v.target.Z - v.pos.Z)
}

func (v *Vehicle) setTarget(p trajectory.Waypoint, duration time.Duration) {
	v.advance()
	v.target = trajectory.Waypoint{X: p.X, Y: p.Y, Z: p.Z}
	v.speed = v.MaxSpeed
	if duration > 0 {
		if s := v.pos.Distance(v.target) / duration.Seconds(); s < v.MaxSpeed {
			v.speed = s
		}
	}
	v.commands++
}

func (v *Vehicle) Takeoff(ctx context.Context, height float64, duration time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errors.New("vehicle closed")
	}
	v.airborne = true
	v.setTarget(trajectory.Waypoint{X: v.pos.X, Y: v.pos.Y, Z: height}, duration)
	v.logger.Debugf("sim: takeoff to %.2f", height)
	return nil
}

func (v *Vehicle) GoTo(ctx context.Context, p trajectory.Waypoint, yaw float64, duration time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.airborne {
		return ErrGrounded
	}
	v.setTarget(p, duration)
	return nil
}

func (v *Vehicle) CmdPosition(ctx context.Context, p trajectory.Waypoint, yaw float64) error {
	return v.GoTo(ctx, p, yaw, 0)
}

func (v *Vehicle) Position(ctx context.Context) (trajectory.Waypoint, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	return v.pos, nil
}

func (v *Vehicle) Land(ctx context.Context, height float64, duration time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.airborne {
		return ErrGrounded
	}
	v.setTarget(trajectory.Waypoint{X: v.pos.X, Y: v.pos.Y, Z: height}, duration)
	v.airborne = false
	v.logger.Debugf("sim: landing at (%.2f, %.2f)", v.pos.X, v.pos.Y)
	return nil
}

// Commands returns how many setpoints the vehicle has accepted.
func (v *Vehicle) Commands() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commands
}

func (v *Vehicle) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}
