// Package flight walks a vehicle through a generated plan.
package flight

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gtu-nova/nova-letter/trajectory"
)

// Vehicle is the subset of a flight controller needed to fly a plan.
type Vehicle interface {
	Takeoff(ctx context.Context, height float64, duration time.Duration) error
	GoTo(ctx context.Context, p trajectory.Waypoint, yaw float64, duration time.Duration) error
	CmdPosition(ctx context.Context, p trajectory.Waypoint, yaw float64) error
	Position(ctx context.Context) (trajectory.Waypoint, error)
	Land(ctx context.Context, height float64, duration time.Duration) error
	Close() error
}

// Recorder receives the observed position after every command.
type Recorder interface {
	Record(frameID int, pos trajectory.Waypoint, at time.Time)
}

type Mode string

const (
	// ModeRate streams position setpoints at the plan frame rate.
	ModeRate Mode = "rate"
	// ModeTimed sends one goTo per waypoint and waits it out.
	ModeTimed Mode = "timed"
)

type Options struct {
	Mode            Mode
	TakeoffHeight   float64
	TakeoffDuration time.Duration
	LandHeight      float64
	GotoDuration    time.Duration
	Settle          time.Duration
}

func DefaultOptions() Options {
	return Options{
		Mode:            ModeRate,
		TakeoffHeight:   0.6,
		TakeoffDuration: 2500 * time.Millisecond,
		LandHeight:      0.05,
		GotoDuration:    time.Second,
		Settle:          time.Second,
	}
}

type Executor struct {
	opts     Options
	clock    clock.Clock
	logger   *logrus.Logger
	recorder Recorder
}

func NewExecutor(opts Options, clk clock.Clock, logger *logrus.Logger) *Executor {
	if clk == nil {
		clk = clock.New()
	}
	return &Executor{opts: opts, clock: clk, logger: logger}
}

// WithRecorder attaches r; positions are only read back when one is set.
func (e *Executor) WithRecorder(r Recorder) *Executor {
	e.recorder = r
	return e
}

// Run flies the plan. Once the vehicle is airborne it is always landed, even
// when ctx is cancelled halfway through the waypoints.
func (e *Executor) Run(ctx context.Context, plan trajectory.Plan, v Vehicle) error {
	if plan.FPS <= 0 {
		return errors.Errorf("invalid plan frame rate %d", plan.FPS)
	}
	if e.opts.Mode != ModeRate && e.opts.Mode != ModeTimed {
		return errors.Errorf("unknown mode %q", e.opts.Mode)
	}

	e.logger.Infof("Taking off to %.2fm", e.opts.TakeoffHeight)
	if err := v.Takeoff(ctx, e.opts.TakeoffHeight, e.opts.TakeoffDuration); err != nil {
		return errors.Wrap(err, "takeoff")
	}
	e.sleep(ctx, e.opts.TakeoffDuration+e.opts.Settle)

	walkErr := e.walk(ctx, plan, v)
	if walkErr != nil {
		e.logger.Warnf("Waypoint walk aborted (%v), landing", walkErr)
	}

	// land on a fresh context so an interrupted flight still comes down
	landCtx := context.Background()
	e.logger.Info("Landing")
	if err := v.Land(landCtx, e.opts.LandHeight, e.opts.TakeoffDuration); err != nil {
		return errors.Wrap(err, "land")
	}
	e.sleep(landCtx, e.opts.TakeoffDuration+e.opts.Settle)

	return walkErr
}

func (e *Executor) walk(ctx context.Context, plan trajectory.Plan, v Vehicle) error {
	period := time.Second / time.Duration(plan.FPS)
	ticker := e.clock.Ticker(period)
	defer ticker.Stop()

	for i, p := range plan.Waypoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch e.opts.Mode {
		case ModeTimed:
			if err := v.GoTo(ctx, p, 0, e.opts.GotoDuration); err != nil {
				return errors.Wrapf(err, "goto waypoint %d", i)
			}
		default:
			if err := v.CmdPosition(ctx, p, 0); err != nil {
				return errors.Wrapf(err, "waypoint %d", i)
			}
		}

		e.record(ctx, i, v)

		switch e.opts.Mode {
		case ModeTimed:
			if !e.sleep(ctx, e.opts.GotoDuration) {
				return ctx.Err()
			}
		default:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		if i > 0 && i%(plan.FPS*5) == 0 {
			e.logger.Debugf("Waypoint %d/%d", i, len(plan.Waypoints))
		}
	}
	return nil
}

func (e *Executor) record(ctx context.Context, i int, v Vehicle) {
	if e.recorder == nil {
		return
	}
	pos, err := v.Position(ctx)
	if err != nil {
		e.logger.Warnf("No position for frame %d (%v)", i, err)
		return
	}
	e.recorder.Record(i, pos, e.clock.Now())
}

// sleep waits for d on the executor clock and reports false if ctx ended first.
func (e *Executor) sleep(ctx context.Context, d time.Duration) bool {
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
