package fc

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gtu-nova/nova-letter/msp"
	"github.com/gtu-nova/nova-letter/trajectory"
)

var ErrNoFix = errors.New("no position fix yet")

type MspCallback func(fr msp.Frame, fc *FC) error

// reconnecter is implemented by ports that can be reopened after a reset.
type reconnecter interface {
	Reconnect(timeout time.Duration) error
}

// RC channel layout used to drive INAV in GCS navigation mode.
const (
	chRoll = iota
	chPitch
	chThrottle
	chYaw
	chArm     // AUX1
	chNavMode // AUX2, GCS_NAV + POSHOLD
)

type Options struct {
	Frame Frame
	// PollInterval is how often position telemetry is requested.
	PollInterval time.Duration
	// RcInterval is how often RC channels are refreshed while armed.
	RcInterval time.Duration
	// ReconnectTimeout bounds how long a lost port is waited for.
	ReconnectTimeout time.Duration
}

func DefaultOptions(frame Frame) Options {
	return Options{
		Frame:            frame,
		PollInterval:     50 * time.Millisecond,
		RcInterval:       100 * time.Millisecond,
		ReconnectTimeout: 5 * time.Second,
	}
}

// FC represents a connection to the flight controller, which can
// handle disconnections and reconnections on its own. It flies in the local
// frame described by Options.Frame.
type FC struct {
	msp         *msp.MSP
	port        io.ReadWriter
	callbackMap map[uint16]MspCallback
	onFrame     MspCallback
	logger      *logrus.Logger
	opts        Options

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	info     Info
	gps      msp.RawGpsData
	haveFix  bool
	altitude int32 // cm above home
	haveAlt  bool
	nav      msp.NavStatusData
	haveNav  bool
	rc       msp.RawRcData
	armed    bool
	// landing is set once the board accepted a land target while armed.
	landing bool
	loopErr error
}

// NewFC returns a new FC talking MSP over port. onFrame receives every frame
// without a registered callback and may be nil.
func NewFC(port io.ReadWriter, onFrame MspCallback, opts Options, logger *logrus.Logger) *FC {
	ctx, cancel := context.WithCancel(context.Background())
	f := &FC{
		msp:         msp.New(port, logger),
		port:        port,
		callbackMap: make(map[uint16]MspCallback),
		onFrame:     onFrame,
		logger:      logger,
		opts:        opts,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for i := range f.rc.Channels {
		f.rc.Channels[i] = msp.RcMid
	}
	f.rc.Channels[chThrottle] = msp.RcLow
	f.rc.Channels[chArm] = msp.RcLow
	f.rc.Channels[chNavMode] = msp.RcLow

	f.AddCallbacks(
		[]uint16{msp.ApiVersion, msp.FcVariant, msp.FcVersion, msp.BoardInfo, msp.BuildInfo,
			msp.RawGps, msp.Altitude, msp.NavStatus, msp.Wp, msp.DebugMsg},
		[]MspCallback{handleApiVersion, handleFcVariant, handleFcVersion, handleBoardInfo, handleBuildInfo,
			handleRawGps, handleAltitude, handleNavStatus, handleWp, handleDebugMsg},
	)

	go f.mainLoop(ctx)
	go f.pollLoop(ctx)
	return f
}

func (f *FC) AddCallback(msgId uint16, fn MspCallback) {
	f.callbackMap[msgId] = fn
}

func (f *FC) AddCallbacks(msgIds []uint16, fns []MspCallback) {
	if len(msgIds) != len(fns) {
		panic("The ids slice and the functions slice are not equal")
	}

	for i, id := range msgIds {
		f.AddCallback(id, fns[i])
	}
}

func (f *FC) WriteCmd(cmd uint16, args ...interface{}) (int, error) {
	return f.msp.WriteCmd(cmd, args...)
}

// Identify asks the board for its firmware and hardware details. Replies are
// logged as they arrive.
func (f *FC) Identify() error {
	for _, cmd := range []uint16{msp.ApiVersion, msp.FcVariant, msp.FcVersion, msp.BoardInfo, msp.BuildInfo} {
		if _, err := f.WriteCmd(cmd); err != nil {
			return errors.Wrapf(err, "request %d", cmd)
		}
	}
	return nil
}

func (f *FC) Info() Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

// NavStatus returns the last navigation status reported by the board.
func (f *FC) NavStatus() (msp.NavStatusData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nav, f.haveNav
}

func (f *FC) mainLoop(ctx context.Context) {
	defer close(f.done)
	defer f.logger.Info("Main loop ended")

	for ctx.Err() == nil {
		frame, err := f.msp.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var perr *msp.InvalidPacketError
			switch {
			case errors.As(err, &perr):
				f.logger.Warnf("Invalid packet (%v)", err)
				continue
			case err == io.EOF:
				// read timeout on an idle link
				continue
			case err == io.ErrUnexpectedEOF:
				f.logger.Warn("Truncated frame")
				continue
			}

			r, ok := f.port.(reconnecter)
			if !ok {
				f.fail(errors.Wrap(err, "connection lost"))
				return
			}
			f.logger.Warnf("Connection lost (%v), reconnecting", err)
			if rerr := r.Reconnect(f.opts.ReconnectTimeout); rerr != nil {
				f.fail(errors.Wrap(rerr, "reconnect"))
				return
			}
			f.logger.Info("Reconnected to Flight Controller")
			continue
		}

		if callback, found := f.callbackMap[frame.Code]; found {
			err = callback(*frame, f)
		} else if f.onFrame != nil {
			err = f.onFrame(*frame, f)
		} else {
			f.logger.Debugf("Unhandled MSP frame %d with payload %v", frame.Code, frame.Payload)
		}
		if err != nil {
			f.logger.Errorf("Error in callback for message code %d (%v)", frame.Code, err)
		}
	}
}

func (f *FC) fail(err error) {
	f.logger.Error(err)
	f.mu.Lock()
	f.loopErr = err
	f.mu.Unlock()
}

// pollLoop requests telemetry and keeps the RC link alive while armed.
func (f *FC) pollLoop(ctx context.Context) {
	poll := time.NewTicker(f.opts.PollInterval)
	defer poll.Stop()
	rc := time.NewTicker(f.opts.RcInterval)
	defer rc.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			_, _ = f.WriteCmd(msp.RawGps)
			_, _ = f.WriteCmd(msp.Altitude)
			_, _ = f.WriteCmd(msp.NavStatus)
		case <-rc.C:
			f.mu.Lock()
			armed, channels := f.armed, f.rc
			f.mu.Unlock()
			if armed {
				_, _ = f.WriteCmd(msp.SetRawRc, channels)
			}
		}
	}
}

func (f *FC) sendRc(arm, nav bool) error {
	f.mu.Lock()
	f.rc.Channels[chArm] = level(arm)
	f.rc.Channels[chNavMode] = level(nav)
	f.rc.Channels[chThrottle] = msp.RcMid
	if !arm {
		f.rc.Channels[chThrottle] = msp.RcLow
	}
	f.armed = arm
	channels := f.rc
	f.mu.Unlock()

	_, err := f.WriteCmd(msp.SetRawRc, channels)
	return errors.Wrap(err, "set rc")
}

func level(on bool) uint16 {
	if on {
		return msp.RcHigh
	}
	return msp.RcLow
}

func (f *FC) sendTarget(p trajectory.Waypoint, speed float64, action uint8) error {
	lat, lon := f.opts.Frame.ToGeo(p)
	wp := msp.SetGetWpData{
		WpNo:      msp.WpGcsNav,
		Action:    action,
		Latitude:  toE7(lat),
		Longitude: toE7(lon),
		Altitude:  int32(math.Round(p.Z * 100)),
		P1:        int16(math.Min(math.Round(speed*100), math.MaxInt16)),
		Flag:      msp.WpFlagLast,
	}
	_, err := f.WriteCmd(msp.SetWp, wp)
	return errors.Wrap(err, "set waypoint")
}

// Takeoff arms the board in GCS navigation mode and holds height above home.
func (f *FC) Takeoff(ctx context.Context, height float64, duration time.Duration) error {
	f.mu.Lock()
	f.landing = false
	f.mu.Unlock()
	if err := f.sendRc(true, true); err != nil {
		return err
	}
	if err := f.sendTarget(trajectory.Waypoint{Z: height}, speedFor(height, duration), msp.WpActionWaypoint); err != nil {
		return err
	}
	// read the target back, the reply is logged by handleWp
	_, err := f.WriteCmd(msp.Wp, uint8(msp.WpGcsNav))
	return errors.Wrap(err, "read back waypoint")
}

func (f *FC) GoTo(ctx context.Context, p trajectory.Waypoint, yaw float64, duration time.Duration) error {
	speed := 0.0
	if cur, err := f.Position(ctx); err == nil {
		speed = speedFor(cur.Distance(p), duration)
	}
	return f.sendTarget(p, speed, msp.WpActionWaypoint)
}

func (f *FC) CmdPosition(ctx context.Context, p trajectory.Waypoint, yaw float64) error {
	return f.sendTarget(p, 0, msp.WpActionWaypoint)
}

func speedFor(dist float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return dist / d.Seconds()
}

func (f *FC) Position(ctx context.Context) (trajectory.Waypoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loopErr != nil {
		return trajectory.Waypoint{}, f.loopErr
	}
	if !f.haveFix || !f.haveAlt {
		return trajectory.Waypoint{}, ErrNoFix
	}
	x, y := f.opts.Frame.FromGeo(fromE7(f.gps.Latitude), fromE7(f.gps.Longitude))
	return trajectory.Waypoint{X: x, Y: y, Z: float64(f.altitude) / 100}, nil
}

// Land descends to height over duration at the current position (home when
// there is no fix), then disarms.
func (f *FC) Land(ctx context.Context, height float64, duration time.Duration) error {
	if err := f.sendLand(ctx, height, duration); err != nil {
		return err
	}

	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return f.sendRc(false, false)
}

func (f *FC) sendLand(ctx context.Context, height float64, duration time.Duration) error {
	target := trajectory.Waypoint{Z: height}
	cur, err := f.Position(ctx)
	if err == nil {
		target.X, target.Y = cur.X, cur.Y
	}
	if err := f.sendTarget(target, speedFor(math.Abs(cur.Z-height), duration), msp.WpActionLand); err != nil {
		return err
	}
	f.mu.Lock()
	f.landing = true
	f.mu.Unlock()
	return nil
}

// Close stops the loops and closes the port if it can be closed. It never
// disarms: a vehicle still armed is sent a land target instead, once more if
// the board never accepted one.
func (f *FC) Close() error {
	f.mu.Lock()
	armed, landing := f.armed, f.landing
	f.mu.Unlock()
	if armed && !landing {
		if err := f.sendLand(context.Background(), 0, 0); err != nil {
			f.logger.Errorf("Vehicle still armed and land target rejected (%v)", err)
		} else {
			f.logger.Warn("Vehicle still armed, land target sent")
		}
	} else if armed {
		f.logger.Warn("Vehicle still armed while landing, leaving it to the flight controller")
	}

	f.cancel()
	var err error
	if c, ok := f.port.(io.Closer); ok {
		err = c.Close()
	}
	select {
	case <-f.done:
	case <-time.After(time.Second):
		f.logger.Warn("Read loop did not stop")
	}
	return err
}
