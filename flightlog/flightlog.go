// Package flightlog keeps the positions observed while flying a plan and
// writes them out in the motion capture log format.
package flightlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gtu-nova/nova-letter/trajectory"
)

// FileLayout is the timestamp layout used in log file names (HH_MM_SS_mm_dd_YYYY).
const FileLayout = "15_04_05_01_02_2006"

type Frame struct {
	FrameID int        `json:"frame_id"`
	Tvec    [3]float64 `json:"tvec"`
	Time    float64    `json:"time"` // unix epoch, milliseconds
}

type Sink interface {
	Publish(f Frame) error
}

type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	sinks  []Sink
	onErr  func(error)
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

// OnSinkError sets the callback for sink failures. Failures never stop recording.
func (r *Recorder) OnSinkError(fn func(error)) {
	r.onErr = fn
}

func (r *Recorder) Record(frameID int, pos trajectory.Waypoint, at time.Time) {
	f := Frame{
		FrameID: frameID,
		Tvec:    pos.Vec(),
		Time:    float64(at.Unix())*1000 + float64(at.Nanosecond())/1e6,
	}

	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()

	for _, s := range r.sinks {
		if err := s.Publish(f); err != nil && r.onErr != nil {
			r.onErr(err)
		}
	}
}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Save writes every recorded frame to dir/vicon_<now>.json and returns the path.
func (r *Recorder) Save(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create log dir")
	}

	doc := struct {
		Frames []Frame `json:"frames"`
	}{r.Frames()}
	if doc.Frames == nil {
		doc.Frames = []Frame{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encode log")
	}

	path := filepath.Join(dir, "vicon_"+now.Format(FileLayout)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(err, "write log")
	}
	return path, nil
}
