// Package trajectory turns a recorded motion capture into a flat list of
// waypoints sampled at the recording's frame rate.
package trajectory

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// StateReturn marks a segment flying back towards the start of the letter.
// It is dropped from the last pass.
const StateReturn = "RETURN"

// Recording is the JSON document produced by the trajectory recorder.
// Points are stored as [y, x, z].
type Recording struct {
	FPS           int        `json:"fps"`
	StartPosition [3]float64 `json:"start_position"`
	Segments      []Segment  `json:"segments"`
}

type Segment struct {
	Position [][3]float64 `json:"position"`
	Velocity [][3]float64 `json:"velocity"`
	State    string       `json:"state"`
}

// Load reads and validates a recording from disk.
func Load(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open trajectory")
	}
	defer f.Close()

	rec, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rec, nil
}

func Parse(r io.Reader) (*Recording, error) {
	var raw struct {
		FPS           int       `json:"fps"`
		StartPosition []float64 `json:"start_position"`
		Segments      []struct {
			Position [][]float64 `json:"position"`
			Velocity [][]float64 `json:"velocity"`
			State    string      `json:"state"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}

	if raw.FPS <= 0 {
		return nil, errors.Errorf("invalid fps %d", raw.FPS)
	}

	rec := &Recording{FPS: raw.FPS}
	start, err := vec3(raw.StartPosition)
	if err != nil {
		return nil, errors.Wrap(err, "start_position")
	}
	rec.StartPosition = start

	for i, s := range raw.Segments {
		seg := Segment{State: s.State}
		for j, p := range s.Position {
			v, err := vec3(p)
			if err != nil {
				return nil, errors.Wrapf(err, "segment %d position %d", i, j)
			}
			seg.Position = append(seg.Position, v)
		}
		for j, p := range s.Velocity {
			v, err := vec3(p)
			if err != nil {
				return nil, errors.Wrapf(err, "segment %d velocity %d", i, j)
			}
			seg.Velocity = append(seg.Velocity, v)
		}
		rec.Segments = append(rec.Segments, seg)
	}
	return rec, nil
}

func vec3(v []float64) ([3]float64, error) {
	var out [3]float64
	if len(v) != 3 {
		return out, errors.Errorf("expected 3 components, got %d", len(v))
	}
	copy(out[:], v)
	return out, nil
}

// Frames returns the number of samples the recording holds across all segments.
func (r *Recording) Frames() int {
	n := 0
	for _, s := range r.Segments {
		n += s.samples()
	}
	return n
}

func (s Segment) samples() int {
	if len(s.Velocity) < len(s.Position) {
		return len(s.Velocity)
	}
	return len(s.Position)
}
