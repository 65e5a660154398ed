package trajectory

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Waypoint is a target in the flight frame, metres, z up.
type Waypoint struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	VX float64 `json:"vx,omitempty"`
	VY float64 `json:"vy,omitempty"`
	VZ float64 `json:"vz,omitempty"`
}

func (w Waypoint) Vec() [3]float64 {
	return [3]float64{w.X, w.Y, w.Z}
}

func (w Waypoint) Distance(o Waypoint) float64 {
	dx, dy, dz := w.X-o.X, w.Y-o.Y, w.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

type Params struct {
	TakeoffAltitude float64
	Passes          int
	RampSeconds     int
	HoldSeconds     int
	ReturnSeconds   int
}

func DefaultParams() Params {
	return Params{
		TakeoffAltitude: 0.6,
		Passes:          3,
		RampSeconds:     3,
		HoldSeconds:     1,
		ReturnSeconds:   1,
	}
}

type Plan struct {
	FPS       int        `json:"fps"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Generate lays out the full flight: a ramp from the hover point above the
// origin to the start of the letter, a hold, the recorded segments repeated
// p.Passes times and a hold back above the origin.
func Generate(rec *Recording, p Params) Plan {
	fps := rec.FPS
	alt := p.TakeoffAltitude
	plan := Plan{FPS: fps}

	origin := Waypoint{Z: alt}
	start := toFlightFrame(rec.StartPosition, alt)

	steps := p.RampSeconds * fps
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		plan.Waypoints = append(plan.Waypoints, Waypoint{
			X: origin.X + f*(start.X-origin.X),
			Y: origin.Y + f*(start.Y-origin.Y),
			Z: origin.Z + f*(start.Z-origin.Z),
		})
	}

	for i := 0; i < p.HoldSeconds*fps; i++ {
		plan.Waypoints = append(plan.Waypoints, start)
	}

	for pass := 0; pass < p.Passes; pass++ {
		last := pass == p.Passes-1
		for _, seg := range rec.Segments {
			if last && seg.State == StateReturn {
				break
			}
			for i := 0; i < seg.samples(); i++ {
				w := toFlightFrame(seg.Position[i], alt)
				v := seg.Velocity[i]
				w.VX, w.VY, w.VZ = v[1], v[0], v[2]
				plan.Waypoints = append(plan.Waypoints, w)
			}
		}
	}

	for i := 0; i < p.ReturnSeconds*fps; i++ {
		plan.Waypoints = append(plan.Waypoints, origin)
	}

	return plan
}

func toFlightFrame(p [3]float64, alt float64) Waypoint {
	return Waypoint{X: p[1], Y: p[0], Z: alt + p[2]}
}

func (p Plan) Duration() time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return time.Duration(len(p.Waypoints)) * time.Second / time.Duration(p.FPS)
}

// Bounds returns the corners of the box enclosing every waypoint.
func (p Plan) Bounds() (min, max Waypoint) {
	if len(p.Waypoints) == 0 {
		return
	}
	min, max = p.Waypoints[0], p.Waypoints[0]
	for _, w := range p.Waypoints[1:] {
		min.X, max.X = math.Min(min.X, w.X), math.Max(max.X, w.X)
		min.Y, max.Y = math.Min(min.Y, w.Y), math.Max(max.Y, w.Y)
		min.Z, max.Z = math.Min(min.Z, w.Z), math.Max(max.Z, w.Z)
	}
	min.VX, min.VY, min.VZ = 0, 0, 0
	max.VX, max.VY, max.VZ = 0, 0, 0
	return
}

func WritePlan(w io.Writer, p Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(p), "encode plan")
}
