package trajectory

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecording = `{
  "fps": 2,
  "start_position": [1.0, 2.0, 0.4],
  "segments": [
    {"state": "DRAW", "position": [[1, 2, 0.4], [1.5, 2.5, 0.4]], "velocity": [[0, 0, 0], [0.1, 0.2, 0.3]]},
    {"state": "RETURN", "position": [[1, 2, 0.4]], "velocity": [[0, 0, 0]]},
    {"state": "DRAW", "position": [[3, 3, 0]], "velocity": [[0, 0, 0]]}
  ]
}`

func mustParse(t *testing.T, s string) *Recording {
	t.Helper()
	rec, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return rec
}

func TestParse(t *testing.T) {
	rec := mustParse(t, sampleRecording)
	assert.Equal(t, 2, rec.FPS)
	assert.Equal(t, [3]float64{1, 2, 0.4}, rec.StartPosition)
	require.Len(t, rec.Segments, 3)
	assert.Equal(t, StateReturn, rec.Segments[1].State)
	assert.Equal(t, 4, rec.Frames())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"fps": `},
		{"zero fps", `{"fps": 0, "start_position": [0, 0, 0]}`},
		{"short start", `{"fps": 10, "start_position": [0, 0]}`},
		{"short position", `{"fps": 10, "start_position": [0, 0, 0], "segments": [{"position": [[1, 2]], "velocity": [[0, 0, 0]]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letter.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRecording), 0644))

	rec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FPS)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	rec := mustParse(t, sampleRecording)
	plan := Generate(rec, DefaultParams())

	// ramp 3s*2 + hold 1s*2 + passes (4 + 4 + 2) + tail 1s*2
	require.Len(t, plan.Waypoints, 6+2+10+2)
	assert.Equal(t, 2, plan.FPS)

	start := Waypoint{X: 2, Y: 1, Z: 1.0}

	// ramp ends exactly on the start point
	ramp := plan.Waypoints[:6]
	assert.InDelta(t, 2.0/6, ramp[0].X, 1e-9)
	assert.InDelta(t, 1.0/6, ramp[0].Y, 1e-9)
	assert.InDelta(t, 0.6+0.4/6, ramp[0].Z, 1e-9)
	assert.InDelta(t, 0, ramp[5].Distance(start), 1e-9)

	assert.Equal(t, start, plan.Waypoints[6])
	assert.Equal(t, start, plan.Waypoints[7])

	// axes are swapped and velocity carried along
	second := plan.Waypoints[9]
	assert.Equal(t, Waypoint{X: 2.5, Y: 1.5, Z: 1.0, VX: 0.2, VY: 0.1, VZ: 0.3}, second)

	// first pass includes the RETURN segment and the one after it
	assert.Equal(t, Waypoint{X: 2, Y: 1, Z: 1.0}, plan.Waypoints[10])
	assert.Equal(t, Waypoint{X: 3, Y: 3, Z: 0.6}, plan.Waypoints[11])

	// last pass stops at RETURN
	last := plan.Waypoints[16:18]
	assert.Equal(t, 2.0, last[0].X)
	assert.Equal(t, 2.5, last[1].X)

	for _, w := range plan.Waypoints[18:] {
		assert.Equal(t, Waypoint{Z: 0.6}, w)
	}
}

func TestGenerateNoSegments(t *testing.T) {
	rec := &Recording{FPS: 10, StartPosition: [3]float64{0, 1, 0}}
	plan := Generate(rec, DefaultParams())
	assert.Len(t, plan.Waypoints, 30+10+10)
}

func TestGenerateTruncatesToShorterList(t *testing.T) {
	rec := &Recording{FPS: 1, Segments: []Segment{{
		Position: [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		Velocity: [][3]float64{{0, 0, 0}},
	}}}
	p := DefaultParams()
	p.Passes = 1
	plan := Generate(rec, p)
	assert.Len(t, plan.Waypoints, 3+1+1+1)
}

func TestPlanDurationAndBounds(t *testing.T) {
	plan := Plan{FPS: 4, Waypoints: []Waypoint{
		{X: -1, Y: 2, Z: 0.6},
		{X: 3, Y: -2, Z: 1.2, VX: 5},
	}}
	assert.Equal(t, 500*time.Millisecond, plan.Duration())

	min, max := plan.Bounds()
	assert.Equal(t, Waypoint{X: -1, Y: -2, Z: 0.6}, min)
	assert.Equal(t, Waypoint{X: 3, Y: 2, Z: 1.2}, max)

	assert.Equal(t, time.Duration(0), Plan{}.Duration())
}

func TestWritePlan(t *testing.T) {
	var buf bytes.Buffer
	plan := Plan{FPS: 1, Waypoints: []Waypoint{{X: 1, Y: 2, Z: 3}}}
	require.NoError(t, WritePlan(&buf, plan))

	var out Plan
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, plan, out)
}
