package main

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtu-nova/nova-letter/trajectory"
)

const letterL = `{
  "fps": 200,
  "start_position": [0.5, 0.0, 0.2],
  "segments": [
    {"state": "DRAW", "position": [[0.5, 0, 0.2], [0.25, 0, 0.2], [0, 0, 0.2]], "velocity": [[0, 0, 0], [-1, 0, 0], [0, 0, 0]]},
    {"state": "DRAW", "position": [[0, 0.2, 0.2], [0, 0.4, 0.2]], "velocity": [[0, 1, 0], [0, 0, 0]]},
    {"state": "RETURN", "position": [[0.5, 0, 0.2]], "velocity": [[0, 0, 0]]}
  ]
}`

const fastConfig = `
trajectory:
  passes: 2
  ramp_seconds: 1
  hold_seconds: 0
  return_seconds: 0
flight:
  takeoff_duration: 1ms
  settle: 0s
  goto_duration: 1ms
`

func setup(t *testing.T) (dir, traj string) {
	t.Helper()
	logger.SetOutput(ioutil.Discard)

	dir = t.TempDir()
	traj = filepath.Join(dir, "letter.json")
	require.NoError(t, os.WriteFile(traj, []byte(letterL), 0644))
	cfg := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fastConfig), 0644))
	opts.Config = cfg
	return dir, traj
}

func TestGenerateCommand(t *testing.T) {
	dir, traj := setup(t)
	out := filepath.Join(dir, "plan.json")

	cmd := &GenerateCommand{Output: out}
	cmd.Args.Trajectory = traj
	require.NoError(t, cmd.Execute(nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var plan trajectory.Plan
	require.NoError(t, json.Unmarshal(data, &plan))

	// ramp 200 + first pass 6 + last pass without RETURN 5
	assert.Len(t, plan.Waypoints, 200+6+5)
	assert.Equal(t, 200, plan.FPS)
}

func TestFlyCommandSim(t *testing.T) {
	dir, traj := setup(t)
	logDir := filepath.Join(dir, "logs")

	for _, mode := range []string{"rate", "timed"} {
		t.Run(mode, func(t *testing.T) {
			cmd := &FlyCommand{Sim: true, Mode: mode, LogDir: filepath.Join(logDir, mode)}
			cmd.Args.Trajectory = traj
			require.NoError(t, cmd.Execute(nil))

			logs, err := filepath.Glob(filepath.Join(logDir, mode, "vicon_*.json"))
			require.NoError(t, err)
			require.Len(t, logs, 1)

			data, err := os.ReadFile(logs[0])
			require.NoError(t, err)
			var doc struct {
				Frames []struct {
					FrameID int        `json:"frame_id"`
					Tvec    [3]float64 `json:"tvec"`
				} `json:"frames"`
			}
			require.NoError(t, json.Unmarshal(data, &doc))
			require.Len(t, doc.Frames, 211)
			assert.Equal(t, 210, doc.Frames[210].FrameID)
		})
	}
}

func TestFlyCommandNoLog(t *testing.T) {
	dir, traj := setup(t)
	logDir := filepath.Join(dir, "nolog")

	cmd := &FlyCommand{Sim: true, NoLog: true, LogDir: logDir}
	cmd.Args.Trajectory = traj
	require.NoError(t, cmd.Execute(nil))

	_, err := os.Stat(logDir)
	assert.True(t, os.IsNotExist(err))
}

func TestFlyCommandRejectsBadMode(t *testing.T) {
	_, traj := setup(t)
	cmd := &FlyCommand{Sim: true, Mode: "warp"}
	cmd.Args.Trajectory = traj
	assert.Error(t, cmd.Execute(nil))
}
