package main

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/gtu-nova/nova-letter/config"
	"github.com/gtu-nova/nova-letter/trajectory"
)

type GenerateCommand struct {
	Output string `short:"o" long:"output" description:"Write the waypoints to this file instead of stdout"`
	Args   struct {
		Trajectory string `positional-arg-name:"trajectory" description:"Recorded trajectory JSON"`
	} `positional-args:"yes" required:"yes"`
}

func (c *GenerateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plan, err := buildPlan(cfg, c.Args.Trajectory)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer f.Close()
		w = f
	}
	return trajectory.WritePlan(w, plan)
}

func buildPlan(cfg *config.Config, path string) (trajectory.Plan, error) {
	rec, err := trajectory.Load(path)
	if err != nil {
		return trajectory.Plan{}, err
	}
	plan := trajectory.Generate(rec, cfg.Params())

	min, max := plan.Bounds()
	logger.Infof("%d waypoints at %d fps (%v), box (%.2f, %.2f, %.2f) - (%.2f, %.2f, %.2f)",
		len(plan.Waypoints), plan.FPS, plan.Duration(), min.X, min.Y, min.Z, max.X, max.Y, max.Z)
	return plan, nil
}
