package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/gtu-nova/nova-letter/config"
	"github.com/gtu-nova/nova-letter/fc"
	"github.com/gtu-nova/nova-letter/flight"
	"github.com/gtu-nova/nova-letter/flightlog"
	"github.com/gtu-nova/nova-letter/sim"
)

type FlyCommand struct {
	Mode   string `short:"m" long:"mode" choice:"rate" choice:"timed" description:"Waypoint traversal (overrides config)"`
	Port   string `short:"p" long:"port" description:"Serial port of the flight controller, selects the msp vehicle"`
	Sim    bool   `long:"sim" description:"Fly the built-in simulator"`
	NoLog  bool   `long:"no-log" description:"Do not record observed positions"`
	LogDir string `long:"log-dir" description:"Directory for position logs (overrides config)"`
	Mqtt   string `long:"mqtt-broker" description:"Stream observed positions to this MQTT broker"`
	Args   struct {
		Trajectory string `positional-arg-name:"trajectory" description:"Recorded trajectory JSON"`
	} `positional-args:"yes" required:"yes"`
}

func (c *FlyCommand) apply(cfg *config.Config) error {
	if c.Mode != "" {
		cfg.Flight.Mode = c.Mode
	}
	if c.Port != "" {
		cfg.Vehicle.Kind = config.VehicleMsp
		cfg.Vehicle.Port = c.Port
	}
	if c.Sim {
		cfg.Vehicle.Kind = config.VehicleSim
	}
	if c.NoLog {
		cfg.Log.Enabled = false
	}
	if c.LogDir != "" {
		cfg.Log.Dir = c.LogDir
	}
	if c.Mqtt != "" {
		cfg.Log.MQTT.Broker = c.Mqtt
	}
	return cfg.Validate()
}

func (c *FlyCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := c.apply(cfg); err != nil {
		return err
	}

	plan, err := buildPlan(cfg, c.Args.Trajectory)
	if err != nil {
		return err
	}

	vehicle, err := openVehicle(cfg)
	if err != nil {
		return err
	}
	defer vehicle.Close()

	exec := flight.NewExecutor(cfg.FlightOptions(), nil, logger)

	var rec *flightlog.Recorder
	if cfg.Log.Enabled {
		var sinks []flightlog.Sink
		if cfg.Log.MQTT.Broker != "" {
			pub, err := flightlog.Dial(cfg.Log.MQTT.Broker, cfg.Log.MQTT.Device, cfg.Log.MQTT.Topic)
			if err != nil {
				return err
			}
			defer pub.Close()
			logger.Infof("Streaming positions to %s", pub.Topic())
			sinks = append(sinks, pub)
		}
		rec = flightlog.NewRecorder(sinks...)
		rec.OnSinkError(func(err error) { logger.Warnf("Position sink failed (%v)", err) })
		exec.WithRecorder(rec)
	}

	// attach sigint & sigterm listeners, an interrupted flight still lands
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := exec.Run(ctx, plan, vehicle)

	if rec != nil {
		path, err := rec.Save(cfg.Log.Dir, time.Now())
		if err != nil {
			logger.Errorf("Saving position log failed (%v)", err)
		} else {
			logger.Infof("Vicon log saved in %s", path)
		}
	}
	return runErr
}

func openVehicle(cfg *config.Config) (flight.Vehicle, error) {
	switch cfg.Vehicle.Kind {
	case config.VehicleMsp:
		port, err := fc.OpenPort(cfg.Vehicle.Port, cfg.Vehicle.Baud)
		if err != nil {
			return nil, errors.Wrap(err, "can't open port")
		}
		f := fc.NewFC(port, nil, cfg.FCOptions(), logger)
		if err := f.Identify(); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil
	default:
		logger.Info("Flying the simulator")
		return sim.New(nil, logger), nil
	}
}

var (
	_ flight.Vehicle  = (*fc.FC)(nil)
	_ flight.Vehicle  = (*sim.Vehicle)(nil)
	_ flight.Recorder = (*flightlog.Recorder)(nil)
)
