// Package config holds the settings for generating and flying a letter.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gtu-nova/nova-letter/fc"
	"github.com/gtu-nova/nova-letter/flight"
	"github.com/gtu-nova/nova-letter/trajectory"
)

const DefaultConfigFile = "nova-letter.yaml"

const (
	VehicleSim = "sim"
	VehicleMsp = "msp"
)

type Config struct {
	Trajectory TrajectoryConfig `yaml:"trajectory"`
	Flight     FlightConfig     `yaml:"flight"`
	Vehicle    VehicleConfig    `yaml:"vehicle"`
	Log        LogConfig        `yaml:"log"`
}

type TrajectoryConfig struct {
	TakeoffAltitude float64 `yaml:"takeoff_altitude"`
	Passes          int     `yaml:"passes"`
	RampSeconds     int     `yaml:"ramp_seconds"`
	HoldSeconds     int     `yaml:"hold_seconds"`
	ReturnSeconds   int     `yaml:"return_seconds"`
}

type FlightConfig struct {
	Mode            string        `yaml:"mode"`
	TakeoffDuration time.Duration `yaml:"takeoff_duration"`
	LandHeight      float64       `yaml:"land_height"`
	GotoDuration    time.Duration `yaml:"goto_duration"`
	Settle          time.Duration `yaml:"settle"`
}

type VehicleConfig struct {
	Kind    string  `yaml:"kind"`
	Port    string  `yaml:"port"`
	Baud    int     `yaml:"baud"`
	HomeLat float64 `yaml:"home_lat"`
	HomeLon float64 `yaml:"home_lon"`
}

type LogConfig struct {
	Enabled bool       `yaml:"enabled"`
	Dir     string     `yaml:"dir"`
	MQTT    MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Device string `yaml:"device"`
	Topic  string `yaml:"topic"`
}

func Default() *Config {
	tp := trajectory.DefaultParams()
	fo := flight.DefaultOptions()
	return &Config{
		Trajectory: TrajectoryConfig{
			TakeoffAltitude: tp.TakeoffAltitude,
			Passes:          tp.Passes,
			RampSeconds:     tp.RampSeconds,
			HoldSeconds:     tp.HoldSeconds,
			ReturnSeconds:   tp.ReturnSeconds,
		},
		Flight: FlightConfig{
			Mode:            string(fo.Mode),
			TakeoffDuration: fo.TakeoffDuration,
			LandHeight:      fo.LandHeight,
			GotoDuration:    fo.GotoDuration,
			Settle:          fo.Settle,
		},
		Vehicle: VehicleConfig{
			Kind: VehicleSim,
			Baud: 115200,
		},
		Log: LogConfig{
			Enabled: true,
			Dir:     "logs",
			MQTT: MQTTConfig{
				Device: "cf1",
				Topic:  "trajectory",
			},
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error
// when path is the default config file.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigFile {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Trajectory.Passes < 1 {
		return errors.Errorf("passes must be at least 1, got %d", c.Trajectory.Passes)
	}
	if c.Trajectory.TakeoffAltitude <= 0 {
		return errors.Errorf("takeoff_altitude must be positive, got %v", c.Trajectory.TakeoffAltitude)
	}
	switch flight.Mode(c.Flight.Mode) {
	case flight.ModeRate, flight.ModeTimed:
	default:
		return errors.Errorf("unknown flight mode %q", c.Flight.Mode)
	}
	switch c.Vehicle.Kind {
	case VehicleSim:
	case VehicleMsp:
		if c.Vehicle.Port == "" {
			return errors.New("vehicle port is required for msp")
		}
	default:
		return errors.Errorf("unknown vehicle kind %q", c.Vehicle.Kind)
	}
	return nil
}

func (c *Config) Params() trajectory.Params {
	return trajectory.Params{
		TakeoffAltitude: c.Trajectory.TakeoffAltitude,
		Passes:          c.Trajectory.Passes,
		RampSeconds:     c.Trajectory.RampSeconds,
		HoldSeconds:     c.Trajectory.HoldSeconds,
		ReturnSeconds:   c.Trajectory.ReturnSeconds,
	}
}

func (c *Config) FlightOptions() flight.Options {
	return flight.Options{
		Mode:            flight.Mode(c.Flight.Mode),
		TakeoffHeight:   c.Trajectory.TakeoffAltitude,
		TakeoffDuration: c.Flight.TakeoffDuration,
		LandHeight:      c.Flight.LandHeight,
		GotoDuration:    c.Flight.GotoDuration,
		Settle:          c.Flight.Settle,
	}
}

func (c *Config) FCOptions() fc.Options {
	return fc.DefaultOptions(fc.NewFrame(c.Vehicle.HomeLat, c.Vehicle.HomeLon))
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}
