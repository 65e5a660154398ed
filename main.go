package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/gtu-nova/nova-letter/config"
)

var logger = logrus.New()

type Options struct {
	Verbose bool   `short:"v" long:"verbose" description:"Log MSP traffic and waypoint progress"`
	Config  string `short:"c" long:"config" default:"nova-letter.yaml" description:"YAML configuration file"`

	Generate GenerateCommand `command:"generate" alias:"gen" description:"Convert a recorded trajectory into waypoints"`
	Fly      FlyCommand      `command:"fly" description:"Fly a recorded trajectory"`
	Ports    PortsCommand    `command:"ports" description:"List serial ports"`
	Init     InitCommand     `command:"init" description:"Write a configuration file with the defaults"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func initLogger() {
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(opts.Config)
}

func main() {
	parser.LongDescription = "nova-letter - fly a recorded letter trajectory with a single quadrotor"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		initLogger()
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
