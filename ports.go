package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/gtu-nova/nova-letter/config"
)

type PortsCommand struct{}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return errors.Wrap(err, "list ports")
	}

	found := 0
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		fmt.Println(port)
		found++
	}
	if found == 0 {
		logger.Warn("No serial ports found, is the flight controller plugged in?")
	}
	return nil
}

type InitCommand struct {
	Force bool `short:"f" long:"force" description:"Overwrite an existing file"`
}

func (c *InitCommand) Execute(args []string) error {
	if !c.Force {
		if _, err := os.Stat(opts.Config); err == nil {
			return errors.Errorf("%s already exists, use --force to overwrite", opts.Config)
		}
	}
	if err := config.Default().Save(opts.Config); err != nil {
		return err
	}
	logger.Infof("Configuration saved to %s", opts.Config)
	return nil
}
