package fc

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Port is a serial port that can be reopened after the board resets.
type Port struct {
	name string
	baud int

	mu sync.RWMutex
	p  *serial.Port
}

func OpenPort(name string, baud int) (*Port, error) {
	sp := &Port{name: name, baud: baud}
	if err := sp.open(); err != nil {
		return nil, err
	}
	return sp, nil
}

func (sp *Port) open() error {
	port, err := serial.OpenPort(&serial.Config{
		Name:        sp.name,
		Baud:        sp.baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return errors.Wrapf(err, "open %s", sp.name)
	}
	sp.mu.Lock()
	sp.p = port
	sp.mu.Unlock()
	return nil
}

// Reconnect closes the port and waits for the device to reappear.
func (sp *Port) Reconnect(timeout time.Duration) error {
	sp.mu.Lock()
	if sp.p != nil {
		_ = sp.p.Close()
	}
	sp.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// Trying to connect on macOS when the dev file is
		// not present would cause an USB hub reset.
		if sp.portIsPresent() {
			return sp.open()
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.Errorf("%s did not come back within %v", sp.name, timeout)
}

func (sp *Port) portIsPresent() bool {
	if runtime.GOOS == "windows" {
		return true
	}
	_, err := os.Stat(sp.name)
	return err == nil
}

func (sp *Port) Read(p []byte) (n int, err error) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.p.Read(p)
}

func (sp *Port) Write(p []byte) (n int, err error) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.p.Write(p)
}

func (sp *Port) Close() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.p.Close()
}
