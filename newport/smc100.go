package newport

import (
	"strings"
	"time"

	"github.com/nasa-jpl/newportmc/comm"
	"github.com/tarm/serial"
)

const (
	smc100Timeout = 100 * time.Millisecond
	smc100Baud    = 57600
)

// NewSMC100 returns a controller for a chain of SMC100 single-axis devices
// sharing one serial line.  addr is a serial device path or a host:port to
// reach the chain through a terminal server.
func NewSMC100(addr string) *Controller {
	var maker comm.CreationFunc
	if strings.Contains(addr, ":") {
		maker = comm.BackingOffTCPConnMaker(addr, smc100Timeout)
	} else {
		maker = comm.SerialConnMaker(&serial.Config{
			Name:        addr,
			Baud:        smc100Baud,
			ReadTimeout: smc100Timeout,
		})
	}
	return NewController(maker, SMC100Dialect, smc100Timeout)
}

// KeypadDisable disables the front panel keypad of an SMC100, preventing a
// stray button press from fighting remote control.  Power cycling the
// controller re-enables it.
func (c *Controller) KeypadDisable(axis int) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "JD")
}
