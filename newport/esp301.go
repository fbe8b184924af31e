package newport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/newportmc/comm"
	"github.com/tarm/serial"
)

// ESP301RemoteBufferSize is the number of bytes in the input buffer of the
// ESP controller.  Sending more than this without waiting for execution
// overflows the buffer and corrupts the command stream.
const ESP301RemoteBufferSize = 80

const (
	esp301Timeout = 4 * time.Second
	esp301Baud    = 19200
	esp301USBBaud = 921600
)

// NewESP301 returns a controller for an ESP30x family device.  addr is
// either a serial device path, e.g. /dev/ttyUSB0, or a host:port to reach
// the device through a terminal server.  usb selects the high speed line
// discipline of the direct USB connection over the RS232 one.
func NewESP301(addr string, usb bool) *Controller {
	var maker comm.CreationFunc
	if strings.Contains(addr, ":") {
		maker = comm.BackingOffTCPConnMaker(addr, esp301Timeout)
	} else {
		baud := esp301Baud
		if usb {
			baud = esp301USBBaud
		}
		maker = comm.SerialConnMaker(&serial.Config{
			Name:        addr,
			Baud:        baud,
			ReadTimeout: esp301Timeout,
		})
	}
	return NewController(maker, ESP301Dialect, esp301Timeout)
}

// Command describes an entry in the ESP command language: the two letter
// mnemonic on the wire and a human-usable alias for it.
type Command struct {
	// Cmd is the two letter mnemonic sent to the device
	Cmd string

	// Alias is the long name used on the HTTP interface
	Alias string

	// Description is a short human description
	Description string

	// UsesAxis indicates that the command is prefixed with an axis address
	UsesAxis bool

	// IsReadOnly indicates the command has no write form
	IsReadOnly bool

	// IsWriteOnly indicates the command has no query form
	IsWriteOnly bool

	// WriteBare indicates the write form takes no argument (MO, OR, ST...)
	WriteBare bool

	// QueryBare indicates the query form takes no question mark (TV)
	QueryBare bool
}

// Commands is the portion of the ESP command language this driver knows
// about.  Not every entry exists on every controller generation; JD, for
// example, is SMC100 only.
var Commands = []Command{
	{Cmd: "ID", Alias: "identity", Description: "stage model and serial number", UsesAxis: true, IsReadOnly: true},
	{Cmd: "MO", Alias: "enable", Description: "motor on", UsesAxis: true, WriteBare: true},
	{Cmd: "MF", Alias: "disable", Description: "motor off", UsesAxis: true, IsWriteOnly: true, WriteBare: true},
	{Cmd: "DH", Alias: "define-home", Description: "define current position as home", UsesAxis: true, IsWriteOnly: true},
	{Cmd: "OR", Alias: "home", Description: "execute home search", UsesAxis: true, IsWriteOnly: true, WriteBare: true},
	{Cmd: "PA", Alias: "move-abs", Description: "move to absolute position", UsesAxis: true},
	{Cmd: "PR", Alias: "move-rel", Description: "move by relative distance", UsesAxis: true, IsWriteOnly: true},
	{Cmd: "ST", Alias: "stop", Description: "stop motion", UsesAxis: true, IsWriteOnly: true, WriteBare: true},
	{Cmd: "TP", Alias: "pos", Description: "measured position", UsesAxis: true, IsReadOnly: true},
	{Cmd: "TV", Alias: "actual-velocity", Description: "instantaneous velocity", UsesAxis: true, IsReadOnly: true, QueryBare: true},
	{Cmd: "VA", Alias: "velocity", Description: "programmed velocity", UsesAxis: true},
	{Cmd: "VU", Alias: "max-velocity", Description: "maximum allowed velocity", UsesAxis: true},
	{Cmd: "AC", Alias: "accel", Description: "acceleration", UsesAxis: true},
	{Cmd: "MD", Alias: "motion-done", Description: "motion done status", UsesAxis: true, IsReadOnly: true},
	{Cmd: "SN", Alias: "units", Description: "unit system code", UsesAxis: true},
	{Cmd: "TE", Alias: "err-num", Description: "read and clear the error register", IsReadOnly: true},
	{Cmd: "TB", Alias: "err-msg", Description: "read the error buffer with messages", IsReadOnly: true},
	{Cmd: "JD", Alias: "keypad-disable", Description: "disable the front panel keypad", UsesAxis: true, IsWriteOnly: true, WriteBare: true},
}

// CommandFromAlias looks up a command by its long name.
func CommandFromAlias(alias string) (Command, error) {
	for _, c := range Commands {
		if c.Alias == alias {
			return c, nil
		}
	}
	return Command{}, fmt.Errorf("newport: no command with alias %q", alias)
}

// makeTelegram assembles one wire command from its table entry, an axis
// address, and an optional argument.  write selects the write form; the
// query form appends "?".
func makeTelegram(c Command, axis int, write bool, data float64) string {
	b := strings.Builder{}
	if c.UsesAxis {
		b.WriteString(strconv.Itoa(axis))
	}
	b.WriteString(c.Cmd)
	if write {
		if !c.WriteBare {
			b.WriteString(ftoa(data))
		}
	} else if !c.IsWriteOnly && !c.QueryBare {
		b.WriteString("?")
	}
	return b.String()
}

// RawCommand sends one or more raw commands to the controller, joined with
// semicolons as the device expects.  If the joined telegram contains a query
// the reply is returned.  Telegrams that would overflow the ESP input buffer
// are rejected with ErrBufferWouldOverflow before anything is sent.
func (c *Controller) RawCommand(cmds ...string) (string, error) {
	telegram := strings.Join(cmds, ";")
	// +2 for the CRLF the terminator appends
	if len(telegram)+2 > ESP301RemoteBufferSize {
		return "", ErrBufferWouldOverflow
	}
	if strings.Contains(telegram, "?") {
		return c.txn(telegram, true)
	}
	_, err := c.txn(telegram, false)
	return "", err
}

// ReadErrors drains the error buffer of an ESP30x through TB?, which reports
// messages as well as codes, and returns the messages in the order they were
// raised.  An empty slice means no errors were pending.
func (c *Controller) ReadErrors() ([]string, error) {
	out := []string{}
	// the buffer holds at most ten errors; a cap guards against a device
	// that answers garbage forever
	for i := 0; i < 50; i++ {
		resp, err := c.txn("TB?", true)
		if err != nil {
			return out, err
		}
		pieces := strings.SplitN(resp, ",", 3)
		code, err := strconv.Atoi(strings.TrimSpace(pieces[0]))
		if err != nil {
			return out, fmt.Errorf("newport: malformed error buffer entry %q: %w", resp, err)
		}
		if code == 0 {
			return out, nil
		}
		if len(pieces) == 3 {
			out = append(out, strings.TrimSpace(pieces[2]))
		} else {
			out = append(out, ESPError(code).Error())
		}
	}
	return out, errors.New("newport: error buffer did not drain")
}
