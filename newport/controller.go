package newport

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/newportmc/comm"
)

// defaultAccuracy is the positioning tolerance for new axes, in the axis'
// native units (typically mm).
const defaultAccuracy = 0.001

// Controller talks to a Newport motion controller, or a daisy chain of them,
// over a single serial or TCP link.  The Dialect decides which flavor of the
// ESP command language is spoken.  Create one with NewESP301, NewSMC100, or
// NewController, then call DetectAxes before issuing axis commands.
type Controller struct {
	pool    *comm.Pool
	dialect Dialect
	timeout time.Duration

	// MotionTimeout bounds how long WaitUntilDone polls for a single move
	// before giving up with ErrMotionTimeout.  Five minutes by default;
	// zero means poll forever.
	MotionTimeout time.Duration

	// Axes is the table of axes built by DetectAxes.  Entry i holds axis
	// address i+1.  Nil entries are gaps in the addresses (ESP30x only).
	Axes []*Axis

	log *log.Logger
}

// NewController returns a Controller over the given connection maker speaking
// dialect d.  timeout applies to each read and write on the link.  No
// connection is opened until the first command.
func NewController(maker comm.CreationFunc, d Dialect, timeout time.Duration) *Controller {
	return &Controller{
		pool:          comm.NewPool(1, time.Hour, maker),
		dialect:       d,
		timeout:       timeout,
		MotionTimeout: 5 * time.Minute,
		log:           log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLogger replaces the logger used for non-fatal driver chatter (skipped
// moves, position misses, post-write device errors).
func (c *Controller) SetLogger(l *log.Logger) {
	c.log = l
}

// Dialect returns the dialect the controller was created with.
func (c *Controller) Dialect() Dialect {
	return c.dialect
}

// Close releases the connection to the device.  The axis table is cleared;
// the controller may be reused after another DetectAxes.
func (c *Controller) Close() error {
	c.Axes = nil
	return c.pool.Close()
}

// txn runs one transaction against the device: take the connection, write
// cmd, and if want, read one reply line.  The pool has capacity one, so
// concurrent callers serialize here.
func (c *Controller) txn(cmd string, want bool) (string, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return "", err
	}
	var rw io.ReadWriter = comm.NewTimeout(conn, c.timeout)
	rw = comm.NewTerminator(rw, '\n', "\r\n")
	if _, err = rw.Write([]byte(cmd)); err != nil {
		c.pool.ReturnWithError(conn, err)
		return "", err
	}
	if !want {
		c.pool.Put(conn)
		return "", nil
	}
	buf := make([]byte, 256)
	n, err := rw.Read(buf)
	c.pool.ReturnWithError(conn, err)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// queryAxis sends an axis-addressed query and returns the payload of the
// reply.  On controllers which echo, the echo (address plus mnemonic) is
// checked and stripped first; a mismatched echo is logged and the remainder
// of the reply is used anyway.
func (c *Controller) queryAxis(axis int, cmd string) (string, error) {
	resp, err := c.txn(strconv.Itoa(axis)+cmd, true)
	if err != nil {
		return "", err
	}
	if c.dialect.EchoedReplies {
		prefix := strconv.Itoa(axis) + cmd[:2]
		if !strings.HasPrefix(resp, prefix) {
			c.log.Printf("newport: axis %d: reply %q does not echo command %q, using it anyway", axis, resp, prefix)
		}
		if len(resp) >= len(prefix) {
			resp = resp[len(prefix):]
		}
	}
	return strings.TrimSpace(resp), nil
}

// writeAxis sends an axis-addressed command which returns no data.  On
// controllers which only report faults through their error register, the
// register is read afterwards and anything found there is logged; command
// faults do not fail the call.
func (c *Controller) writeAxis(axis int, cmd string) error {
	if _, err := c.txn(strconv.Itoa(axis)+cmd, false); err != nil {
		return err
	}
	if c.dialect.ErrorAfterWrite {
		code, err := c.queryAxis(axis, "TE?")
		if err != nil {
			return err
		}
		if msg := DecodeSMC100Error(code); msg != "" {
			c.log.Printf("newport: axis %d: command %q: %s", axis, cmd, msg)
		}
	}
	return nil
}

// queryErrorRegister reads the global error register of an ESP30x.
func (c *Controller) queryErrorRegister() (int, error) {
	resp, err := c.txn("TE?", true)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// DetectAxes scans the axis addresses starting at 1 and builds the Axes
// table from the controllers that answer an identity query.
//
// On the ESP30x a silent address is disambiguated through the error register:
// "axis number missing" is a gap, recorded as a nil slot so later axes keep
// their addresses, and "axis number out of range" ends the scan.  Any other
// register value is a real fault and aborts.  On the SMC100 the chain is
// contiguous, so the first address answering an empty identity ends the
// scan; a transport fault is not an end-of-chain and aborts instead.
func (c *Controller) DetectAxes() error {
	c.Axes = nil
	for addr := 1; ; addr++ {
		id, err := c.queryAxis(addr, "ID?")
		if err == nil && id != "" {
			c.Axes = append(c.Axes, c.newAxis(addr, id))
			continue
		}
		if !c.dialect.ProbeErrorRegister {
			if err != nil {
				return fmt.Errorf("newport: identity query on axis %d: %w", addr, err)
			}
			return nil
		}
		code, perr := c.queryErrorRegister()
		if perr != nil {
			return fmt.Errorf("newport: probing error register after silent axis %d: %w", addr, perr)
		}
		switch code {
		case espErrAxisNumberMissing:
			if c.dialect.KeepGaps {
				c.Axes = append(c.Axes, nil)
			}
		case espErrAxisNumberOutOfRange:
			return nil
		default:
			return ESPError(code)
		}
	}
}

func (c *Controller) newAxis(addr int, id string) *Axis {
	return &Axis{
		Addr:          addr,
		ID:            id,
		Accuracy:      defaultAccuracy,
		WaitTime:      c.dialect.DefaultWaitTime,
		WaitUntilDone: true,
	}
}

// Axis returns the axis at the given address, or ErrAxisNotPresent if the
// address is a gap or beyond the detected table.
func (c *Controller) Axis(addr int) (*Axis, error) {
	idx := addr - 1
	if idx < 0 || idx >= len(c.Axes) || c.Axes[idx] == nil {
		return nil, ErrAxisNotPresent{Axis: addr}
	}
	return c.Axes[idx], nil
}

// Positions reads the position of every detected axis.  The slice is indexed
// like Axes; gaps come back as nil.
func (c *Controller) Positions() ([]*float64, error) {
	out := make([]*float64, len(c.Axes))
	for i, ax := range c.Axes {
		if ax == nil {
			continue
		}
		p, err := c.GetPos(ax.Addr)
		if err != nil {
			return nil, err
		}
		v := p
		out[i] = &v
	}
	return out, nil
}

// SetPositions commands every axis with a non-nil entry in pos to that
// position, then waits for all of them and verifies each against its
// accuracy.  Moves are commanded before any waiting begins, so the axes
// travel concurrently.  The resulting positions are returned.
func (c *Controller) SetPositions(ctx context.Context, pos []*float64) ([]*float64, error) {
	n := len(pos)
	if len(c.Axes) < n {
		n = len(c.Axes)
	}
	for i := 0; i < n; i++ {
		if pos[i] == nil || c.Axes[i] == nil {
			continue
		}
		if err := c.SetPos(ctx, i+1, *pos[i], false, false); err != nil {
			return nil, err
		}
	}
	for i := 0; i < n; i++ {
		if pos[i] == nil || c.Axes[i] == nil {
			continue
		}
		if err := c.WaitUntilDone(ctx, i+1); err != nil {
			return nil, err
		}
		c.CheckPosition(i+1, *pos[i])
	}
	return c.Positions()
}

// MotionDoneAll blocks until every detected axis reports motion complete.
func (c *Controller) MotionDoneAll(ctx context.Context) error {
	for _, ax := range c.Axes {
		if ax == nil {
			continue
		}
		if err := c.WaitUntilDone(ctx, ax.Addr); err != nil {
			return err
		}
	}
	return nil
}

// ftoa formats a float for the wire with the fewest digits that round-trip.
func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
