package newport

import (
	"context"
	"math"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Axis holds the per-axis configuration and bookkeeping of a Controller.
// The fields may be adjusted between moves; they are not read concurrently
// with a move on the same axis.
type Axis struct {
	// Addr is the axis address on the wire, 1-based.
	Addr int

	// ID is the identity string the axis answered during detection.
	ID string

	// Backlash is the anti-backlash overshoot.  When nonzero and the move
	// approaches the target from the "wrong" side, the axis first travels to
	// target+Backlash so that the final approach always comes from the same
	// direction.  Zero disables compensation.
	Backlash float64

	// Accuracy is the positioning tolerance.  Moves within Accuracy of the
	// current position are skipped, and post-move verification compares
	// against it.
	Accuracy float64

	// WaitTime is the interval between motion done polls.
	WaitTime time.Duration

	// WaitUntilDone controls whether MoveAbs blocks until the move finishes.
	WaitUntilDone bool

	lastSet    float64
	hasLastSet bool
}

// Enable powers on the axis motor.  On controllers without motor on/off
// commands this is a no-op.
func (c *Controller) Enable(axis int) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	if !c.dialect.EnableCommands {
		return nil
	}
	return c.writeAxis(axis, "MO")
}

// Disable powers off the axis motor.  On controllers without motor on/off
// commands this is a no-op.
func (c *Controller) Disable(axis int) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	if !c.dialect.EnableCommands {
		return nil
	}
	return c.writeAxis(axis, "MF")
}

// GetEnabled returns whether the axis motor is powered.  Controllers without
// motor on/off commands always report true.
func (c *Controller) GetEnabled(axis int) (bool, error) {
	if _, err := c.Axis(axis); err != nil {
		return false, err
	}
	if !c.dialect.EnableCommands {
		return true, nil
	}
	resp, err := c.queryAxis(axis, "MO?")
	if err != nil {
		return false, err
	}
	return resp == "1", nil
}

// GetPos returns the measured position of the axis.
func (c *Controller) GetPos(axis int) (float64, error) {
	return c.queryAxisFloat(axis, "TP?")
}

// DefineHome redefines the current position of the axis to be pos.
func (c *Controller) DefineHome(axis int, pos float64) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "DH"+ftoa(pos))
}

// Home initiates the home search on the axis.  It does not wait for the
// search to complete.
func (c *Controller) Home(axis int) error {
	ax, err := c.Axis(axis)
	if err != nil {
		return err
	}
	if err := c.writeAxis(axis, "OR"); err != nil {
		return err
	}
	ax.hasLastSet = false
	return nil
}

// MoveAbs moves the axis to an absolute position with the axis' configured
// behavior: backlash compensation, skip-if-already-there, and blocking until
// done when the axis' WaitUntilDone is set.
func (c *Controller) MoveAbs(axis int, pos float64) error {
	ax, err := c.Axis(axis)
	if err != nil {
		return err
	}
	return c.SetPos(context.Background(), axis, pos, ax.WaitUntilDone, false)
}

// MoveRel moves the axis by a distance relative to its current position.
// Backlash compensation does not apply and the call does not wait.
func (c *Controller) MoveRel(axis int, dist float64) error {
	ax, err := c.Axis(axis)
	if err != nil {
		return err
	}
	if err := c.writeAxis(axis, "PR"+ftoa(dist)); err != nil {
		return err
	}
	ax.hasLastSet = false
	return nil
}

// SetPos is the full-control form of MoveAbs.
//
// A move on a disabled axis is logged and ignored.  A move to within the
// axis' Accuracy of the current position is skipped unless force is set.
// When the approach direction opposes the sign of the axis' Backlash, the
// axis first overshoots to pos+Backlash and settles there, so the final
// approach always comes from the same side.  With wait set, the call blocks
// until motion completes and then verifies the position, logging (not
// failing) if the axis missed.
func (c *Controller) SetPos(ctx context.Context, axis int, pos float64, wait, force bool) error {
	ax, err := c.Axis(axis)
	if err != nil {
		return err
	}
	enabled, err := c.GetEnabled(axis)
	if err != nil {
		return err
	}
	if !enabled {
		c.log.Printf("newport: axis %d is disabled, move to %g ignored", axis, pos)
		return nil
	}
	cur, err := c.GetPos(axis)
	if err != nil {
		return err
	}
	if !force && math.Abs(cur-pos) <= ax.Accuracy {
		c.log.Printf("newport: axis %d already within %g of %g, not moving", axis, ax.Accuracy, pos)
		return nil
	}
	bl := ax.Backlash
	if (bl < 0 && cur > pos) || (bl > 0 && cur < pos) {
		if err := c.commandMove(axis, ax, pos+bl); err != nil {
			return err
		}
		if err := c.WaitUntilDone(ctx, axis); err != nil {
			return err
		}
	}
	if err := c.commandMove(axis, ax, pos); err != nil {
		return err
	}
	if wait {
		if err := c.WaitUntilDone(ctx, axis); err != nil {
			return err
		}
		c.CheckPosition(axis, pos)
	}
	return nil
}

// commandMove issues the absolute move and records the commanded target.
func (c *Controller) commandMove(axis int, ax *Axis, pos float64) error {
	if err := c.writeAxis(axis, "PA"+ftoa(pos)); err != nil {
		return err
	}
	ax.lastSet = pos
	ax.hasLastSet = true
	return nil
}

// Stop halts motion on the axis.
func (c *Controller) Stop(axis int) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "ST")
}

// MotionDone returns whether the axis has finished its last commanded move.
// Controllers without a motion done query judge by comparing the measured
// position to the last commanded one; an axis with no commanded move yet is
// considered done.
func (c *Controller) MotionDone(axis int) (bool, error) {
	ax, err := c.Axis(axis)
	if err != nil {
		return false, err
	}
	if c.dialect.DoneViaPosition {
		if !ax.hasLastSet {
			return true, nil
		}
		done, _, err := c.checkPosition(axis, ax.lastSet)
		return done, err
	}
	resp, err := c.queryAxis(axis, "MD?")
	if err != nil {
		return false, err
	}
	return resp == "1", nil
}

// WaitUntilDone polls MotionDone at the axis' WaitTime until the move
// completes, the context is canceled, or the controller's MotionTimeout
// elapses (yielding ErrMotionTimeout).
func (c *Controller) WaitUntilDone(ctx context.Context, axis int) error {
	ax, err := c.Axis(axis)
	if err != nil {
		return err
	}
	interval := ax.WaitTime
	if interval <= 0 {
		interval = c.dialect.DefaultWaitTime
	}
	limit := rate.NewLimiter(rate.Every(interval), 1)
	var deadline time.Time
	if c.MotionTimeout > 0 {
		deadline = time.Now().Add(c.MotionTimeout)
	}
	for {
		if err := limit.Wait(ctx); err != nil {
			return err
		}
		done, err := c.MotionDone(axis)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrMotionTimeout
		}
	}
}

// checkPosition compares the measured position to pos against the axis'
// Accuracy, returning whether it is within and what was measured.
func (c *Controller) checkPosition(axis int, pos float64) (bool, float64, error) {
	ax, err := c.Axis(axis)
	if err != nil {
		return false, 0, err
	}
	cur, err := c.GetPos(axis)
	if err != nil {
		return false, 0, err
	}
	return math.Abs(cur-pos) <= ax.Accuracy, cur, nil
}

// CheckPosition verifies that the axis sits within its Accuracy of pos.
// Misses and read failures are logged, never raised; the return value says
// whether the check passed.
func (c *Controller) CheckPosition(axis int, pos float64) bool {
	ok, cur, err := c.checkPosition(axis, pos)
	if err != nil {
		c.log.Printf("newport: axis %d: position check against %g failed: %v", axis, pos, err)
		return false
	}
	if !ok {
		ax, _ := c.Axis(axis)
		c.log.Printf("newport: axis %d at %g, not within %g of commanded %g", axis, cur, ax.Accuracy, pos)
	}
	return ok
}

// GetVelocity returns the programmed velocity of the axis.
func (c *Controller) GetVelocity(axis int) (float64, error) {
	return c.queryAxisFloat(axis, "VA?")
}

// SetVelocity sets the programmed velocity of the axis.
func (c *Controller) SetVelocity(axis int, v float64) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "VA"+ftoa(v))
}

// GetMaxVelocity returns the maximum allowed velocity of the axis.
func (c *Controller) GetMaxVelocity(axis int) (float64, error) {
	return c.queryAxisFloat(axis, "VU?")
}

// SetMaxVelocity sets the maximum allowed velocity of the axis.
func (c *Controller) SetMaxVelocity(axis int, v float64) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "VU"+ftoa(v))
}

// GetActualVelocity returns the instantaneous velocity of the axis.  TV is
// read only and takes no question mark on the wire.
func (c *Controller) GetActualVelocity(axis int) (float64, error) {
	return c.queryAxisFloat(axis, "TV")
}

// GetAcceleration returns the acceleration readback of the axis.  See
// Dialect.AccelReadMnemonic for which register this actually reads.
func (c *Controller) GetAcceleration(axis int) (float64, error) {
	return c.queryAxisFloat(axis, c.dialect.AccelReadMnemonic+"?")
}

// SetAcceleration sets the acceleration of the axis.
func (c *Controller) SetAcceleration(axis int, a float64) error {
	if _, err := c.Axis(axis); err != nil {
		return err
	}
	return c.writeAxis(axis, "AC"+ftoa(a))
}

// Units returns the name of the unit system the axis is configured in.
func (c *Controller) Units(axis int) (string, error) {
	if _, err := c.Axis(axis); err != nil {
		return "", err
	}
	resp, err := c.queryAxis(axis, "SN?")
	if err != nil {
		return "", err
	}
	code, err := strconv.Atoi(resp)
	if err != nil {
		return "", err
	}
	return UnitFromCode(code)
}

// queryAxisFloat is queryAxis with the payload parsed as a float.
func (c *Controller) queryAxisFloat(axis int, cmd string) (float64, error) {
	if _, err := c.Axis(axis); err != nil {
		return 0, err
	}
	resp, err := c.queryAxis(axis, cmd)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}
