package newport

import (
	"errors"
	"fmt"
)

// ErrMotionTimeout is returned when an axis does not report motion complete
// within the controller's MotionTimeout.
var ErrMotionTimeout = errors.New("newport: motion did not complete before the timeout elapsed")

// ErrBufferWouldOverflow is generated when the controller's input buffer would
// overflow if the message were sent to it.
var ErrBufferWouldOverflow = errors.New("newport: message too long for controller input buffer")

// ErrAxisNotPresent is returned when an operation addresses an axis slot that
// detection found empty, or an address outside the detected table.
type ErrAxisNotPresent struct {
	Axis int
}

func (e ErrAxisNotPresent) Error() string {
	return fmt.Sprintf("newport: axis %d is not present on this controller", e.Axis)
}

// error register values the axis detection scan branches on
const (
	espErrAxisNumberMissing    = 37
	espErrAxisNumberOutOfRange = 9
)

// ESPErrorCodesWithoutAxes maps global (axis independent) error codes of the
// ESP30x to strings.  These are returned by the TE? and TB? queries.
var ESPErrorCodesWithoutAxes = map[int]string{
	0: "NO ERROR DETECTED",
	1: "PCI COMMUNICATION TIME-OUT",
	2: "RESERVED",
	3: "RESERVED",
	4: "EMERGENCY STOP ACTIVATED",
	5: "RESERVED",
	6: "COMMAND DOES NOT EXIST",
	7: "PARAMETER OUT OF RANGE",
	8: "CABLE INTERLOCK ERROR",
	9: "AXIS NUMBER OUT OF RANGE",

	10: "RESERVED",
	11: "RESERVED",
	12: "RESERVED",
	13: "GROUP NUMBER MISSING",
	14: "GROUP NUMBER OUT OF RANGE",
	15: "GROUP NUMBER NOT ASSIGNED",
	16: "GROUP NUMBER ALREADY ASSIGNED",
	17: "GROUP AXIS OUT OF RANGE",
	18: "GROUP AXIS ALREADY ASSIGNED",
	19: "GROUP AXIS DUPLICATED",

	20: "DATA ACQUISITION IS BUSY",
	21: "DATA ACQUISITION SETUP ERROR",
	22: "DATA ACQUISITION NOT ENABLED",
	23: "SERVO CYCLE (400 µS) TICK FAILURE",
	24: "RESERVED",
	25: "DOWNLOAD IN PROGRESS",
	26: "STORED PROGRAM NOT STARTED",
	27: "COMMAND NOT ALLOWED",
	28: "STORED PROGRAM FLASH AREA FULL",
	29: "GROUP PARAMETER MISSING",

	30: "GROUP PARAMETER OUT OF RANGE",
	31: "GROUP MAXIMUM VELOCITY EXCEEDED",
	32: "GROUP MAXIMUM ACCELERATION EXCEEDED",
	33: "GROUP MAXIMUM DECELERATION EXCEEDED",
	34: "GROUP MOVE NOT ALLOWED DURING MOTION",
	35: "PROGRAM NOT FOUND",
	36: "RESERVED",
	37: "AXIS NUMBER MISSING",
	38: "COMMAND PARAMETER MISSING",
	39: "PROGRAM LABEL NOT FOUND",

	40: "LAST COMMAND CANNOT BE REPEATED",
	41: "MAX NUMBER OF LABELS PER PROGRAM EXCEEDED",
}

// ESPErrorCodesWithAxes maps the per-axis portion of a composite error code of
// the ESP30x to strings.  A code of 106, for example, is axis 1 error 06.
var ESPErrorCodesWithAxes = map[int]string{
	0: "MOTOR TYPE NOT DEFINED",
	1: "PARAMETER IN INVALID",
	2: "AMPLIFIER FAULT DETECTED",
	3: "FOLLOWING ERROR THRESHOLD EXCEEDED",
	4: "POSITIVE HARDWARE LIMIT DETECTED",
	5: "NEGATIVE HARDWARE LIMIT DETECTED",
	6: "POSITIVE SOFTWARE LIMIT DETECTED",
	7: "NEGATIVE SOFTWARE LIMIT DETECTED",
	8: "MOTOR / STAGE NOT CONNECTED",
	9: "FEEDBACK SIGNAL FAULT DETECTED",

	10: "MAXIMUM VELOCITY EXCEEDED",
	11: "MAXIMUM ACCELERATION EXCEEDED",
	12: "RESERVED",
	13: "MOTOR NOT ENABLED",
	14: "RESERVED",
	15: "MAXIMUM JERK EXCEEDED",
	16: "MAXIMUM DAC OFFSET EXCEEDED",
	17: "ESP CRITICAL SETTINGS ARE PROTECTED",
	18: "ESP STAGE DEVICE ERROR",
	19: "ESP STAGE DATA INVALID",

	20: "HOMING ABORTED",
	21: "MOTOR CURRENT NOT DEFINED",
	22: "UNIDRIVE COMMUNICATIONS ERROR",
	23: "UNIDRIVE NOT DETECTED",
	24: "SPEED OUT OF RANGE",
	25: "INVALID TRAJECTORY MASTER AXIS",
	26: "PARAMETER CHANGE NOT ALLOWED DURING MOTION",
	27: "INVALID TRAJECTORY MODE FOR HOMING",
	28: "INVALID ENCODER STEP RATIO",
	29: "DIGITAL I/O INTERLOCK DETECTED",

	30: "COMMAND NOT ALLOWED DURING HOMING",
	31: "COMMAND NOT ALLOWED DUE TO GROUP",
	32: "INVALID TRAJECTORY MODE FOR MOVING",
}

// ESPError converts an error code from an ESP30x controller to a error
// with a human-readable message.  Code 0 (no error) yields nil.  Codes of
// three or more digits carry the axis number in their leading digits.
func ESPError(code int) error {
	if code == 0 {
		return nil
	}
	if code >= 100 {
		axis := code / 100
		sub := code % 100
		msg, ok := ESPErrorCodesWithAxes[sub]
		if !ok {
			msg = "UNKNOWN ERROR CODE"
		}
		return fmt.Errorf("newport: axis %d error %02d - %s", axis, sub, msg)
	}
	msg, ok := ESPErrorCodesWithoutAxes[code]
	if !ok {
		msg = "UNKNOWN ERROR CODE"
	}
	return fmt.Errorf("newport: error %d - %s", code, msg)
}

// SMC100ErrorCodes maps the single-letter replies to TE on an SMC100 to
// strings.  "@" is the no-error sentinel.
var SMC100ErrorCodes = map[string]string{
	"@": "",
	"A": "Unknown message code or floating point controller address",
	"B": "Controller address not correct",
	"C": "Parameter missing or out of range",
	"D": "Command not allowed",
	"E": "Home sequence already started",
	"F": "ESP stage name unknown",
	"G": "Displacement out of limits",
	"H": "Command not allowed in NOT REFERENCED state",
	"I": "Command not allowed in CONFIGURATION state",
	"J": "Command not allowed in DISABLE state",
	"K": "Command not allowed in READY state",
	"L": "Command not allowed in HOMING state",
	"M": "Command not allowed in MOVING state",
}

// DecodeSMC100Error converts a letter code from an SMC100 into a message.
// "@" means no error and decodes to the empty string.  An unrecognized code
// comes back verbatim inside the message rather than being swallowed.
func DecodeSMC100Error(code string) string {
	msg, ok := SMC100ErrorCodes[code]
	if !ok {
		return fmt.Sprintf("unrecognized error code %q from controller", code)
	}
	return msg
}
