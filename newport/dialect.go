package newport

import "time"

// Dialect captures how a particular generation of Newport controller deviates
// from the shared ESP command language.  The command set is common enough that
// a handful of flags covers the differences; there is no need for separate
// driver types.
type Dialect struct {
	// Name of the controller family, e.g. "ESP301"
	Name string

	// KeepGaps indicates that axis addresses need not be contiguous; a
	// missing address during detection is recorded as a nil slot so that
	// later addresses keep their position in the axis table.
	KeepGaps bool

	// ProbeErrorRegister indicates that a failed identity query during
	// detection should be disambiguated by reading the error register
	// ("TE?"), distinguishing a gap in the addresses from the end of them.
	ProbeErrorRegister bool

	// EchoedReplies indicates that the controller prefixes every reply with
	// the axis address and the first two letters of the command, which must
	// be validated and stripped before the payload is used.
	EchoedReplies bool

	// ErrorAfterWrite indicates that the error register is read after every
	// command that does not return data, since the controller reports
	// command faults only through that register.
	ErrorAfterWrite bool

	// EnableCommands indicates that the controller implements motor on/off
	// (MO/MF).  When false, enable and disable are no-ops and the axes are
	// considered always enabled.
	EnableCommands bool

	// DoneViaPosition indicates that the controller lacks a motion done
	// query (MD?) and doneness is instead judged by comparing the measured
	// position to the last commanded one.
	DoneViaPosition bool

	// AccelReadMnemonic is the mnemonic used to read back acceleration.
	// On both families this is "VA", the velocity register; the controllers
	// answer AC? with a protocol error on some firmware, so the long-standing
	// behavior of reading VA is kept.
	AccelReadMnemonic string

	// DefaultWaitTime is the default interval between motion done polls for
	// new axes.
	DefaultWaitTime time.Duration
}

// ESP301Dialect describes the ESP30x multi-axis controllers.
var ESP301Dialect = Dialect{
	Name:               "ESP301",
	KeepGaps:           true,
	ProbeErrorRegister: true,
	EnableCommands:     true,
	AccelReadMnemonic:  "VA",
	DefaultWaitTime:    100 * time.Millisecond,
}

// SMC100Dialect describes the SMC100 single-axis controllers, which are
// daisy-chained on one serial line with contiguous addresses.
var SMC100Dialect = Dialect{
	Name:              "SMC100",
	EchoedReplies:     true,
	ErrorAfterWrite:   true,
	DoneViaPosition:   true,
	AccelReadMnemonic: "VA",
	DefaultWaitTime:   10 * time.Millisecond,
}
