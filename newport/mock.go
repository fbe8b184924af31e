package newport

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/newportmc/comm"
)

// MockStage is a software imitation of a Newport controller for tests and
// dry runs.  It implements io.ReadWriteCloser, so handing its Maker to a
// Controller makes the driver speak to it exactly as it would to hardware:
// CRLF framed commands in, CRLF framed replies out.
//
// Moves complete after MoveDuration; the zero value moves instantly.  Every
// line the driver sends is recorded in Cmds for assertions.
type MockStage struct {
	mu sync.Mutex

	// Cmds holds every command line received, in order
	Cmds []string

	// MoveDuration is how long a commanded move takes to complete
	MoveDuration time.Duration

	echo bool // SMC100 style echoed replies
	ids  []string

	pos     []float64
	target  []float64
	doneAt  []time.Time
	vel     []float64
	maxvel  []float64
	acc     []float64
	enabled []bool
	unit    []int
	smcCode []string

	lastCode int   // ESP error register, read-and-clear
	errBuf   []int // ESP error buffer drained by TB?

	keypadLocked bool

	lines [][]byte // pending reply lines
}

// NewMockESP301 returns a mock speaking the ESP30x flavor.  ids are the
// identity strings of the axes at addresses 1..len(ids); an empty string is
// a gap in the addresses.
func NewMockESP301(ids ...string) *MockStage {
	return newMockStage(false, ids)
}

// NewMockSMC100 returns a mock speaking the SMC100 flavor, a contiguous
// chain of single-axis controllers.
func NewMockSMC100(ids ...string) *MockStage {
	return newMockStage(true, ids)
}

func newMockStage(echo bool, ids []string) *MockStage {
	n := len(ids)
	m := &MockStage{
		echo:    echo,
		ids:     ids,
		pos:     make([]float64, n),
		target:  make([]float64, n),
		doneAt:  make([]time.Time, n),
		vel:     make([]float64, n),
		maxvel:  make([]float64, n),
		acc:     make([]float64, n),
		enabled: make([]bool, n),
		unit:    make([]int, n),
		smcCode: make([]string, n),
	}
	for i := range m.smcCode {
		m.smcCode[i] = "@"
		m.unit[i] = 2 // millimeter
		m.vel[i] = 1
		m.maxvel[i] = 10
		m.acc[i] = 1
		m.enabled[i] = true
	}
	return m
}

// Maker returns a comm.CreationFunc which hands out the mock, for plugging
// into NewController.
func (m *MockStage) Maker() comm.CreationFunc {
	return func() (io.ReadWriteCloser, error) { return m, nil }
}

// Position reports the mock's current position on the axis at addr, settling
// any finished move first.
func (m *MockStage) Position(addr int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle(addr - 1)
	return m.pos[addr-1]
}

// KeypadLocked reports whether the mock has received a keypad disable.
func (m *MockStage) KeypadLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keypadLocked
}

func (m *MockStage) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lines) == 0 {
		return 0, errors.New("newport: mock stage read timed out (no reply pending)")
	}
	line := m.lines[0]
	m.lines = m.lines[1:]
	return copy(p, line), nil
}

func (m *MockStage) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range strings.Split(string(p), "\r\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, sub := range strings.Split(line, ";") {
			if sub = strings.TrimSpace(sub); sub != "" {
				m.handle(sub)
			}
		}
	}
	return len(p), nil
}

// Close is a no-op; the mock survives pool reclaims.
func (m *MockStage) Close() error { return nil }

func (m *MockStage) handle(line string) {
	m.Cmds = append(m.Cmds, line)
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	axis := 0
	if i > 0 {
		axis, _ = strconv.Atoi(line[:i])
	}
	rest := line[i:]
	if len(rest) < 2 {
		return
	}
	mn := rest[:2]
	arg := rest[2:]
	query := strings.HasSuffix(arg, "?")
	arg = strings.TrimSuffix(arg, "?")

	// the ESP error register is global and unaddressed
	if mn == "TE" && !m.echo {
		m.pushLine(strconv.Itoa(m.lastCode))
		m.lastCode = 0
		return
	}
	if mn == "TB" && !m.echo {
		code := 0
		if len(m.errBuf) > 0 {
			code = m.errBuf[0]
			m.errBuf = m.errBuf[1:]
		}
		m.pushLine(strconv.Itoa(code) + ", 451322, " + espMessage(code))
		return
	}

	idx := axis - 1
	if mn == "ID" {
		m.handleID(axis, idx)
		return
	}
	if idx < 0 || idx >= len(m.ids) || m.ids[idx] == "" {
		m.fault(espErrAxisNumberOutOfRange)
		return
	}

	switch mn {
	case "TE": // SMC100: per axis error, read-and-clear
		m.reply(axis, mn, m.smcCode[idx])
		m.smcCode[idx] = "@"
	case "MO":
		if query {
			m.reply(axis, mn, onOff(m.enabled[idx]))
		} else {
			m.enabled[idx] = true
		}
	case "MF":
		m.enabled[idx] = false
	case "DH":
		v, _ := strconv.ParseFloat(arg, 64)
		m.settle(idx)
		m.pos[idx] = v
		m.target[idx] = v
	case "OR":
		m.startMove(idx, 0)
	case "TP":
		m.settle(idx)
		m.reply(axis, mn, ftoa(m.pos[idx]))
	case "PA":
		v, _ := strconv.ParseFloat(arg, 64)
		m.startMove(idx, v)
	case "PR":
		m.settle(idx)
		v, _ := strconv.ParseFloat(arg, 64)
		m.startMove(idx, m.pos[idx]+v)
	case "ST":
		m.doneAt[idx] = time.Time{}
		m.target[idx] = m.pos[idx]
	case "VA":
		if query {
			m.reply(axis, mn, ftoa(m.vel[idx]))
		} else {
			m.vel[idx], _ = strconv.ParseFloat(arg, 64)
		}
	case "VU":
		if query {
			m.reply(axis, mn, ftoa(m.maxvel[idx]))
		} else {
			m.maxvel[idx], _ = strconv.ParseFloat(arg, 64)
		}
	case "AC":
		if query {
			m.reply(axis, mn, ftoa(m.acc[idx]))
		} else {
			m.acc[idx], _ = strconv.ParseFloat(arg, 64)
		}
	case "TV":
		v := 0.
		if m.moving(idx) {
			v = m.vel[idx]
		}
		m.reply(axis, mn, ftoa(v))
	case "MD":
		m.settle(idx)
		m.reply(axis, mn, onOff(!m.moving(idx)))
	case "SN":
		if query {
			m.reply(axis, mn, strconv.Itoa(m.unit[idx]))
		} else {
			m.unit[idx], _ = strconv.Atoi(arg)
		}
	case "JD":
		m.keypadLocked = true
	default:
		m.fault(6) // COMMAND DOES NOT EXIST
	}
}

func (m *MockStage) handleID(axis, idx int) {
	if m.echo {
		// an SMC100 chain: absent addresses answer nothing of substance
		if idx < 0 || idx >= len(m.ids) {
			m.reply(axis, "ID", "")
			return
		}
		m.reply(axis, "ID", m.ids[idx])
		return
	}
	// ESP30x: silence plus the error register tells the story
	if idx < 0 || idx >= len(m.ids) {
		m.fault(espErrAxisNumberOutOfRange)
		return
	}
	if m.ids[idx] == "" {
		m.fault(espErrAxisNumberMissing)
		return
	}
	m.reply(axis, "ID", m.ids[idx])
}

func (m *MockStage) fault(code int) {
	m.lastCode = code
	m.errBuf = append(m.errBuf, code)
}

func (m *MockStage) startMove(idx int, target float64) {
	m.settle(idx)
	m.target[idx] = target
	m.doneAt[idx] = time.Now().Add(m.MoveDuration)
}

func (m *MockStage) moving(idx int) bool {
	return time.Now().Before(m.doneAt[idx])
}

func (m *MockStage) settle(idx int) {
	if !m.moving(idx) {
		m.pos[idx] = m.target[idx]
	}
}

func (m *MockStage) reply(axis int, mn, payload string) {
	if m.echo {
		m.pushLine(strconv.Itoa(axis) + mn + payload)
		return
	}
	m.pushLine(payload)
}

func (m *MockStage) pushLine(s string) {
	m.lines = append(m.lines, []byte(s+"\r\n"))
}

func espMessage(code int) string {
	err := ESPError(code)
	if err == nil {
		return "NO ERROR DETECTED"
	}
	return err.Error()
}

func onOff(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
