package comm

import (
	"bufio"
	"bytes"
	"io"
	"time"
)

// deadliner is any connection with settable read/write deadlines (net.Conn).
// Serial ports configure their timeout at open time and do not satisfy it.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type timeoutRW struct {
	rw io.ReadWriter
	dl deadliner
	d  time.Duration
}

func (t timeoutRW) Read(p []byte) (int, error) {
	t.dl.SetReadDeadline(time.Now().Add(t.d))
	return t.rw.Read(p)
}

func (t timeoutRW) Write(p []byte) (int, error) {
	t.dl.SetWriteDeadline(time.Now().Add(t.d))
	return t.rw.Write(p)
}

// NewTimeout wraps a ReadWriter such that a deadline is armed before every
// Read and Write.  If the connection does not support deadlines the input
// is returned unchanged.
func NewTimeout(rw io.ReadWriter, d time.Duration) io.ReadWriter {
	if dl, ok := rw.(deadliner); ok {
		return timeoutRW{rw: rw, dl: dl, d: d}
	}
	return rw
}

type terminatorRW struct {
	rw  io.ReadWriter
	rx  byte
	tx  []byte
	rdr *bufio.Reader
}

func (t *terminatorRW) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)+len(t.tx))
	buf = append(buf, p...)
	buf = append(buf, t.tx...)
	n, err := t.rw.Write(buf)
	if n > len(p) {
		n = len(p)
	}
	return n, err
}

func (t *terminatorRW) Read(p []byte) (int, error) {
	buf, err := t.rdr.ReadBytes(t.rx)
	if err != nil {
		return 0, err
	}
	buf = bytes.TrimSuffix(buf, []byte{t.rx})
	buf = bytes.TrimSuffix(buf, []byte{'\r'})
	n := copy(p, buf)
	return n, nil
}

// NewTerminator wraps a ReadWriter for a line-oriented ASCII protocol.
// Writes have tx appended.  Reads scan to rx and strip it, as well as a
// carriage return preceding it, so CRLF protocols yield bare payloads.
// A read whose payload is larger than the destination buffer is truncated.
func NewTerminator(rw io.ReadWriter, rx byte, tx string) io.ReadWriter {
	return &terminatorRW{rw: rw, rx: rx, tx: []byte(tx), rdr: bufio.NewReader(rw)}
}
