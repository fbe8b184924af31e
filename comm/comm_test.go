package comm_test

import (
	"bytes"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nasa-jpl/newportmc/comm"
)

func tcpEchoServer(t *testing.T) string {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("could not listen, test aborted:", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }() // use goroutines to handle multiple connections
		}
	}()
	return ln.Addr().String()
}

func TestPoolGetToCapacity(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(3, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	for i := 0; i < 3; i++ {
		conn, err := pool.Get()
		if err != nil {
			t.Fatal("could not get connection:", err)
		}
		if conn == nil {
			t.Fatal("got nil connection")
		}
	}
	if pool.Active() != 3 {
		t.Errorf("expected 3 active connections, got %d", pool.Active())
	}
}

func TestPoolReusesReturnedConns(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(1, time.Minute, comm.BackingOffTCPConnMaker(addr, time.Second))
	conn, err := pool.Get()
	if err != nil {
		t.Fatal("could not get connection:", err)
	}
	pool.Put(conn)
	conn2, err := pool.Get()
	if err != nil {
		t.Fatal("could not get connection:", err)
	}
	if conn2 != conn {
		t.Error("expected the returned connection to be reused")
	}
	pool.Put(conn2)
	if pool.Size() != 1 {
		t.Errorf("expected pool size 1, got %d", pool.Size())
	}
}

func TestPoolMaintainsSize(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(1, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	_, err := pool.Get()
	if err != nil {
		t.Fatal("could not get connection:", err)
	}
	newConn := make(chan io.ReadWriter, 1)
	// the only connection is leased; another Get must block
	go func() {
		rw, _ := pool.Get()
		newConn <- rw
	}()
	select {
	case <-newConn:
		log.Fatal("failed to prevent pool overflow")
	case <-time.After(100 * time.Millisecond):
		// blocked, as desired
	}
}

func TestPoolConcurrentGetPut(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(2, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				conn, err := pool.Get()
				if err != nil {
					t.Error("could not get connection:", err)
					return
				}
				pool.Put(conn)
			}
		}()
	}
	wg.Wait()
	if pool.Active() != 0 {
		t.Errorf("expected every lease returned, %d still active", pool.Active())
	}
}

type scriptedConn struct {
	bytes.Buffer // read side
	wrote        bytes.Buffer
}

func (s *scriptedConn) Write(p []byte) (int, error) {
	return s.wrote.Write(p)
}

func TestTerminatorStripsCRLF(t *testing.T) {
	conn := &scriptedConn{}
	conn.Buffer.WriteString("X1\r\n")
	rw := comm.NewTerminator(conn, '\n', "\r\n")
	buf := make([]byte, 80)
	n, err := rw.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "X1" {
		t.Errorf("expected terminators stripped, got %q", got)
	}
}

func TestTerminatorAppendsOnWrite(t *testing.T) {
	conn := &scriptedConn{}
	rw := comm.NewTerminator(conn, '\n', "\r\n")
	n, err := rw.Write([]byte("1TP?"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected n to count only payload bytes, got %d", n)
	}
	if got := conn.wrote.String(); got != "1TP?\r\n" {
		t.Errorf("expected terminated line on the wire, got %q", got)
	}
}
