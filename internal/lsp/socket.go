package lsp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// socketRetryInterval is how long the connector waits before retrying a
// refused connection. Servers that take a port usually need a moment to
// start listening after launch.
const socketRetryInterval = 500 * time.Millisecond

// socketReadWait bounds how long a readiness check may wait for data. Kept
// far below the tick interval so one poll never stalls the loop.
const socketReadWait = time.Millisecond

// SocketTransport talks to a langserver listening on a localhost TCP port.
//
// Connecting and sending happen on a background goroutine: the connector
// retries refused connections until the server is listening, and writes
// issued before the connection exists are queued and flushed once it is.
// The foreground Read never blocks beyond a bounded readiness check.
type SocketTransport struct {
	port int

	mu      sync.Mutex
	conn    net.Conn // nil until the connector succeeds
	queue   [][]byte
	closed  bool
	dialErr error

	kick chan struct{}

	closedReported bool
}

// NewSocketTransport starts the connector goroutine for the given localhost
// port and returns immediately.
func NewSocketTransport(port int) *SocketTransport {
	t := &SocketTransport{
		port: port,
		kick: make(chan struct{}, 1),
	}
	go t.connectAndSend()
	return t
}

// connectAndSend dials until the server accepts, then drains the write queue
// for the life of the connection.
func (t *SocketTransport) connectAndSend() {
	addr := fmt.Sprintf("127.0.0.1:%d", t.port)

	var conn net.Conn
	for {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		c, err := net.DialTimeout("tcp", addr, socketRetryInterval)
		if err == nil {
			conn = c
			break
		}
		if errors.Is(err, syscall.ECONNREFUSED) || isTimeout(err) {
			time.Sleep(socketRetryInterval)
			continue
		}
		t.mu.Lock()
		t.dialErr = err
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	for {
		<-t.kick

		t.mu.Lock()
		pending := t.queue
		t.queue = nil
		closed := t.closed
		t.mu.Unlock()

		for _, p := range pending {
			if _, err := conn.Write(p); err != nil {
				// The next foreground read observes the closure.
				return
			}
		}
		if closed {
			return
		}
	}
}

// Write queues bytes for the sender goroutine and returns immediately,
// whether or not the connection exists yet.
func (t *SocketTransport) Write(p []byte) error {
	buf := make([]byte, len(p))
	copy(buf, p)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSessionExited
	}
	if err := t.dialErr; err != nil {
		t.mu.Unlock()
		return err
	}
	t.queue = append(t.queue, buf)
	t.mu.Unlock()

	select {
	case t.kick <- struct{}{}:
	default:
	}
	return nil
}

// Read performs a bounded-deadline receive. No connection yet means no data;
// zero bytes from a live connection means the peer closed.
func (t *SocketTransport) Read() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	dialErr := t.dialErr
	t.mu.Unlock()

	if dialErr != nil {
		return nil, fmt.Errorf("connect to langserver: %w", dialErr)
	}
	if conn == nil {
		return nil, ErrNoData
	}
	if t.closedReported {
		return nil, ErrNoData
	}

	if err := conn.SetReadDeadline(time.Now().Add(socketReadWait)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, ChunkSize)
	n, err := conn.Read(buf)
	switch {
	case n > 0:
		return buf[:n], nil
	case err == nil:
		return nil, ErrNoData
	case isTimeout(err), errors.Is(err, syscall.ENOTCONN):
		return nil, ErrNoData
	default:
		// EOF or reset: the server closed. Stop the sender and report
		// closure once.
		t.stopSender()
		t.closedReported = true
		return nil, ErrClosed
	}
}

// stopSender marks the transport closed and wakes the sender goroutine so it
// can observe the flag and exit.
func (t *SocketTransport) stopSender() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Close tears down the connection and stops the background goroutine.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	select {
	case t.kick <- struct{}{}:
	default:
	}

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
