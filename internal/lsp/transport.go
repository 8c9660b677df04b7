package lsp

import (
	"fmt"
	"io"
)

// ChunkSize is the maximum number of bytes a transport returns per read.
// Small chunks force many polls; with this size a full message usually
// arrives in one or two reads.
const ChunkSize = 64 * 1024

// Transport is a duplex, non-blocking byte channel to a langserver: a child
// process's stdio pipes or a localhost TCP socket.
//
// Read returns exactly one of:
//   - non-empty bytes and nil error: data was available
//   - nil and ErrNoData: nothing available right now, poll again
//   - nil and ErrClosed: the peer closed permanently (reported once)
//
// Any other error is fatal to the owning session. Callers must distinguish
// ErrNoData from ErrClosed; conflating them turns a live session into a
// dead one or vice versa.
type Transport interface {
	// Write queues or sends bytes to the peer without blocking the caller.
	Write(p []byte) error

	// Read returns available bytes per the contract above. Never blocks.
	Read() ([]byte, error)

	// Close releases channel resources. It does not touch the peer process.
	Close() error
}

// QueuePipeTransport is the pipe backend for platforms without non-blocking
// file descriptor support. A background goroutine blocks on one-byte reads
// and feeds a queue; the foreground Read drains the queue without blocking.
type QueuePipeTransport struct {
	stdin io.WriteCloser
	queue chan byte

	closedReported bool
}

// NewQueuePipeTransport starts the background reader over the process's
// stdout and returns the transport.
func NewQueuePipeTransport(stdout io.Reader, stdin io.WriteCloser) *QueuePipeTransport {
	t := &QueuePipeTransport{
		stdin: stdin,
		queue: make(chan byte, ChunkSize),
	}
	go t.readLoop(stdout)
	return t
}

// readLoop blocks on one-byte reads until the pipe closes, then closes the
// queue so the foreground can observe the end of the stream.
func (t *QueuePipeTransport) readLoop(r io.Reader) {
	defer close(t.queue)

	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			t.queue <- buf[0]
		}
		if err != nil {
			return
		}
	}
}

// Write sends bytes to the process's stdin immediately.
func (t *QueuePipeTransport) Write(p []byte) error {
	if _, err := t.stdin.Write(p); err != nil {
		return fmt.Errorf("write to stdin pipe: %w", err)
	}
	return nil
}

// Read drains whatever the background reader has queued. If the reader has
// exited and the queue is empty, the pipe is closed: ErrClosed is reported
// once, then ErrNoData.
func (t *QueuePipeTransport) Read() ([]byte, error) {
	var out []byte
	for len(out) < ChunkSize {
		select {
		case b, ok := <-t.queue:
			if !ok {
				if len(out) > 0 {
					return out, nil
				}
				if t.closedReported {
					return nil, ErrNoData
				}
				t.closedReported = true
				return nil, ErrClosed
			}
			out = append(out, b)
		default:
			if len(out) == 0 {
				return nil, ErrNoData
			}
			return out, nil
		}
	}
	return out, nil
}

// Close closes the write side of the pipe. The background reader exits on
// its own when the read side closes.
func (t *QueuePipeTransport) Close() error {
	return t.stdin.Close()
}
