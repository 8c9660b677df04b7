//go:build unix

package lsp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// PipeTransport is the pipe backend for platforms with non-blocking file
// descriptors: the read side is marked O_NONBLOCK and polled directly, so no
// background reader is needed.
type PipeTransport struct {
	stdin  io.WriteCloser
	stdout *os.File
	fd     int

	closedReported bool
}

// NewPipeTransport marks the process's stdout non-blocking and returns the
// transport.
func NewPipeTransport(stdout *os.File, stdin io.WriteCloser) (*PipeTransport, error) {
	fd := int(stdout.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set stdout non-blocking: %w", err)
	}
	return &PipeTransport{stdin: stdin, stdout: stdout, fd: fd}, nil
}

// Write sends bytes to the process's stdin immediately.
func (t *PipeTransport) Write(p []byte) error {
	if _, err := t.stdin.Write(p); err != nil {
		return fmt.Errorf("write to stdin pipe: %w", err)
	}
	return nil
}

// Read reads up to ChunkSize bytes from the non-blocking descriptor.
// A short read is normal, not an error.
func (t *PipeTransport) Read() ([]byte, error) {
	if t.closedReported {
		return nil, ErrNoData
	}

	buf := make([]byte, ChunkSize)
	n, err := unix.Read(t.fd, buf)
	switch {
	case err == nil && n > 0:
		return buf[:n], nil
	case err == nil && n == 0:
		// EOF: the process closed its stdout.
		t.closedReported = true
		return nil, ErrClosed
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("read from stdout pipe: %w", err)
	}
}

// Close closes both pipe ends.
func (t *PipeTransport) Close() error {
	errIn := t.stdin.Close()
	errOut := t.stdout.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}

// NewStdioTransport returns the best pipe transport for this platform:
// the non-blocking descriptor backend when stdout is a real pipe, the
// queue-and-thread backend otherwise.
func NewStdioTransport(stdout io.ReadCloser, stdin io.WriteCloser) (Transport, error) {
	if f, ok := stdout.(*os.File); ok {
		return NewPipeTransport(f, stdin)
	}
	return NewQueuePipeTransport(stdout, stdin), nil
}
