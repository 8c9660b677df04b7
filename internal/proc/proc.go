// Package proc wraps child processes with non-blocking exit tracking.
//
// A Process records how its command terminated (exit code or signal) without
// requiring the caller to block in Wait: the wait happens in a background
// goroutine and completion is observable through Done and HasExited.
package proc

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
)

// Sentinel errors for the proc package.
var (
	// ErrNotStarted is returned by operations that require a started process.
	ErrNotStarted = errors.New("process not started")

	// ErrAlreadyStarted is returned when starting a process twice.
	ErrAlreadyStarted = errors.New("process already started")
)

// Process is a managed child process.
type Process struct {
	cmd *exec.Cmd

	done     chan struct{}
	started  atomic.Bool
	exited   atomic.Bool
	exitCode atomic.Int32
	signal   atomic.Int32 // terminating signal number, 0 if none

	waitErr  error
	mu       sync.RWMutex
	waitOnce sync.Once
}

// New wraps cmd, which must not have been started yet.
func New(cmd *exec.Cmd) *Process {
	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	p.exitCode.Store(-1)
	return p
}

// Start starts the process and begins tracking its exit in the background.
func (p *Process) Start() error {
	if p.started.Load() {
		return ErrAlreadyStarted
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	p.started.Store(true)

	go p.waitLoop()
	return nil
}

func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()

		exitCode := 0
		if err != nil {
			exitCode = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					p.signal.Store(int32(status.Signal()))
				}
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.exited.Store(true)
		close(p.done)
	})
}

// Done returns a channel closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// HasExited reports whether the process has exited.
func (p *Process) HasExited() bool {
	return p.exited.Load()
}

// Wait blocks until the process exits.
func (p *Process) Wait() {
	if !p.started.Load() {
		return
	}
	<-p.done
}

// ExitCode returns the exit code, or -1 if the process has not exited or was
// terminated by a signal.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// Signal returns the terminating signal number, or 0 if the process exited
// normally or has not exited.
func (p *Process) Signal() int {
	return int(p.signal.Load())
}

// WaitErr returns the error from waiting on the process, if any.
func (p *Process) WaitErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.waitErr
}

// PID returns the process id, or -1 if not started.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Kill forcibly terminates the process. It is a no-op if the process has
// already exited or was never started.
func (p *Process) Kill() error {
	if !p.started.Load() || p.exited.Load() {
		return nil
	}
	if p.cmd.Process == nil {
		return ErrNotStarted
	}
	return p.cmd.Process.Kill()
}

// ExitString describes how the process terminated, in the form
// "exited with code 2" or "was killed by signal 9 (SIGKILL)". Signals whose
// name cannot be resolved get an "unrecognized signal" note.
func (p *Process) ExitString() string {
	if !p.exited.Load() {
		return "still running"
	}

	if sig := p.Signal(); sig != 0 {
		name := signalName(sig)
		if name == "" {
			name = "unrecognized signal"
		}
		return fmt.Sprintf("was killed by signal %d (%s)", sig, name)
	}

	return fmt.Sprintf("exited with code %d", p.ExitCode())
}
