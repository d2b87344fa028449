// Package cgi runs CGI children without blocking the caller. Both pipe ends kept by
// the parent are non-blocking, so they can be driven by a readiness loop.
package cgi

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type State uint8

const (
	Spawned State = iota
	WritingStdin
	ReadingStdout
	Reaped
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "Spawned"
	case WritingStdin:
		return "WritingStdin"
	case ReadingStdout:
		return "ReadingStdout"
	case Reaped:
		return "Reaped"
	default:
		return "Unknown"
	}
}

var ErrOutputTooLarge = errors.New("cgi output exceeds the limit")

// Spec describes how to start a child.
type Spec struct {
	// Interpreter is either an absolute path or a name looked up in PATH.
	Interpreter string
	Script      string
	// Dir is the working directory of the child.
	Dir   string
	Env   []string
	Stdin []byte
	// MaxOutput limits the amount of bytes accepted from the child's stdout.
	MaxOutput int
}

type Process struct {
	pid       int
	stdinFD   int
	stdoutFD  int
	stdin     []byte
	output    []byte
	maxOutput int
	state     State
	started   time.Time
	status    unix.WaitStatus
}

// Start spawns the child. The request body is fed to the child by WriteStdin calls, the
// output is collected by ReadStdout ones.
func Start(spec Spec) (*Process, error) {
	interpreter, err := exec.LookPath(spec.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("cgi interpreter: %w", err)
	}

	var stdin, stdout [2]int
	if err = unix.Pipe2(stdin[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	if err = unix.Pipe2(stdout[:], unix.O_CLOEXEC); err != nil {
		closeAll(stdin[0], stdin[1])
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	pid, err := syscall.ForkExec(interpreter, []string{interpreter, spec.Script}, &syscall.ProcAttr{
		Dir:   spec.Dir,
		Env:   spec.Env,
		Files: []uintptr{uintptr(stdin[0]), uintptr(stdout[1]), uintptr(unix.Stderr)},
	})
	// the child owns its ends now
	closeAll(stdin[0], stdout[1])
	if err != nil {
		closeAll(stdin[1], stdout[0])
		return nil, fmt.Errorf("spawn %s: %w", interpreter, err)
	}

	p := &Process{
		pid:       pid,
		stdinFD:   stdin[1],
		stdoutFD:  stdout[0],
		stdin:     spec.Stdin,
		maxOutput: spec.MaxOutput,
		state:     Spawned,
		started:   time.Now(),
	}

	if err = unix.SetNonblock(p.stdinFD, true); err == nil {
		err = unix.SetNonblock(p.stdoutFD, true)
	}

	if err != nil {
		p.Kill()
		return nil, fmt.Errorf("non-blocking pipes: %w", err)
	}

	if len(p.stdin) == 0 {
		p.closeStdin()
		p.state = ReadingStdout
	} else {
		p.state = WritingStdin
	}

	return p, nil
}

// WriteStdin writes as much of the pending input as the pipe accepts. Once everything
// is written, stdin gets closed, so the child sees EOF.
func (p *Process) WriteStdin() (done bool, err error) {
	if p.stdinFD == -1 {
		return true, nil
	}

	for len(p.stdin) > 0 {
		n, err := unix.Write(p.stdinFD, p.stdin)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return false, nil
		case err == unix.EPIPE:
			// the child isn't interested in the rest of the body
			p.stdin = nil
		case err != nil:
			p.closeStdin()
			return true, err
		default:
			p.stdin = p.stdin[n:]
		}
	}

	p.closeStdin()
	if p.state == WritingStdin {
		p.state = ReadingStdout
	}

	return true, nil
}

// ReadStdout drains the pipe using buff as an intermediate storage. EOF is reported
// by done set to true.
func (p *Process) ReadStdout(buff []byte) (done bool, err error) {
	if p.stdoutFD == -1 {
		return true, nil
	}

	for {
		n, err := unix.Read(p.stdoutFD, buff)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return false, nil
		case err != nil:
			p.closeStdout()
			return true, err
		case n == 0:
			p.closeStdout()
			return true, nil
		}

		if len(p.output)+n > p.maxOutput {
			p.closeStdout()
			return true, ErrOutputTooLarge
		}

		p.output = append(p.output, buff[:n]...)
	}
}

// TryReap collects the exit status of the child without blocking.
func (p *Process) TryReap() bool {
	if p.state == Reaped {
		return true
	}

	for {
		wpid, err := unix.Wait4(p.pid, &p.status, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			// ECHILD: somebody has already reaped it
			p.state = Reaped
			p.closeStdin()
			return true
		case wpid == p.pid:
			p.state = Reaped
			p.closeStdin()
			return true
		default:
			return false
		}
	}
}

// Kill terminates the child and releases the pipes. The child still has to be reaped.
func (p *Process) Kill() {
	if p.state != Reaped {
		_ = unix.Kill(p.pid, unix.SIGKILL)
	}

	p.closeStdin()
	p.closeStdout()
}

// ExitCode returns the exit code of a reaped child. Children terminated by a signal
// report -1.
func (p *Process) ExitCode() int {
	if p.status.Exited() {
		return p.status.ExitStatus()
	}

	return -1
}

func (p *Process) StdinFD() int {
	return p.stdinFD
}

func (p *Process) StdoutFD() int {
	return p.stdoutFD
}

func (p *Process) Output() []byte {
	return p.output
}

func (p *Process) State() State {
	return p.state
}

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) Started() time.Time {
	return p.started
}

// Finished tells whether the output is fully collected and the child is reaped.
func (p *Process) Finished() bool {
	return p.stdoutFD == -1 && p.state == Reaped
}

func (p *Process) closeStdin() {
	if p.stdinFD != -1 {
		_ = unix.Close(p.stdinFD)
		p.stdinFD = -1
		p.stdin = nil
	}
}

func (p *Process) closeStdout() {
	if p.stdoutFD != -1 {
		_ = unix.Close(p.stdoutFD)
		p.stdoutFD = -1
	}
}

func closeAll(fds ...int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
