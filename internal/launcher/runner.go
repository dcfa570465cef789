package launcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/CZERTAINLY/joblauncher/internal/model"
)

// DefaultCaptureLimit is the number of trailing bytes kept of each of
// stdout and stderr.
const DefaultCaptureLimit = 1 << 20

// StderrFunc obtains every line the child writes to stderr.
type StderrFunc func(ctx context.Context, line string)

// Command describes one process execution.
type Command struct {
	Path         string
	Args         []string
	Env          []string
	Timeout      time.Duration // 0 means no timeout
	Grace        time.Duration // delay between SIGTERM and SIGKILL, model.DefaultGrace when 0
	Stdout       io.Writer     // optional, receives a copy of the child's stdout
	Stderr       StderrFunc    // optional
	CaptureLimit int           // bytes of stdout and stderr tail kept, DefaultCaptureLimit when 0
}

// Result of a finished process.
type Result struct {
	Path      string
	Args      []string
	Env       []string
	Started   time.Time
	Stopped   time.Time
	State     *os.ProcessState
	Stdout    []byte
	Stderr    []byte
	TimedOut  bool
	Truncated bool  // captured stdout or stderr lost its beginning
	Err       error // error returned by Wait, if any
}

// ExitCode returns the exit code of a process, -1 if it did not finish
// normally.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Runner runs a single command and waits for it.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// ProcessRunner runs commands using os/exec. The child is placed in its own
// process group so the termination reaches its children as well.
type ProcessRunner struct{}

func NewProcessRunner() ProcessRunner {
	return ProcessRunner{}
}

// Run starts the process and blocks until it exits. An error is returned only
// if the process could not be started, the exit status is in Result.State.
func (ProcessRunner) Run(ctx context.Context, proto Command) (Result, error) {
	result := Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
		Env:  append([]string(nil), proto.Env...),
	}
	limit := proto.CaptureLimit
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}
	stdoutTail := &tailBuffer{limit: limit}
	stderrTail := &tailBuffer{limit: limit}

	runCtx := ctx
	if proto.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	} else {
		slog.DebugContext(ctx, "command has no timeout", "path", proto.Path)
	}

	grace := proto.Grace
	if grace <= 0 {
		grace = model.DefaultGrace
	}

	cmd := exec.CommandContext(runCtx, result.Path, result.Args...)
	cmd.Env = result.Env
	setProcessGroup(cmd)

	var killTimer *time.Timer
	cmd.Cancel = func() error {
		slog.WarnContext(ctx, "terminating external process", "pid", cmd.Process.Pid, "grace", grace.String())
		err := signalGroup(cmd.Process, sigTerm)
		killTimer = time.AfterFunc(grace, func() {
			_ = signalGroup(cmd.Process, sigKill)
		})
		return err
	}
	// the leader is killed by os/exec, the rest of the group by killTimer
	cmd.WaitDelay = grace

	var stdout io.Writer = stdoutTail
	if proto.Stdout != nil {
		stdout = io.MultiWriter(stdoutTail, proto.Stdout)
	}
	cmd.Stdout = stdout

	var lines *lineWriter
	var stderr io.Writer = stderrTail
	if proto.Stderr != nil {
		lines = &lineWriter{ctx: ctx, fn: proto.Stderr}
		stderr = io.MultiWriter(stderrTail, lines)
	}
	cmd.Stderr = stderr

	result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		result.Stopped = time.Now().UTC()
		result.Err = err
		return result, err
	}
	slog.DebugContext(ctx, "process started", "pid", cmd.Process.Pid)

	err := cmd.Wait()
	result.Stopped = time.Now().UTC()
	if killTimer != nil {
		killTimer.Stop()
	}
	if lines != nil {
		lines.Flush()
	}

	result.State = cmd.ProcessState
	result.Stdout = stdoutTail.buf
	result.Stderr = stderrTail.buf
	result.Truncated = stdoutTail.dropped || stderrTail.dropped
	result.Err = err
	result.TimedOut = proto.Timeout > 0 &&
		errors.Is(runCtx.Err(), context.DeadlineExceeded) &&
		ctx.Err() == nil
	return result, nil
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit   int
	buf     []byte
	dropped bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.limit {
		b.dropped = b.dropped || n > b.limit || len(b.buf) > 0
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.limit; over > 0 {
		b.buf = b.buf[:copy(b.buf, b.buf[over:])]
		b.dropped = true
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// lineWriter splits the written data into lines. It is used from a single
// os/exec copying goroutine only.
type lineWriter struct {
	ctx context.Context
	fn  StderrFunc
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(w.buf[:i], []byte{'\r'})
		w.fn(w.ctx, string(line))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits the last line without a trailing newline.
func (w *lineWriter) Flush() {
	if len(w.buf) == 0 {
		return
	}
	w.fn(w.ctx, string(w.buf))
	w.buf = nil
}
