package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/CZERTAINLY/joblauncher/internal/log"
	"github.com/CZERTAINLY/joblauncher/internal/model"
	"github.com/google/uuid"
)

// Launcher runs one configured job class through the external tool.
type Launcher struct {
	tool     model.Tool
	job      model.Job
	runner   Runner
	lookPath func(file string) (string, error)
	environ  func() []string
	stdout   io.Writer
	stderr   io.Writer
}

func New(tool model.Tool, job model.Job) *Launcher {
	return &Launcher{
		tool:     tool,
		job:      job,
		runner:   NewProcessRunner(),
		lookPath: exec.LookPath,
		environ:  os.Environ,
	}
}

// WithRunner replaces the process runner.
func (l *Launcher) WithRunner(runner Runner) *Launcher {
	l.runner = runner
	return l
}

// WithStdout makes the child's stdout copied to w in addition to being captured.
func (l *Launcher) WithStdout(w io.Writer) *Launcher {
	l.stdout = w
	return l
}

// WithStderr makes every stderr line of the child written to w.
func (l *Launcher) WithStderr(w io.Writer) *Launcher {
	l.stderr = w
	return l
}

// WithEnviron replaces os.Environ as the base of the child environment.
// This method exists for a unit testing only.
func (l *Launcher) WithEnviron(environ func() []string) *Launcher {
	l.environ = environ
	return l
}

// Argv returns the arguments passed to the tool for a list of job arguments.
// The joined style fails for arguments ArgumentList.Joined can't quote.
func (l *Launcher) Argv(args model.ArgumentList) ([]string, error) {
	argv := make([]string, 0, len(l.tool.Args)+len(args)+2)
	argv = append(argv, l.tool.Args...)
	argv = append(argv, l.tool.ClassPrefix+l.job.Class)
	switch l.job.ArgsStyle {
	case model.ArgsJoined:
		joined, err := args.Joined()
		if err != nil {
			return nil, err
		}
		argv = append(argv, l.tool.ArgsPrefix+joined)
	default:
		argv = append(argv, args...)
	}
	return argv, nil
}

// Launch runs the job once and waits for it. An empty InputDirectory falls
// back to the job's input directory. The result is returned for every
// started process, even along with ErrToolExecution in strict mode.
func (l *Launcher) Launch(ctx context.Context, req model.LaunchRequest) (model.LaunchResult, error) {
	if err := checkOutput(req.OutputPath); err != nil {
		return model.LaunchResult{}, err
	}
	inputDir := req.InputDirectory
	if inputDir == "" {
		inputDir = l.job.InputDir
	}

	args, err := BuildArguments(ctx, req.OutputPath, inputDir)
	if err != nil {
		return model.LaunchResult{}, err
	}

	argv, err := l.Argv(args)
	if err != nil {
		return model.LaunchResult{}, err
	}

	path, err := l.lookPath(l.tool.Path)
	if err != nil {
		return model.LaunchResult{}, model.NewError(model.ErrToolNotFound, l.tool.Path, err)
	}

	ctx = log.ContextAttrs(ctx, slog.Group("launch",
		slog.String("id", uuid.NewString()),
		slog.String("job", l.job.Name),
	))

	cmd := Command{
		Path:    path,
		Args:    argv,
		Env:     ChildEnv(l.environ(), mergeEnv(l.job.Env, req.ExtraEnv)),
		Timeout: l.job.Timeout,
		Grace:   l.job.Grace,
		Stdout:  l.stdout,
		Stderr: func(ctx context.Context, line string) {
			if l.stderr != nil {
				_, _ = fmt.Fprintln(l.stderr, line)
			}
			slog.DebugContext(ctx, "stderr", "line", line)
		},
	}

	slog.InfoContext(ctx, "launching external job",
		"tool", path,
		"class", l.job.Class,
		"output", args.Output(),
		"inputs", len(args.Inputs()),
	)
	slog.DebugContext(ctx, "command", "args", cmd.Args)

	res, err := l.runner.Run(ctx, cmd)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return model.LaunchResult{}, model.NewError(model.ErrToolNotFound, path, err)
		}
		return model.LaunchResult{}, model.NewError(model.ErrToolExecution, path, err)
	}

	result := model.LaunchResult{
		Argv:     append([]string{path}, cmd.Args...),
		ExitCode: res.ExitCode(),
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Started:  res.Started,
		Stopped:  res.Stopped,
		TimedOut: res.TimedOut,
	}
	if res.Truncated {
		slog.DebugContext(ctx, "captured output truncated", "limit", DefaultCaptureLimit)
	}

	slog.InfoContext(ctx, "external job finished",
		"exit_code", result.ExitCode,
		"duration", result.Duration().String(),
		"timed_out", result.TimedOut,
	)

	if req.Strict && result.ExitCode != 0 {
		return result, model.NewError(model.ErrToolExecution, path, exitReason(result, res.Err))
	}
	return result, nil
}

func exitReason(result model.LaunchResult, waitErr error) error {
	switch {
	case result.TimedOut:
		return fmt.Errorf("timed out after %s", result.Duration().Round(time.Millisecond))
	case result.ExitCode < 0 && waitErr != nil:
		return waitErr
	case result.ExitCode < 0:
		return errors.New("terminated by a signal")
	default:
		return fmt.Errorf("exit code %d", result.ExitCode)
	}
}
