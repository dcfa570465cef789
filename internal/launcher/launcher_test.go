package launcher_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/joblauncher/internal/launcher"
	"github.com/CZERTAINLY/joblauncher/internal/model"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands instead of running them
type fakeRunner struct {
	calls []launcher.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd launcher.Command) (launcher.Result, error) {
	f.calls = append(f.calls, cmd)
	return launcher.Result{Path: cmd.Path, Args: cmd.Args}, nil
}

func testTool(t *testing.T) model.Tool {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)
	return model.Tool{
		Path:        self,
		Args:        []string{"-q", "exec:java"},
		ClassPrefix: "-Dexec.mainClass=",
		ArgsPrefix:  "-Dexec.args=",
	}
}

func testJob(dir string) model.Job {
	return model.Job{
		Name:     "consolidate",
		Class:    "org.example.Consolidate",
		InputDir: dir,
	}
}

func TestLaunch_InvalidOutput(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	missing := filepath.Join(t.TempDir(), "missing")
	l := launcher.New(testTool(t), testJob(missing)).WithRunner(runner)

	for _, output := range []string{"", "  "} {
		_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: output})
		require.ErrorIs(t, err, model.ErrInvalidArgument)
		require.NotErrorIs(t, err, model.ErrDirectoryNotFound)
	}
	require.Empty(t, runner.calls)
}

func TestLaunch_DirectoryNotFound(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	missing := filepath.Join(t.TempDir(), "missing")
	l := launcher.New(testTool(t), testJob(t.TempDir())).WithRunner(runner)

	_, err := l.Launch(t.Context(), model.LaunchRequest{
		OutputPath:     "out.db",
		InputDirectory: missing,
	})
	require.ErrorIs(t, err, model.ErrDirectoryNotFound)
	require.Equal(t, model.ExitDirectoryNotFound, model.ExitCode(err))
	require.Empty(t, runner.calls)
}

func TestLaunch_ToolNotFound(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	tool := model.Tool{Path: "joblauncher-no-such-tool"}
	l := launcher.New(tool, testJob(t.TempDir())).WithRunner(runner)

	_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db"})
	require.ErrorIs(t, err, model.ErrToolNotFound)
	require.ErrorContains(t, err, "joblauncher-no-such-tool")
	require.Empty(t, runner.calls)
}

func TestLaunch_StartFailure(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		err      error
		then     error
	}{
		{"not found", &exec.Error{Name: "mvn", Err: exec.ErrNotFound}, model.ErrToolNotFound},
		{"not exist", os.ErrNotExist, model.ErrToolNotFound},
		{"other", errors.New("fork/exec: resource temporarily unavailable"), model.ErrToolExecution},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			runner := launcher.RunnerFunc(func(_ context.Context, _ launcher.Command) (launcher.Result, error) {
				return launcher.Result{Err: tc.err}, tc.err
			})
			l := launcher.New(testTool(t), testJob(t.TempDir())).WithRunner(runner)
			_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db"})
			require.ErrorIs(t, err, tc.then)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLaunch_Argv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mkInputs(t, dir, "b.db", "a b.db", "sub/")
	tool := testTool(t)

	t.Run("vector", func(t *testing.T) {
		runner := &fakeRunner{}
		l := launcher.New(tool, testJob(dir)).WithRunner(runner)
		res, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out dir/out.db"})
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		cmd := runner.calls[0]
		require.Equal(t, tool.Path, cmd.Path)
		require.Equal(t, []string{
			"-q", "exec:java",
			"-Dexec.mainClass=org.example.Consolidate",
			"out dir/out.db",
			filepath.Join(dir, "a b.db"),
			filepath.Join(dir, "b.db"),
		}, cmd.Args)
		require.Equal(t, append([]string{tool.Path}, cmd.Args...), res.Argv)
	})

	t.Run("joined", func(t *testing.T) {
		runner := &fakeRunner{}
		job := testJob(".")
		job.ArgsStyle = model.ArgsJoined
		l := launcher.New(tool, job).WithRunner(runner)
		_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db", InputDirectory: dir})
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		want := model.ArgumentList{"out.db", filepath.Join(dir, "a b.db"), filepath.Join(dir, "b.db")}
		joined, err := want.Joined()
		require.NoError(t, err)
		require.Equal(t, []string{
			"-q", "exec:java",
			"-Dexec.mainClass=org.example.Consolidate",
			"-Dexec.args=" + joined,
		}, runner.calls[0].Args)
		require.Contains(t, runner.calls[0].Args[3], `'`+filepath.Join(dir, "a b.db")+`'`)
	})

	t.Run("joined quote", func(t *testing.T) {
		quoted := t.TempDir()
		mkInputs(t, quoted, "it's.db")
		runner := &fakeRunner{}
		job := testJob(quoted)
		job.ArgsStyle = model.ArgsJoined
		l := launcher.New(tool, job).WithRunner(runner)
		_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db"})
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		require.Equal(t, `-Dexec.args=out.db "`+filepath.Join(quoted, "it's.db")+`"`, runner.calls[0].Args[3])
		require.NotContains(t, runner.calls[0].Args[3], `\`)
	})

	t.Run("joined unquotable", func(t *testing.T) {
		bad := t.TempDir()
		mkInputs(t, bad, `it's "x".db`)
		runner := &fakeRunner{}
		job := testJob(bad)
		job.ArgsStyle = model.ArgsJoined
		l := launcher.New(tool, job).WithRunner(runner)
		_, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db"})
		require.ErrorIs(t, err, model.ErrInvalidArgument)
		require.Empty(t, runner.calls)
	})
}

func TestLaunch_Env(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	job := testJob(t.TempDir())
	job.Env = map[string]string{"MAVEN_OPTS": "-Xmx4g"}
	job.Timeout = time.Minute
	job.Grace = time.Second

	base := []string{"PATH=/usr/bin", "HOME=/home/memo", "MAVEN_OPTS=-Xmx1g"}
	l := launcher.New(testTool(t), job).
		WithRunner(runner).
		WithEnviron(func() []string { return base })

	_, err := l.Launch(t.Context(), model.LaunchRequest{
		OutputPath: "out.db",
		ExtraEnv: map[string]string{
			"job_home":  "$HOME/jobs",
			"CACHE_DIR": "/tmp/cache",
		},
	})
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	cmd := runner.calls[0]
	require.Equal(t, []string{
		"PATH=/usr/bin",
		"HOME=/home/memo",
		"CACHE_DIR=/tmp/cache",
		"MAVEN_OPTS=-Xmx4g",
		"job_home=/home/memo/jobs",
	}, cmd.Env)
	require.Equal(t, time.Minute, cmd.Timeout)
	require.Equal(t, time.Second, cmd.Grace)
	require.Equal(t, []string{"PATH=/usr/bin", "HOME=/home/memo", "MAVEN_OPTS=-Xmx1g"}, base)
	_, set := os.LookupEnv("job_home")
	require.False(t, set)
}

func TestLaunch_Process(t *testing.T) {
	t.Parallel()
	sh := shell(t)
	dir := t.TempDir()
	mkInputs(t, dir, "a.db", "my memo.db", "sub/")

	script := func(body string) model.Tool {
		// $1 is the class, $2 the output and the rest are inputs
		return model.Tool{Path: sh, Args: []string{"-c", body, "job"}}
	}
	job := testJob(dir)
	job.Env = map[string]string{"MAVEN_OPTS": "-Xmx4g"}

	t.Run("arguments and environment", func(t *testing.T) {
		t.Parallel()
		var out strings.Builder
		l := launcher.New(script(`printf '%s\n' "$@"; echo "opts=$MAVEN_OPTS"`), job).WithStdout(&out)
		res, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db", Strict: true})
		require.NoError(t, err)
		require.Equal(t, 0, res.ExitCode)
		want := strings.Join([]string{
			"org.example.Consolidate",
			"out.db",
			filepath.Join(dir, "a.db"),
			filepath.Join(dir, "my memo.db"),
			"opts=-Xmx4g",
		}, "\n") + "\n"
		require.Equal(t, want, string(res.Stdout))
		require.Equal(t, want, out.String())
	})

	t.Run("exit code forwarded", func(t *testing.T) {
		t.Parallel()
		l := launcher.New(script("echo failed 1>&2; exit 3"), job)
		res, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db"})
		require.NoError(t, err)
		require.Equal(t, 3, res.ExitCode)
		require.Equal(t, "failed\n", string(res.Stderr))
	})

	t.Run("strict", func(t *testing.T) {
		t.Parallel()
		l := launcher.New(script("exit 3"), job)
		res, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db", Strict: true})
		require.ErrorIs(t, err, model.ErrToolExecution)
		require.ErrorContains(t, err, "exit code 3")
		require.Equal(t, 3, res.ExitCode)
	})

	t.Run("strict timeout", func(t *testing.T) {
		t.Parallel()
		timed := job
		timed.Timeout = 100 * time.Millisecond
		timed.Grace = 100 * time.Millisecond
		l := launcher.New(script("sleep 10"), timed)
		res, err := l.Launch(t.Context(), model.LaunchRequest{OutputPath: "out.db", Strict: true})
		require.ErrorIs(t, err, model.ErrToolExecution)
		require.ErrorContains(t, err, "timed out")
		require.True(t, res.TimedOut)
		require.Equal(t, -1, res.ExitCode)
	})
}
