package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/CZERTAINLY/joblauncher/internal/launcher"
	"github.com/CZERTAINLY/joblauncher/internal/log"
	"github.com/CZERTAINLY/joblauncher/internal/model"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

type launchFlags struct {
	job      string
	inputDir string
	env      []string
	strict   bool
	timeout  time.Duration
	all      bool
	quiet    bool
}

func (a *app) launchCmd() *cobra.Command {
	var f launchFlags
	cmd := &cobra.Command{
		Use:   "launch OUTPUT",
		Short: "launch runs the configured job with OUTPUT and the files of the input directory",
		Example: `  joblauncher launch memo.db
  joblauncher launch --job cache --input-dir /data/cache --env MAVEN_OPTS=-Xmx8g cache.db`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doLaunch(cmd, f, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.job, "job", "", "job to launch, may be omitted when only one is configured")
	flags.StringVar(&f.inputDir, "input-dir", "", "input directory, overrides the job's input_dir")
	flags.StringArrayVar(&f.env, "env", nil, "KEY=VALUE added to the job environment, can be repeated")
	flags.BoolVar(&f.strict, "strict", false, "fail on a non-zero exit of the job")
	flags.DurationVar(&f.timeout, "timeout", 0, "terminate the job after this duration, overrides the job's timeout")
	flags.BoolVar(&f.all, "all", false, "launch all configured jobs one after another, stop on the first failure")
	flags.BoolVar(&f.quiet, "quiet", false, "do not copy the job output to the terminal")
	return cmd
}

func (a *app) doLaunch(cmd *cobra.Command, f launchFlags, output string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("joblauncher",
		slog.String("cmd", "launch"),
		slog.Int("pid", os.Getpid()),
	))

	extra, err := parseEnv(f.env)
	if err != nil {
		return err
	}

	var jobs []model.Job
	if f.all {
		if f.job != "" || f.inputDir != "" {
			return newUsageError("--all", errors.New("can't be combined with --job or --input-dir"))
		}
		if len(a.config.Jobs) == 0 {
			return model.NewError(model.ErrInvalidArgument, "job", errors.New("no job configured"))
		}
		jobs = a.config.Jobs
	} else {
		job, err := a.config.Job(f.job)
		if err != nil {
			return err
		}
		jobs = []model.Job{job}
	}

	for _, job := range jobs {
		if cmd.Flags().Changed("timeout") {
			job.Timeout = f.timeout
		}
		l := launcher.New(a.config.Tool, job)
		if !f.quiet {
			l = l.WithStdout(cmd.OutOrStdout()).WithStderr(cmd.ErrOrStderr())
		}

		res, err := l.Launch(ctx, model.LaunchRequest{
			OutputPath:     output,
			InputDirectory: f.inputDir,
			ExtraEnv:       extra,
			Strict:         f.strict || job.Strict,
		})
		if err != nil {
			return err
		}

		if res.ExitCode != 0 {
			code := res.ExitCode
			if code < 0 {
				code = model.ExitToolExecution
			}
			slog.WarnContext(ctx, "job failed", "job", job.Name, "exit_code", res.ExitCode)
			a.exitCode = code
			return nil
		}
	}
	return nil
}

type argsFlags struct {
	job      string
	inputDir string
	command  bool
}

func (a *app) argsCmd() *cobra.Command {
	var f argsFlags
	cmd := &cobra.Command{
		Use:   "args OUTPUT",
		Short: "args prints the argument string of a job without launching it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doArgs(cmd, f, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.job, "job", "", "job to use, may be omitted when only one is configured")
	flags.StringVar(&f.inputDir, "input-dir", "", "input directory, overrides the job's input_dir")
	flags.BoolVar(&f.command, "command", false, "print the whole command line of the tool")
	return cmd
}

func (a *app) doArgs(cmd *cobra.Command, f argsFlags, output string) error {
	job, err := a.config.Job(f.job)
	if err != nil {
		return err
	}
	dir := f.inputDir
	if dir == "" {
		dir = job.InputDir
	}

	list, err := launcher.BuildArguments(cmd.Context(), output, dir)
	if err != nil {
		return err
	}

	argv, err := launcher.New(a.config.Tool, job).Argv(list)
	if err != nil {
		return err
	}
	line := list.String()
	switch {
	case f.command:
		line = shellquote.Join(append([]string{a.config.Tool.Path}, argv...)...)
	case job.ArgsStyle == model.ArgsJoined:
		line, _ = list.Joined()
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
	return err
}

// parseEnv parses repeated KEY=VALUE flags
func parseEnv(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, newUsageError("--env", fmt.Errorf("%q: expected KEY=VALUE", kv))
		}
		env[k] = v
	}
	return env, nil
}
