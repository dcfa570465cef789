package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/CZERTAINLY/joblauncher/internal/log"
	"github.com/CZERTAINLY/joblauncher/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

const (
	configName = "joblauncher.yaml"
	configEnv  = "JOBLAUNCHERCONFIG"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app holds the state shared by all commands of one invocation
type app struct {
	stdout io.Writer
	stderr io.Writer

	userConfigPath string // /default/config/path/joblauncher on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	closeLog       func() error
	logStderr      bool // structured log goes to stderr

	exitCode int // forwarded exit code of the child

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout:    stdout,
		stderr:    stderr,
		closeLog:  func() error { return nil },
		logStderr: true,
	}
	if d, err := os.UserConfigDir(); err == nil {
		a.userConfigPath = filepath.Join(d, "joblauncher")
	}

	// logging until the configuration is parsed
	slog.SetDefault(log.New(stderr, false))

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	defer func() {
		_ = a.closeLog()
	}()

	if err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			_, _ = fmt.Fprint(stdout, cmd.UsageString())
		}
		a.fail(err)
		return model.ExitCode(err)
	}
	return a.exitCode
}

// fail reports err as one plain line on stderr. A log configured away from
// stderr gets the structured record too.
func (a *app) fail(err error) {
	msg := strings.ReplaceAll(err.Error(), "\n", "; ")
	if !a.logStderr {
		slog.Error("joblauncher failed", "category", model.Category(err), "error", msg)
	}
	_, _ = fmt.Fprintf(a.stderr, "joblauncher: %s: %s\n", model.Category(err), msg)
}

// usageError makes the failing command print its usage
type usageError struct {
	error
}

func (e usageError) Unwrap() error {
	return e.error
}

func newUsageError(subject string, err error) error {
	return usageError{model.NewError(model.ErrInvalidArgument, subject, err)}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return newUsageError("arguments", fmt.Errorf("accepts %d arg(s), received %d", n, len(args)))
		}
		return nil
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "joblauncher",
		Short:             "Launcher of external batch jobs over the files of an input directory",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initLauncher,
	}
	root.PersistentFlags().StringVar(&a.flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in current directory or in "+a.userConfigPath)
	root.PersistentFlags().BoolVar(&a.flagVerbose, "verbose", false, "verbose logging")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newUsageError("flags", err)
	})

	root.AddCommand(a.launchCmd())
	root.AddCommand(a.argsCmd())
	root.AddCommand(a.checkCmd())
	root.AddCommand(a.configCmd())
	root.AddCommand(a.versionCmd())
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "version provide version of a joblauncher",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			info, ok := debug.ReadBuildInfo()
			if !ok {
				_, _ = fmt.Fprintln(w, "joblauncher: version info not available")
				return
			}

			if a.configPath != "" {
				_, _ = fmt.Fprintf(w, "config:      %s\n", a.configPath)
			}
			_, _ = fmt.Fprintf(w, "joblauncher: %s\n", info.Main.Version)
			_, _ = fmt.Fprintf(w, "go:          %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					_, _ = fmt.Fprintf(w, "commit:      %s\n", s.Value)
				case "vcs.time":
					_, _ = fmt.Fprintf(w, "date:        %s\n", s.Value)
				case "vcs.modified":
					_, _ = fmt.Fprintf(w, "dirty:       %s\n", s.Value)
				}
			}
		},
	}
}

func (a *app) initLauncher(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv(configEnv); ok && envConfig != "" {
		a.configPath = envConfig
	} else if a.flagConfigFilePath != "" {
		a.configPath = a.flagConfigFilePath
	} else {
		dirs := []string{"."}
		if a.userConfigPath != "" {
			dirs = []string{a.userConfigPath, "."}
		}
		for _, d := range dirs {
			path := filepath.Join(d, configName)
			if exists(path) {
				a.configPath = path
				break
			}
		}
	}

	var err error
	if a.configPath == "" {
		// built-in default, still subject to the environment overrides
		var buf bytes.Buffer
		if err = yaml.NewEncoder(&buf).Encode(model.DefaultConfig()); err != nil {
			return fmt.Errorf("encoding default configuration: %w", err)
		}
		a.config, err = model.LoadConfig(&buf)
	} else {
		var f *os.File
		f, err = os.Open(a.configPath)
		if err != nil {
			return model.NewError(model.ErrInvalidArgument, a.configPath, fmt.Errorf("opening config file: %w", err))
		}
		defer func() {
			_ = f.Close()
		}()
		a.config, err = model.LoadConfig(f)
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", a.configPath, err)
	}

	// --verbose has a precedence over config file
	if a.flagVerbose {
		a.config.Service.Verbose = true
	}

	// initialize logging
	w, closeLog, err := log.Output(a.config.Service.Log, a.stdout, a.stderr)
	if err != nil {
		return model.NewError(model.ErrInvalidArgument, "service.log", err)
	}
	a.closeLog = closeLog
	a.logStderr = w == a.stderr
	slog.SetDefault(log.New(w, a.config.Service.Verbose))

	slog.DebugContext(cmd.Context(), "joblauncher run", "configPath", a.configPath)
	slog.DebugContext(cmd.Context(), "joblauncher run", "config", a.config)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
