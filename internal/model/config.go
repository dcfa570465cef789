package model

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	// ArgsVector passes every argument as a separate argv element
	ArgsVector = "vector"
	// ArgsJoined passes all arguments as a single quoted argv element
	ArgsJoined = "joined"

	DefaultGrace = 10 * time.Second

	// EnvPrefix is a prefix of environment variables overriding the config file,
	// e.g. JOBLAUNCHER_TOOL_PATH
	EnvPrefix = "JOBLAUNCHER"
)

type Config struct {
	Version int     `yaml:"version" mapstructure:"version"` // fixed 0 for now
	Service Service `yaml:"service" mapstructure:"service"`
	Tool    Tool    `yaml:"tool" mapstructure:"tool"`
	Jobs    []Job   `yaml:"jobs" mapstructure:"jobs"`
}

// Service configures the launcher itself.
type Service struct {
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Log     string `yaml:"log" mapstructure:"log"` // "stderr"|"stdout"|"discard"|path
}

// Tool is the external build tool executing the job classes.
type Tool struct {
	Path        string   `yaml:"path" mapstructure:"path"` // path or name (e.g. mvn)
	Args        []string `yaml:"args,omitempty" mapstructure:"args"`
	ClassPrefix string   `yaml:"class_prefix" mapstructure:"class_prefix"` // e.g. -Dexec.mainClass=
	ArgsPrefix  string   `yaml:"args_prefix" mapstructure:"args_prefix"`   // joined style only, e.g. -Dexec.args=
}

// Job is one external job class together with its input directory.
type Job struct {
	Name      string            `yaml:"name" mapstructure:"name"`
	Class     string            `yaml:"class" mapstructure:"class"`
	InputDir  string            `yaml:"input_dir" mapstructure:"input_dir"`
	Env       map[string]string `yaml:"env,omitempty" mapstructure:"env"`
	Timeout   time.Duration     `yaml:"timeout,omitempty" mapstructure:"timeout"` // 0 means no timeout
	Grace     time.Duration     `yaml:"grace,omitempty" mapstructure:"grace"`     // SIGTERM to SIGKILL delay
	Strict    bool              `yaml:"strict,omitempty" mapstructure:"strict"`
	ArgsStyle string            `yaml:"args_style,omitempty" mapstructure:"args_style"` // "vector"|"joined"
}

// DefaultConfig runs the memoization database consolidation through maven.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Service: Service{
			Log: LogStderr,
		},
		Tool: Tool{
			Path:        "mvn",
			Args:        []string{"-q", "exec:java"},
			ClassPrefix: "-Dexec.mainClass=",
			ArgsPrefix:  "-Dexec.args=",
		},
		Jobs: []Job{
			{
				Name:      "consolidate",
				Class:     "be.kuleuven.cs.flexsim.experimentation.tosg.utils.DBConsolidatorRunner",
				InputDir:  "consolidation",
				Env:       map[string]string{"MAVEN_OPTS": "-Xmx4g"},
				Grace:     DefaultGrace,
				ArgsStyle: ArgsJoined,
			},
		},
	}
}

// LoadConfig reads YAML from r, applies JOBLAUNCHER_* environment overrides
// and validates the result. A nil reader yields the defaults of the
// service and tool sections with no jobs.
func LoadConfig(r io.Reader) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("service.verbose", def.Service.Verbose)
	v.SetDefault("service.log", def.Service.Log)
	v.SetDefault("tool.path", def.Tool.Path)
	v.SetDefault("tool.args", def.Tool.Args)
	v.SetDefault("tool.class_prefix", def.Tool.ClassPrefix)
	v.SetDefault("tool.args_prefix", def.Tool.ArgsPrefix)

	if r != nil {
		if err := v.ReadConfig(r); err != nil {
			return Config{}, NewError(ErrInvalidArgument, "config", err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, NewError(ErrInvalidArgument, "config", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills job defaults. viper lowercases map keys, so environment
// variable names are upper cased back.
func (c *Config) normalize() {
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if job.ArgsStyle == "" {
			job.ArgsStyle = ArgsVector
		}
		if job.Grace == 0 {
			job.Grace = DefaultGrace
		}
		if len(job.Env) == 0 {
			continue
		}
		env := make(map[string]string, len(job.Env))
		for k, v := range job.Env {
			env[strings.ToUpper(k)] = v
		}
		job.Env = env
	}
}

// Validate reports all problems of a configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.Version != 0 {
		errs = append(errs, fmt.Errorf("version %d is not supported, expected 0", c.Version))
	}
	if c.Tool.Path == "" {
		errs = append(errs, errors.New("tool.path is required"))
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i, job := range c.Jobs {
		prefix := fmt.Sprintf("jobs[%d]", i)
		if job.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			prefix = fmt.Sprintf("jobs[%s]", job.Name)
			if _, ok := seen[job.Name]; ok {
				errs = append(errs, fmt.Errorf("%s: duplicate job name", prefix))
			}
			seen[job.Name] = struct{}{}
		}
		if job.Class == "" {
			errs = append(errs, fmt.Errorf("%s.class is required", prefix))
		}
		if job.InputDir == "" {
			errs = append(errs, fmt.Errorf("%s.input_dir is required", prefix))
		}
		switch job.ArgsStyle {
		case "", ArgsVector, ArgsJoined:
		default:
			errs = append(errs, fmt.Errorf("%s.args_style %q: possible values (%s,%s)", prefix, job.ArgsStyle, ArgsVector, ArgsJoined))
		}
		if job.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout must not be negative", prefix))
		}
		if job.Grace < 0 {
			errs = append(errs, fmt.Errorf("%s.grace must not be negative", prefix))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return NewError(ErrInvalidArgument, "config", errors.Join(errs...))
}

// Job returns a job by name. An empty name selects the only configured job.
func (c Config) Job(name string) (Job, error) {
	if name == "" {
		switch len(c.Jobs) {
		case 0:
			return Job{}, NewError(ErrInvalidArgument, "job", errors.New("no job configured"))
		case 1:
			return c.Jobs[0], nil
		default:
			return Job{}, NewError(ErrInvalidArgument, "job", fmt.Errorf("%d jobs configured, select one with --job", len(c.Jobs)))
		}
	}
	for _, job := range c.Jobs {
		if job.Name == name {
			return job, nil
		}
	}
	return Job{}, NewError(ErrInvalidArgument, name, errors.New("job not configured"))
}
