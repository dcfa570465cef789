// human readable forms of stdlib types
// which are written into a config file
package model

import "time"

// jobYAML is Job with durations as strings, so the written
// configuration reads "10s" and not a number of nanoseconds
type jobYAML struct {
	Name      string            `yaml:"name"`
	Class     string            `yaml:"class"`
	InputDir  string            `yaml:"input_dir"`
	Env       map[string]string `yaml:"env,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty"`
	Grace     string            `yaml:"grace,omitempty"`
	Strict    bool              `yaml:"strict,omitempty"`
	ArgsStyle string            `yaml:"args_style,omitempty"`
}

func (j Job) MarshalYAML() (any, error) {
	return jobYAML{
		Name:      j.Name,
		Class:     j.Class,
		InputDir:  j.InputDir,
		Env:       j.Env,
		Timeout:   humanDuration(j.Timeout),
		Grace:     humanDuration(j.Grace),
		Strict:    j.Strict,
		ArgsStyle: j.ArgsStyle,
	}, nil
}

func humanDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
