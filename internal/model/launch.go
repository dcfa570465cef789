package model

import (
	"errors"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// LaunchRequest describes a single invocation of an external job.
type LaunchRequest struct {
	OutputPath     string
	InputDirectory string
	ExtraEnv       map[string]string // child-local, never applied to the calling process
	Strict         bool              // non-zero exit becomes ErrToolExecution
}

// ArgumentList is the ordered sequence forwarded to the external job: the
// output path followed by every input file sorted by name.
type ArgumentList []string

// Output returns the output path or an empty string for an empty list.
func (a ArgumentList) Output() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Inputs returns the input paths without the output path.
func (a ArgumentList) Inputs() []string {
	if len(a) < 2 {
		return nil
	}
	return a[1:]
}

// String renders the list as a single space separated string. Elements
// containing spaces or shell metacharacters are quoted, so the result can be
// split back into the very same list.
func (a ArgumentList) String() string {
	return shellquote.Join(a...)
}

// Joined renders the list as one property string for tools that split it
// again themselves, like exec.args of exec-maven-plugin. Those know single
// and double quotes but no backslash escapes, so an element is quoted as a
// whole. An element containing both quote characters can't be represented.
func (a ArgumentList) Joined() (string, error) {
	quoted := make([]string, len(a))
	for i, arg := range a {
		switch {
		case arg != "" && !strings.ContainsAny(arg, " \t\r\n'\""):
			quoted[i] = arg
		case !strings.Contains(arg, "'"):
			quoted[i] = "'" + arg + "'"
		case !strings.Contains(arg, `"`):
			quoted[i] = `"` + arg + `"`
		default:
			return "", NewError(ErrInvalidArgument, arg, errBothQuotes)
		}
	}
	return strings.Join(quoted, " "), nil
}

var errBothQuotes = errors.New("contains both ' and \", can't be passed as a joined argument")

// LaunchResult is the outcome of one external job invocation.
type LaunchResult struct {
	Argv     []string
	ExitCode int // -1 when the process was terminated by a signal
	Stdout   []byte
	Stderr   []byte
	Started  time.Time
	Stopped  time.Time
	TimedOut bool
}

// Duration is a wall clock time of the invocation.
func (r LaunchResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Stopped.IsZero() {
		return 0
	}
	return r.Stopped.Sub(r.Started)
}
