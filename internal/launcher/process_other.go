//go:build !unix

package launcher

import (
	"os"
	"os/exec"
	"syscall"
)

const (
	sigTerm = syscall.SIGTERM
	sigKill = syscall.SIGKILL
)

func setProcessGroup(_ *exec.Cmd) {}

// signalGroup kills p, there are no process groups nor SIGTERM delivery here.
func signalGroup(p *os.Process, _ syscall.Signal) error {
	if p == nil {
		return os.ErrProcessDone
	}
	return p.Kill()
}
