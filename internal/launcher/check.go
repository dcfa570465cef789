package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/CZERTAINLY/joblauncher/internal/model"
	"golang.org/x/sync/errgroup"
)

const checkLimit = 4

// JobStatus is the preflight state of one configured job.
type JobStatus struct {
	Name     string
	InputDir string
	Inputs   int
	Err      error
}

// Check verifies every job's input directory and the tool resolution without
// spawning anything. The statuses follow the order of jobs, the returned
// error joins all problems found.
func Check(ctx context.Context, tool model.Tool, jobs []model.Job) ([]JobStatus, error) {
	var errs []error
	if _, err := exec.LookPath(tool.Path); err != nil {
		errs = append(errs, model.NewError(model.ErrToolNotFound, tool.Path, err))
	}

	statuses := make([]JobStatus, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkLimit)
	for i, job := range jobs {
		g.Go(func() error {
			inputs, err := listInputs(gctx, job.InputDir)
			status := JobStatus{
				Name:     job.Name,
				InputDir: job.InputDir,
				Inputs:   len(inputs),
				Err:      err,
			}
			if err != nil {
				slog.DebugContext(gctx, "job check failed", "job", job.Name, "error", err)
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait() // goroutines do not return an error

	for _, status := range statuses {
		if status.Err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", status.Name, status.Err))
		}
	}
	return statuses, errors.Join(errs...)
}
