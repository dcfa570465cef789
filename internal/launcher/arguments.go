package launcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/CZERTAINLY/joblauncher/internal/model"
	"github.com/CZERTAINLY/joblauncher/internal/walk"
)

var errNotDirectory = errors.New("not a directory")

// BuildArguments returns outputPath followed by every non-directory entry
// directly under inputDirectory, sorted by name. Entries are joined with
// inputDirectory, so "." yields bare file names.
func BuildArguments(ctx context.Context, outputPath, inputDirectory string) (model.ArgumentList, error) {
	if err := checkOutput(outputPath); err != nil {
		return nil, err
	}

	inputs, err := listInputs(ctx, inputDirectory)
	if err != nil {
		return nil, err
	}

	args := make(model.ArgumentList, 0, len(inputs)+1)
	args = append(args, outputPath)
	args = append(args, inputs...)
	return args, nil
}

func checkOutput(outputPath string) error {
	if strings.TrimSpace(outputPath) == "" {
		return model.NewError(model.ErrInvalidArgument, "output path", errors.New("must not be empty"))
	}
	return nil
}

func listInputs(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		return nil, model.NewError(model.ErrInvalidArgument, "input directory", errors.New("must not be empty"))
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, dirError(dir, err)
	}
	if !info.IsDir() {
		return nil, model.NewError(model.ErrDirectoryNotFound, dir, errNotDirectory)
	}

	var inputs []string
	for entry, err := range walk.Dir(ctx, os.DirFS(dir), dir) {
		if err != nil {
			if entry == nil {
				return nil, dirError(dir, err)
			}
			slog.WarnContext(ctx, "skipping unreadable input", "path", entry.Path(), "error", err)
			continue
		}
		inputs = append(inputs, entry.Path())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.Sort(inputs)
	return inputs, nil
}

func dirError(dir string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return model.NewError(model.ErrDirectoryNotFound, dir, err)
	default:
		return model.NewError(model.ErrDirectoryNotReadable, dir, err)
	}
}
