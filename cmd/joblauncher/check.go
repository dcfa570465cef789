package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/CZERTAINLY/joblauncher/internal/launcher"
	"github.com/CZERTAINLY/joblauncher/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "check verifies the tool and the input directories of all jobs without launching anything",
		Args:  exactArgs(0),
		RunE:  a.doCheck,
	}
}

func (a *app) doCheck(cmd *cobra.Command, _ []string) error {
	statuses, err := launcher.Check(cmd.Context(), a.config.Tool, a.config.Jobs)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "tool\t%s\t\t\n", a.config.Tool.Path)
	_, _ = fmt.Fprintln(tw, "JOB\tINPUT DIR\tINPUTS\tSTATUS")
	for _, s := range statuses {
		status := "ok"
		if s.Err != nil {
			status = model.Category(s.Err)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Name, s.InputDir, s.Inputs, status)
	}
	if ferr := tw.Flush(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

type configFlags struct {
	effective bool
	write     bool
	force     bool
}

func (a *app) configCmd() *cobra.Command {
	var f configFlags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config prints the default configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.doConfig(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&f.effective, "effective", false, "print the loaded configuration instead of the default")
	flags.BoolVar(&f.write, "write", false, "store the default configuration into "+filepath.Join(a.userConfigPath, configName))
	flags.BoolVar(&f.force, "force", false, "overwrite an existing file with --write")
	return cmd
}

func (a *app) doConfig(cmd *cobra.Command, f configFlags) error {
	config := model.DefaultConfig()
	if f.effective {
		config = a.config
	}
	if !f.write {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(config)
	}

	if a.userConfigPath == "" {
		return errors.New("user config directory is not known")
	}
	path := filepath.Join(a.userConfigPath, configName)
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if f.force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return model.NewError(model.ErrInvalidArgument, path, errors.New("already exists, use --force to overwrite"))
		}
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	enc := yaml.NewEncoder(file)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	slog.InfoContext(cmd.Context(), "configuration stored", "path", path)
	_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
	return err
}
