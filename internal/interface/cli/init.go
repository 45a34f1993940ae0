package cli

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	infraConfig "github.com/YoshitsuguKoike/loanstage/internal/infra/config"
)

//go:embed templates/applicant.yaml.tmpl
var applicantTmpl string

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the home directory with default settings and a sample applicant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := opts.home
			if home == "" {
				home = infraConfig.ResolveHome()
			}
			if err := os.MkdirAll(home, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", home, err)
			}

			files := []struct {
				path string
				data []byte
			}{
				{filepath.Join(home, "setting.json"), infraConfig.CreateDefaultSettings(home)},
				{filepath.Join(home, "applicant.example.yaml"), []byte(applicantTmpl)},
			}

			out := cmd.OutOrStdout()
			for _, f := range files {
				created, err := writeIfNotExists(f.path, f.data)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "  created %s\n", f.path)
				} else {
					fmt.Fprintf(out, "  kept    %s\n", f.path)
				}
			}
			fmt.Fprintf(out, "Initialized %s\n", home)
			return nil
		},
	}
}

// writeIfNotExists never overwrites an existing file
func writeIfNotExists(path string, b []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
