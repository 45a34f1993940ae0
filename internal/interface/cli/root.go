package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	infraConfig "github.com/YoshitsuguKoike/loanstage/internal/infra/config"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/lock_cmd"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/version"
)

type rootOptions struct {
	home    string
	verbose bool
	output  string
}

// NewRoot builds the loanstage command tree
func NewRoot() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "loanstage",
		Short:         "Loan application status tracking",
		Long:          "Track loan applications through their stages, record score overrides and price offers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Priority: --home > $LOANSTAGE_HOME > .loanstage
			home := opts.home
			if home == "" {
				home = infraConfig.ResolveHome()
			}

			// init must run before a setting.json exists
			if cmd.Name() == "init" || cmd.Name() == "version" {
				return nil
			}

			settings, err := infraConfig.LoadSettings(home)
			if err != nil {
				return err
			}

			output := opts.output
			if output == "" {
				output = settings.Output()
			}
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format %q (want text or json)", output)
			}

			logger, err := common.NewLogger(settings.LogLevel(), opts.verbose)
			if err != nil {
				return err
			}

			cmd.SetContext(common.WithRuntime(cmd.Context(), &common.Runtime{
				Settings: settings,
				Logger:   logger,
				Output:   output,
			}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt, err := common.RuntimeFrom(cmd.Context()); err == nil {
				_ = rt.Logger.Sync()
			}
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.PersistentFlags().StringVar(&opts.home, "home", "", "Home directory (default $LOANSTAGE_HOME or .loanstage)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "Output format: text or json (default from settings)")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newTransitionCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newOverrideScoreCmd())
	cmd.AddCommand(newOverridesCmd())
	cmd.AddCommand(newAssessCmd())
	cmd.AddCommand(newOfferCmd())
	cmd.AddCommand(newStagesCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(lock_cmd.NewCommand())
	cmd.AddCommand(version.NewCommand())
	return cmd
}

// reportedError marks an error the presenter has already shown
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Execute runs the root command and prints errors the presenter did not show.
// It returns the error so main can choose the exit code.
func Execute(root *cobra.Command, stderr io.Writer) error {
	err := root.Execute()
	var shown *reportedError
	if err != nil && !errors.As(err, &shown) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}
