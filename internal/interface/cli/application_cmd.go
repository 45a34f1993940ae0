package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/input"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
)

// runWithLoans opens a container for one command and routes failures through the presenter
func runWithLoans(cmd *cobra.Command, fn func(loans input.LoanUseCase, p output.ApplicationPresenter) error) error {
	container, err := common.InitializeContainer(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	p := container.GetPresenter()
	if err := fn(container.GetLoanUseCase(), p); err != nil {
		return reported(p.PresentError(err))
	}
	return nil
}

func newSubmitCmd() *cobra.Command {
	var (
		file string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new loan application",
		Long: `Submit a new loan application from an applicant YAML file.

The application starts in the submitted stage. Use "-" to read the file from stdin.`,
		Example: "  loanstage submit -f applicant.yaml --id APP001",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applicant, err := readApplicant(cmd, file)
			if err != nil {
				return err
			}
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				app, err := loans.Submit(cmd.Context(), dto.SubmitApplicationRequest{ID: id, Applicant: applicant})
				if err != nil {
					return err
				}
				return p.PresentApplication(*app)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Applicant YAML file (required)")
	cmd.Flags().StringVar(&id, "id", "", "Application ID (generated when omitted)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readApplicant(cmd *cobra.Command, path string) (application.Applicant, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return application.Applicant{}, fmt.Errorf("failed to read applicant file: %w", err)
	}

	var applicant application.Applicant
	if err := yaml.Unmarshal(data, &applicant); err != nil {
		return application.Applicant{}, fmt.Errorf("failed to parse applicant file: %w", err)
	}
	return applicant, nil
}

func newTransitionCmd() *cobra.Command {
	var (
		note        string
		actor       string
		expectStage string
	)

	cmd := &cobra.Command{
		Use:   "transition <id> <stage>",
		Short: "Move an application to another stage",
		Long: `Move an application to another stage.

Only the next stage on the main line, or rejected before approval, is allowed.
With --expect-stage the transition fails with a conflict if the application
has moved since it was last seen.`,
		Example: "  loanstage transition APP001 under-review --note \"documents verified\"",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				res, err := loans.Transition(cmd.Context(), dto.TransitionRequest{
					ApplicationID: args[0],
					Target:        args[1],
					Actor:         actor,
					Note:          note,
					ExpectedStage: expectStage,
				})
				if err != nil {
					return err
				}
				return p.PresentTransition(*res)
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note recorded with the transition")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting user (default from settings, $LOANSTAGE_ACTOR or $USER)")
	cmd.Flags().StringVar(&expectStage, "expect-stage", "", "Fail unless the application is currently at this stage")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				app, err := loans.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.PresentApplication(*app)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the transition history of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				res, err := loans.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.PresentHistory(*res)
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var req dto.ListApplicationsRequest

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		Long: `List applications, newest first.

--stage may be repeated or comma-separated. --search matches the application ID
or applicant name, ignoring case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				res, err := loans.List(cmd.Context(), req)
				if err != nil {
					return err
				}
				return p.PresentList(*res)
			})
		},
	}

	cmd.Flags().StringSliceVar(&req.Stages, "stage", nil, "Only applications at these stages")
	cmd.Flags().StringVar(&req.Search, "search", "", "Filter by ID or applicant name")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "Maximum number of applications (0 for all)")
	cmd.Flags().IntVar(&req.Offset, "offset", 0, "Number of applications to skip")
	return cmd
}
