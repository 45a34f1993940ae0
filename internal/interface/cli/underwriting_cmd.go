package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/input"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

func newOverrideScoreCmd() *cobra.Command {
	var (
		reason string
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "override-score <id> <score>",
		Short: "Record a manual credit score override",
		Long: `Record a manual credit score override.

Overrides are appended to the application's ledger and never edited. The latest
override replaces the bureau score in assessments and offers.`,
		Example: "  loanstage override-score APP001 705 --reason \"bureau report mismatch\"",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[1], err)
			}
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				o, err := loans.OverrideScore(cmd.Context(), dto.OverrideScoreRequest{
					ApplicationID: args[0],
					NewScore:      score,
					Reason:        reason,
					Actor:         actor,
				})
				if err != nil {
					return err
				}
				return p.PresentOverrides(args[0], []dto.ScoreOverrideDTO{*o})
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the score is overridden (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting user (default from settings, $LOANSTAGE_ACTOR or $USER)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newOverridesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overrides <id>",
		Short: "List score overrides of an application, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				overrides, err := loans.ListOverrides(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.PresentOverrides(args[0], overrides)
			})
		},
	}
}

func newAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess <id>",
		Short: "Run the credit assessment for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				res, err := loans.Assess(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.PresentAssessment(*res)
			})
		},
	}
}

func newOfferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offer <id>",
		Short: "Price a loan offer for an approved application",
		Long: `Price a loan offer for an approved application.

The offer is computed only; record it with "transition <id> offer-generated".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithLoans(cmd, func(loans input.LoanUseCase, p output.ApplicationPresenter) error {
				res, err := loans.GenerateOffer(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.PresentOffer(*res)
			})
		},
	}
}
