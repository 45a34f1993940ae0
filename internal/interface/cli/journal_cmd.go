package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/loanstage/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/notification"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
)

var errJournalDisabled = errors.New("the transition journal is disabled (journal_path is empty)")

func newJournalCmd() *cobra.Command {
	var applicationID string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the transition journal",
		Long: `Show every transition recorded in the append-only journal, oldest first.

Unlike history, the journal spans all applications and survives store changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := common.RuntimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			path := rt.Settings.JournalPath()
			if path == "" {
				return errJournalDisabled
			}

			events, err := notification.ReadJournal(path, applicationID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rt.Output == "json" {
				return presenter.NewJSONPresenter(out).PresentSuccess("journal", events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "Journal is empty.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tAPPLICATION\tFROM\tTO\tACTOR")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.ApplicationID, e.From, e.To, e.Actor)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&applicationID, "application", "", "Only show transitions of this application")
	return cmd
}
