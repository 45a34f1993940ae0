package cli

import (
	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/loanstage/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/service"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
)

type stageJSON struct {
	Stage    string   `json:"stage"`
	Label    string   `json:"label"`
	Tone     string   `json:"tone"`
	Progress float64  `json:"progress"`
	Next     []string `json:"next"`
	Terminal bool     `json:"terminal"`
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List every stage with its label and allowed next stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := common.RuntimeFrom(cmd.Context())
			if err != nil {
				return err
			}

			stages := model.AllStages()
			if rt.Output == "json" {
				out := make([]stageJSON, 0, len(stages))
				for _, s := range stages {
					next := make([]string, 0, 2)
					for _, n := range s.Successors() {
						next = append(next, n.String())
					}
					out = append(out, stageJSON{
						Stage:    s.String(),
						Label:    s.Label(),
						Tone:     string(s.Tone()),
						Progress: service.StageProgress(s),
						Next:     next,
						Terminal: s.IsTerminal(),
					})
				}
				return presenter.NewJSONPresenter(cmd.OutOrStdout()).PresentSuccess("stages", out)
			}

			rows := make([]presenter.StageRow, 0, len(stages))
			for _, s := range stages {
				rows = append(rows, presenter.StageRow{Stage: s, Progress: service.StageProgress(s)})
			}
			return presenter.PresentStages(cmd.OutOrStdout(), rows)
		},
	}
}
