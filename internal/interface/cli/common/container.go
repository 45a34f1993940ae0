package common

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/di"
)

// InitializeContainer creates a DI container from the resolved runtime.
// Presenter output goes to the command's stdout.
func InitializeContainer(cmd *cobra.Command) (*di.Container, error) {
	rt, err := RuntimeFrom(cmd.Context())
	if err != nil {
		return nil, err
	}

	container, err := di.NewContainer(di.Config{
		Settings:     rt.Settings,
		Logger:       rt.Logger,
		OutputWriter: cmd.OutOrStdout(),
		OutputFormat: rt.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return container, nil
}
