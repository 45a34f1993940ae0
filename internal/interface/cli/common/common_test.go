package common

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/app/config"
)

func TestRuntimeFrom(t *testing.T) {
	_, err := RuntimeFrom(context.Background())
	assert.Error(t, err)

	rt := &Runtime{Output: "json"}
	got, err := RuntimeFrom(WithRuntime(context.Background(), rt))
	require.NoError(t, err)
	assert.Same(t, rt, got)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		debug   bool
		wantErr bool
	}{
		{name: "info", level: "info"},
		{name: "verbose wins", level: "error", verbose: true, debug: true},
		{name: "debug", level: "debug", debug: true},
		{name: "invalid", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.verbose)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestInitializeContainer(t *testing.T) {
	home := t.TempDir()
	settings := config.NewAppConfig(config.Values{
		Home:                home,
		Store:               "sqlite",
		DBPath:              filepath.Join(home, "loanstage.db"),
		LockBackend:         "sqlite",
		LockTTLSec:          30,
		LockWaitMs:          100,
		LockCleanupSchedule: "@every 1m",
		NotifyBuffer:        4,
		Output:              "text",
	})

	cmd := &cobra.Command{}
	_, err := InitializeContainer(cmd)
	assert.Error(t, err, "no runtime attached")

	cmd.SetContext(WithRuntime(context.Background(), &Runtime{Settings: settings, Logger: zap.NewNop(), Output: "json"}))
	container, err := InitializeContainer(cmd)
	require.NoError(t, err)
	defer container.Close()
	assert.NotNil(t, container.GetLoanUseCase())
}
