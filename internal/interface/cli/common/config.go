package common

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/app/config"
)

// Runtime carries what the root command resolved before any subcommand runs
type Runtime struct {
	Settings config.Config
	Logger   *zap.Logger
	Output   string // Effective output format after --output
}

type runtimeKey struct{}

// WithRuntime attaches rt to ctx
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the Runtime attached by the root command
func RuntimeFrom(ctx context.Context) (*Runtime, error) {
	if ctx == nil {
		return nil, errors.New("command has no context")
	}
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}
