package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
	api "github.com/YoshitsuguKoike/loanstage/internal/interface/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with metrics and scheduled lock cleanup",
		Long: `Serve the HTTP API under /api/v1, plus /healthz and /metrics.

The process also runs the expired-lock cleanup schedule and drains pending
notifications on shutdown (SIGINT or SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := common.RuntimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = rt.Settings.HTTPAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}
			return serve(ctx, cmd, lis)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from settings http_addr)")
	return cmd
}

// serve runs until ctx is cancelled or the server fails
func serve(ctx context.Context, cmd *cobra.Command, lis net.Listener) error {
	container, err := common.InitializeContainer(cmd)
	if err != nil {
		lis.Close()
		return err
	}
	defer container.Close()

	logger := container.GetLogger().Named("serve")

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(
		api.NewHandler(container.GetLoanUseCase(), logger),
		container.GetMetrics(),
		logger,
	)
	server := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := container.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server starting", zap.String("addr", lis.Addr().String()))
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
