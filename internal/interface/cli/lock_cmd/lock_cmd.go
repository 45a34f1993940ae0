package lock_cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/loanstage/internal/application/service"
	"github.com/YoshitsuguKoike/loanstage/internal/interface/cli/common"
)

// errNoLockTable is returned when leases live in Redis rather than the lock table
var errNoLockTable = errors.New("locks are managed by the redis backend; inspect them in redis")

// NewCommand creates the locks command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Inspect and clean up application locks",
		Long: `Inspect and clean up application locks in the SQLite lock table.

A transition holds its application's lock while it loads, changes and saves
the application. Locks left behind by crashed processes expire after lock_ttl_sec.`,
	}

	cmd.AddCommand(newLockListCmd())
	cmd.AddCommand(newLockCleanupCmd())

	return cmd
}

// withLockService runs fn against the container's lock service
func withLockService(cmd *cobra.Command, fn func(svc *service.LockService) error) error {
	container, err := common.InitializeContainer(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	svc := container.GetLockService()
	if svc == nil {
		return errNoLockTable
	}
	return fn(svc)
}

// newLockListCmd creates the locks list command
func newLockListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List held locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLockService(cmd, func(svc *service.LockService) error {
				locks, err := svc.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list locks: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(locks) == 0 {
					fmt.Fprintln(out, "No active locks found")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "APPLICATION\tPID\tHOSTNAME\tACQUIRED\tEXPIRES IN")
				for _, l := range locks {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
						l.LockID().ApplicationID(),
						l.PID(),
						l.Hostname(),
						l.AcquiredAt().Local().Format("15:04:05"),
						l.RemainingTime().Round(time.Second),
					)
				}
				return w.Flush()
			})
		},
	}
}

// newLockCleanupCmd creates the locks cleanup command
func newLockCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired locks",
		Long:  `Remove expired locks now instead of waiting for the scheduled cleanup in serve.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLockService(cmd, func(svc *service.LockService) error {
				n, err := svc.CleanupExpired(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to clean up locks: %w", err)
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No expired locks found")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired lock(s)\n", n)
				return nil
			})
		},
	}
}
