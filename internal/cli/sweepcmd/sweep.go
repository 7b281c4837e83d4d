package sweepcmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	common "github.com/hualuo-tech/datagov/internal/cli/common"
	dbopen "github.com/hualuo-tech/datagov/internal/db"
	"github.com/hualuo-tech/datagov/internal/workflow/access"
)

// New returns the `datagov sweep` command: revoke expired access grants,
// either once or on an interval. Runs out-of-process so a crashed server
// never leaves grants dangling.
func New() *cobra.Command {
	var (
		cfgFile  string
		watch    bool
		interval time.Duration
		warn     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Revoke expired access grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			common.SetupLogger("info", "console")
			v := viper.New()
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
				if sub := v.Sub("sweeper"); sub != nil {
					v = sub
				}
			}
			dsn := v.GetString("db.dsn")
			gdb, err := dbopen.Open(dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			mgr := access.NewManager(gdb, access.LogGrantor{})
			ctx := cmd.Context()

			if warn > 0 {
				soon, err := mgr.FindExpiringWithin(ctx, warn)
				if err != nil {
					return err
				}
				for _, a := range soon {
					slog.Warn("grant expiring soon", "ref", a.Ref, "requester", a.RequesterID, "expires_at", a.ExpiresAt)
				}
			}

			n, err := mgr.SweepExpired(ctx)
			if err != nil {
				return err
			}
			slog.Info("sweep complete", "revoked", n)
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			access.NewSweeper(mgr, interval).Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep sweeping on an interval")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "sweep interval with --watch")
	cmd.Flags().DurationVar(&warn, "warn-within", 0, "log grants expiring within this window, e.g. 24h")
	return cmd
}
