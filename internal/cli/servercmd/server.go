package servercmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	auditchain "github.com/hualuo-tech/datagov/internal/audit/chain"
	"github.com/hualuo-tech/datagov/internal/auth/rbac"
	jwt "github.com/hualuo-tech/datagov/internal/auth/token"
	"github.com/hualuo-tech/datagov/internal/catalog"
	common "github.com/hualuo-tech/datagov/internal/cli/common"
	dbopen "github.com/hualuo-tech/datagov/internal/db"
	"github.com/hualuo-tech/datagov/internal/identity"
	"github.com/hualuo-tech/datagov/internal/notify"
	httpserver "github.com/hualuo-tech/datagov/internal/server/http"
	"github.com/hualuo-tech/datagov/internal/telemetry"
	"github.com/hualuo-tech/datagov/internal/workflow/access"
	"github.com/hualuo-tech/datagov/internal/workflow/approval"
	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

// New returns the `datagov server` command.
func New() *cobra.Command {
	var cfgFile, profile string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the governance portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			common.SetupLogger("info", "console")
			v := viper.GetViper()
			v.SetEnvPrefix("DATAGOV_SERVER")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
			v.AutomaticEnv()
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					slog.Warn("read config", "error", err)
				} else {
					slog.Info("config loaded", "file", v.ConfigFileUsed())
				}
				var err error
				if v, err = common.ApplySectionAndProfile(v, "server", profile); err != nil {
					// flat configs without a server: section are fine
					if profile != "" {
						return err
					}
					v = viper.GetViper()
				}
			}
			common.MergeLogSection(v)
			common.SetupLoggerWithFile(
				v.GetString("log.level"),
				v.GetString("log.format"),
				v.GetString("log.file"),
				v.GetInt("log.max_size"),
				v.GetInt("log.max_backups"),
				v.GetInt("log.max_age"),
				v.GetBool("log.compress"),
			)
			if err := common.ValidateServerConfig(v, false); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			return run(cmd.Context(), v)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml), e.g. configs/datagov.yaml")
	cmd.Flags().StringVar(&profile, "profile", "", "config profile overlay, e.g. prod")
	cmd.Flags().String("http_addr", ":8080", "http api listen address")
	cmd.Flags().String("db.dsn", "", "database DSN; postgres://... or a sqlite path (default data/datagov.db)")
	cmd.Flags().String("jwt_secret", "dev-secret", "jwt hs256 secret")
	cmd.Flags().String("audit_log", "logs/audit.log", "hash-chained audit log path")
	cmd.Flags().String("rbac.model", "", "casbin model file (optional)")
	cmd.Flags().String("rbac.policy", "", "casbin policy file (optional)")
	cmd.Flags().String("notify.driver", "noop", "event sink: noop|redis|kafka")
	cmd.Flags().String("notify.url", "", "redis URL for the redis driver")
	cmd.Flags().String("notify.brokers", "", "kafka brokers, comma separated")
	cmd.Flags().String("notify.topic", "", "kafka topic / redis stream (driver default when empty)")
	cmd.Flags().String("telemetry.endpoint", "", "OTLP/HTTP endpoint; empty disables telemetry")
	cmd.Flags().Bool("telemetry.insecure", true, "plain-HTTP OTLP exporter")
	cmd.Flags().String("sweep.interval", "5m", "expired-grant sweep interval")
	_ = viper.BindPFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := dbopen.Open(v.GetString("db.dsn"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	prov, err := telemetry.New(ctx, telemetry.Config{
		Endpoint:    v.GetString("telemetry.endpoint"),
		ServiceName: "datagov",
		Insecure:    v.GetBool("telemetry.insecure"),
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewWorkflowMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	aw, err := auditchain.NewWriter(v.GetString("audit_log"))
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer aw.Close()

	var pol rbac.PolicyInterface
	if model := v.GetString("rbac.model"); model != "" {
		cp, err := rbac.NewCasbinPolicy(model, v.GetString("rbac.policy"))
		if err != nil {
			return fmt.Errorf("casbin policy: %w", err)
		}
		pol = cp
	} else {
		fallback := rbac.NewPolicy()
		for role, perms := range rbac.RoleGrants {
			for _, perm := range perms {
				fallback.Grant("role:"+role, perm)
			}
		}
		pol = fallback
		slog.Info("rbac: using built-in role grants (configure rbac.model for casbin)")
	}

	directory := identity.NewDirectory(gdb)
	tplRepo := template.NewRepo(gdb)
	eng := approval.NewEngine(gdb, tplRepo, directory)

	sink := notify.New(notify.Config{
		Driver:  v.GetString("notify.driver"),
		URL:     v.GetString("notify.url"),
		Brokers: v.GetString("notify.brokers"),
		Topic:   v.GetString("notify.topic"),
	})
	defer sink.Close()
	eng.SetSink(sink)

	mgr := access.NewManager(gdb, access.LogGrantor{})
	eng.SetActivator(mgr)

	interval, _ := time.ParseDuration(v.GetString("sweep.interval"))
	sweeper := access.NewSweeper(mgr, interval)
	sweeper.OnRevoked(metrics.Revoked)
	go sweeper.Run(ctx)

	srv := httpserver.NewServer(httpserver.Options{
		DB:        gdb,
		Engine:    eng,
		Templates: tplRepo,
		Access:    mgr,
		Catalog:   catalog.NewStore(gdb),
		Identity:  directory,
		RBAC:      pol,
		JWT:       jwt.NewManager(v.GetString("jwt_secret")),
		Audit:     aw,
		Metrics:   metrics,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(v.GetString("http_addr")) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := prov.Shutdown(shCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	return nil
}

func migrate(gdb *gorm.DB) error {
	for _, fn := range []func(*gorm.DB) error{
		identity.AutoMigrate,
		template.AutoMigrate,
		approval.AutoMigrate,
		catalog.AutoMigrate,
	} {
		if err := fn(gdb); err != nil {
			return err
		}
	}
	return nil
}
