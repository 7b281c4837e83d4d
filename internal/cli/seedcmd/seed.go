package seedcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	common "github.com/hualuo-tech/datagov/internal/cli/common"
	dbopen "github.com/hualuo-tech/datagov/internal/db"
	"github.com/hualuo-tech/datagov/internal/identity"
	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

// Fixture is the YAML shape `datagov seed` consumes.
type Fixture struct {
	Accounts []struct {
		Username    string `yaml:"username"`
		DisplayName string `yaml:"display_name"`
		Email       string `yaml:"email"`
		Department  string `yaml:"department"`
		Roles       string `yaml:"roles"`
	} `yaml:"accounts"`
	// Templates maps an approval type to its ordered step chain.
	Templates map[string][]struct {
		ApproverRole string `yaml:"approver_role"`
		ApproverDept string `yaml:"approver_dept"`
		ApproverID   string `yaml:"approver_id"`
		Required     *bool  `yaml:"required"`
		Description  string `yaml:"description"`
	} `yaml:"templates"`
}

// New returns the `datagov seed` command: load accounts and approval chains
// from a YAML fixture into the database. Re-running replaces chains and
// skips accounts that already exist.
func New() *cobra.Command {
	var cfgFile, fixtureFile string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed accounts and approval chains from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			common.SetupLogger("info", "console")
			if fixtureFile == "" {
				return fmt.Errorf("--fixture required")
			}
			raw, err := os.ReadFile(fixtureFile)
			if err != nil {
				return err
			}
			var fx Fixture
			if err := yaml.Unmarshal(raw, &fx); err != nil {
				return fmt.Errorf("parse fixture: %w", err)
			}

			dsn := ""
			if cfgFile != "" {
				v, err := common.LoadWithIncludes(cfgFile, nil)
				if err != nil {
					return err
				}
				if sub := v.Sub("server"); sub != nil {
					v = sub
				}
				dsn = v.GetString("db.dsn")
			}
			gdb, err := dbopen.Open(dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := identity.AutoMigrate(gdb); err != nil {
				return err
			}
			if err := template.AutoMigrate(gdb); err != nil {
				return err
			}
			return apply(cmd.Context(), gdb, &fx)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml), for db.dsn")
	cmd.Flags().StringVar(&fixtureFile, "fixture", "", "fixture file (yaml)")
	return cmd
}

func apply(ctx context.Context, gdb *gorm.DB, fx *Fixture) error {
	dir := identity.NewDirectory(gdb)
	for _, acc := range fx.Accounts {
		if acc.Username == "" {
			return fmt.Errorf("account without username in fixture")
		}
		var n int64
		if err := gdb.WithContext(ctx).Model(&identity.Account{}).
			Where("username = ?", acc.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			slog.Info("account exists, skipping", "username", acc.Username)
			continue
		}
		if err := dir.Create(ctx, &identity.Account{
			Username:    acc.Username,
			DisplayName: acc.DisplayName,
			Email:       acc.Email,
			Department:  acc.Department,
			Roles:       acc.Roles,
			Active:      true,
		}); err != nil {
			return fmt.Errorf("create account %s: %w", acc.Username, err)
		}
		slog.Info("account created", "username", acc.Username)
	}

	repo := template.NewRepo(gdb)
	for typ, steps := range fx.Templates {
		at := workflow.ApprovalType(typ)
		if !at.Valid() {
			return fmt.Errorf("unknown approval type %q in fixture", typ)
		}
		chain := make([]*template.Template, 0, len(steps))
		for _, st := range steps {
			required := true
			if st.Required != nil {
				required = *st.Required
			}
			chain = append(chain, &template.Template{
				ApproverRole: st.ApproverRole,
				ApproverDept: st.ApproverDept,
				ApproverID:   st.ApproverID,
				Required:     required,
				Description:  st.Description,
			})
		}
		if err := repo.ReplaceForType(ctx, at, chain); err != nil {
			return fmt.Errorf("install %s chain: %w", typ, err)
		}
		slog.Info("approval chain installed", "type", typ, "steps", len(chain))
	}
	return nil
}
