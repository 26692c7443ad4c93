package main

import (
	"fmt"
	"log/slog"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/iliyamo/invoice-billing/internal/database"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/service"
)

func newMigrateCommand() *cobra.Command {
	flags := commonFlags()
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, db, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := database.Migrate(db); err != nil {
				return err
			}
			slog.Info("schema migrated")
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newCleanupTokensCommand() *cobra.Command {
	flags := commonFlags()
	cmd := &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired refresh tokens and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeDB(db)
			n, err := service.NewAuthService(repository.NewStore(db), cfg).CleanupExpiredTokens(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("expired refresh tokens removed", "count", n)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

const (
	emailFlag     = "email"
	passwordFlag  = "password"
	firstNameFlag = "first-name"
	lastNameFlag  = "last-name"
	accountFlag   = "account-number"
)

// newCreateAdminCommand bootstraps an ADMIN account.  Public registration
// only ever creates customers, so the first admin comes from here.
func newCreateAdminCommand() *cobra.Command {
	flags := commonFlags()
	for _, f := range []*cobraflags.StringFlag{
		{Name: emailFlag, Usage: "Admin email address (required)"},
		{Name: passwordFlag, Usage: "Admin password, at least 6 characters (required)"},
		{Name: firstNameFlag, Value: "System", Usage: "First name"},
		{Name: lastNameFlag, Value: "Admin", Usage: "Last name"},
		{Name: accountFlag, Usage: "Account number (required)"},
	} {
		flags[f.Name] = f
	}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := flags[passwordFlag].GetString()
			if password == "" {
				return fmt.Errorf("--%s is required", passwordFlag)
			}
			cfg, db, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := database.Migrate(db); err != nil {
				return err
			}

			users := service.NewUserService(repository.NewStore(db), cfg.BcryptCost)
			admin, err := users.Create(cmd.Context(), service.RegisterInput{
				Email:         flags[emailFlag].GetString(),
				Password:      password,
				FirstName:     flags[firstNameFlag].GetString(),
				LastName:      flags[lastNameFlag].GetString(),
				AccountNumber: flags[accountFlag].GetString(),
				Role:          model.RoleAdmin,
			})
			if err != nil {
				return err
			}
			slog.Info("admin created", "id", admin.ID, "email", admin.Email)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
