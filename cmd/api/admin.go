package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

var adminFlags struct {
	username string
	email    string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE:  runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.username, "username", "admin", "admin username")
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "admin@example.com", "admin email")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := persistence.RunMigrations(ctx, rt.pg.Pool, rt.logger); err != nil {
		return err
	}

	authService := service.NewAuthService(rt.cfg.Auth, service.AuthDependencies{
		UserRepo: repository.NewUserRepository(rt.pg.Pool),
		Tokens:   auth.NewTokenManager(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.AccessTokenTTL()),
		Logger:   rt.logger,
	})

	user, err := authService.CreateUser(ctx, adminFlags.username, adminFlags.email, adminFlags.password, domain.RoleAdmin)
	if err != nil {
		return err
	}
	rt.logger.Info("admin created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return nil
}
