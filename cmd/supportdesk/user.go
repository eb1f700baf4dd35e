package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/storage"
)

// passwordEnv lets scripts pass a password without a terminal
const passwordEnv = "SUPPORTDESK_PASSWORD"

type userAddConfig struct {
	email       string
	displayName string
	cost        int
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage agent accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cfg := &userAddConfig{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an agent account",
		Long: `Create an agent account. The password is read from $` + passwordEnv + `,
or from the first line of standard input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserAdd(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "agent email address")
	cmd.Flags().StringVar(&cfg.displayName, "name", "", "agent display name")
	cmd.Flags().IntVar(&cfg.cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for the password hash")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runUserAdd(cmd *cobra.Command, cfg *userAddConfig) error {
	appCfg, err := loadConfig()
	if err != nil {
		return err
	}

	password, err := readSecret(cmd.InOrStdin(), passwordEnv)
	if err != nil {
		return err
	}

	db, err := storage.InitDB(appCfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := auth.NewService(db, auth.NewBcryptHasher(cfg.cost), nil, auth.Options{}, nil)
	user, err := svc.Register(cmd.Context(), cfg.email, password, cfg.displayName)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	cmd.Printf("Created agent %s (%s)\n", user.Email, user.ID)
	return nil
}
