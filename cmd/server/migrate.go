package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/app"
	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Long: `Create the accounts, resources and reservations tables if they are missing.
Existing tables are compared with the expected shape and reported when they differ.`,
		RunE: runMigrate,
	}

	var email string
	createAdminCmd := &cobra.Command{
		Use:   "create-admin <username>",
		Short: "Create an admin account",
		Long: `Create an admin account. The password is read from ADMIN_PASSWORD or,
when unset, read as one line from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd, args[0], email)
		},
	}
	createAdminCmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	_ = createAdminCmd.MarkFlagRequired("email")

	RootCmd.AddCommand(migrateCmd, createAdminCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := app.Migrate(ctx, st); err != nil {
		log.Error("migration failed", zap.Error(err))
		return err
	}
	return store.Do(ctx, st, func(sess store.Session) error {
		for _, s := range app.Schemas {
			cols, err := sess.Columns(ctx, s.Name)
			if err != nil {
				return err
			}
			names := make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.Name + " " + c.Type
			}
			log.Info("collection ready", zap.String("collection", s.Name), zap.Strings("columns", names))
		}
		return nil
	})
}

func runCreateAdmin(cmd *cobra.Command, username, email string) error {
	ctx := cmd.Context()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		if password, err = readPassword(cmd); err != nil {
			return err
		}
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := app.Migrate(ctx, st); err != nil {
		return err
	}

	svc := account.NewService(st, auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost), log)
	a, err := svc.Register(ctx, account.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     account.RoleAdmin,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", a.Username, a.ID)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
