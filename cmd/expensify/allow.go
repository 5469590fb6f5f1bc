package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperclay/expensify/internal/config"
	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
	"github.com/harperclay/expensify/internal/storage"
)

func allowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allow",
		Short: "Manage the sign-in allow-list",
		Long: `Provision the allow-list that gates sign-in. The application itself never
writes these entries; this command is the administrator's out-of-band path
directly into the store. Entries are keyed by the exact email address the
identity provider reports.`,
	}

	cmd.AddCommand(allowAddCmd())
	cmd.AddCommand(allowRemoveCmd())
	cmd.AddCommand(allowListCmd())

	return cmd
}

func allowAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Allow an email address to sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleFlag, _ := cmd.Flags().GetString("role")
			role, ok := model.ParseRole(roleFlag)
			if !ok {
				return fmt.Errorf("invalid role %q (want user or admin)", roleFlag)
			}

			ctx := cmd.Context()
			store, err := initAllowListStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			entry := model.AllowListEntry{Email: args[0], Role: role}
			if err := store.PutAllowListEntry(ctx, entry); err != nil {
				return fmt.Errorf("failed to add allow-list entry: %w", err)
			}

			fmt.Printf("Allowed %s as %s\n", entry.Email, entry.Role)
			return nil
		},
	}

	cmd.Flags().String("role", "user", "role to grant (user or admin)")

	return cmd
}

func allowRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <email>",
		Short: "Remove an email address from the allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initAllowListStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.DeleteAllowListEntry(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove allow-list entry: %w", err)
			}

			fmt.Printf("Removed %s\n", args[0])
			fmt.Println("Note: existing profiles are kept; the user is denied on next sign-in.")
			return nil
		},
	}
}

func allowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all allow-list entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initAllowListStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			entries, err := store.ListAllowListEntries(ctx)
			if err != nil {
				return fmt.Errorf("failed to list allow-list entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No allow-list entries. Use 'expensify allow add' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "Email\tRole\n")
			fmt.Fprintf(w, "%s\t%s\n", strings.Repeat("-", 30), strings.Repeat("-", 6))
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.Email, e.Role)
			}
			return nil
		},
	}
}

func initAllowListStorage(ctx context.Context) (service.Storage, error) {
	mongoCfg, err := config.LoadMongoConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewMongoStorage(ctx, mongoCfg.URI, mongoCfg.Database)
}

func closeStorage(store service.Storage) {
	if err := store.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close storage: %v\n", err)
	}
}
