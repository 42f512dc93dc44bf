package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/templui/usermap/internal/db"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/service"
)

func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and administer accounts",
	}

	userCmd.AddCommand(
		setActiveCmd("activate", "Allow an account to sign in and appear on the map", true),
		setActiveCmd("deactivate", "Block an account and hide it from the map", false),
		confirmCmd(),
		listCmd(),
	)

	return userCmd
}

func withServices(ctx context.Context, fn func(users *service.UserService, lifecycle *service.Lifecycle) error) error {
	database, cfg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(database)

	repo := repository.NewUserRepository(database)
	lifecycle := service.NewLifecycle(repo, cfg.DefaultActive)
	return fn(service.NewUserService(repo, lifecycle, nil), lifecycle)
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(users *service.UserService, _ *service.Lifecycle) error {
				user, err := users.SetActive(cmd.Context(), args[0], active)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", user.Email, user.IsActive)
				return nil
			})
		},
	}
}

// confirmCmd confirms an account without its email link. An account that is
// already confirmed is reported and left alone.
func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <email>",
		Short: "Confirm a registration on the user's behalf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(users *service.UserService, lifecycle *service.Lifecycle) error {
				user, err := users.ByEmail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result, err := lifecycle.Confirm(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", user.Email, result)
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var role int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *model.Role
			if cmd.Flags().Changed("role") {
				r := model.Role(role)
				if !r.Valid() {
					return fmt.Errorf("unknown role %d", role)
				}
				filter = &r
			}

			return withServices(cmd.Context(), func(users *service.UserService, _ *service.Lifecycle) error {
				list, err := users.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return printUsers(cmd.OutOrStdout(), list)
			})
		},
	}

	listCmd.Flags().IntVar(&role, "role", 0, "only list accounts with this role (0 user, 1 trainer, 2 developer)")
	return listCmd
}

func printUsers(out io.Writer, users []model.User) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tCONFIRMED\tACTIVE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n",
			u.Email, u.Name, u.Role.Label(), u.IsConfirmed, u.IsActive, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
