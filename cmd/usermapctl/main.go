package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/usermap/cmd/usermapctl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "usermapctl",
		Short:         "Administration tools for the user map",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.UserCmd())
	rootCmd.AddCommand(cmd.GenCmd())
	rootCmd.AddCommand(cmd.DevCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
