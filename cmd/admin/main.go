// Command admin is the operator CLI of the complaint desk. It talks to the
// database directly and acts as the staff or admin user given by --as.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Complaint desk operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.open(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.close()
		},
	}
	rootCmd.PersistentFlags().String("as", os.Getenv("ADMIN_ID"), "user id to act as (default $ADMIN_ID)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(bootstrapAdminCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(assigneesCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(bulkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}
