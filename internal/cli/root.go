package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripsplit/tripsplit/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "tripsplit",
	Short: "tripsplit - Split travel expenses with your group",
	Long: `tripsplit CLI - Track shared trip expenses from the terminal.

Create a group, add the people you travel with, record who paid for what
and see who owes whom at any time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ServerFlag, "server", "", "API server URL (or set TRIPSPLIT_SERVER)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tripsplit version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewDashCmd())
	rootCmd.AddCommand(commands.NewGroupsCmd())
	rootCmd.AddCommand(commands.NewExpensesCmd())
	rootCmd.AddCommand(commands.NewBalancesCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
