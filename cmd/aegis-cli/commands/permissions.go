package commands

import (
	"fmt"
	"os"

	"github.com/aegis-scan/aegis/pkg/engine/permissions"
	"github.com/spf13/cobra"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Generate a least-privilege GCP IAM custom role",
	Long:  `Generates the exact GCP IAM custom role JSON required to run Aegis against a project.`,
	Run: func(cmd *cobra.Command, args []string) {
		services, _ := cmd.Flags().GetStringSlice("services")
		jsonBytes, err := permissions.GenerateRole(services)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating role: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(jsonBytes))
	},
}

func init() {
	permissionsCmd.Flags().StringSlice("services", nil, "limit the role to these services (default: all)")
	rootCmd.AddCommand(permissionsCmd)
}
