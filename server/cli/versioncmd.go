package cli

import (
	"fmt"

	"github.com/metal-stack/v"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of clientdir",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), v.V.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
