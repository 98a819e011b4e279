package commands

import (
	"fmt"

	"github.com/bryanchriswhite/dimsway/internal/api"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dimsway %s\n", api.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
