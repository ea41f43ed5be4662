package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fossiltrack",
	Short: "Fossil fuel export tracker",
	Long: `A service that reconstructs tanker voyages from portcall and
ship-to-ship transfer data, prices the resulting trades, and exposes an
aggregation API over the computed dataset.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
