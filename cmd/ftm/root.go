package ftm

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	// windows only
	cobra.MousetrapHelpText = ""

	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "debug")
	rootCmd.PersistentFlags().IntVar(&Port, "port", 13580, "ftm server port")
	rootCmd.PersistentPreRun = initLog
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("command execution failed")
	}
}

// Port is the global --port flag (spec.md §6): every subcommand but
// checkout speaks HTTP to a server already listening on this port.
var Port int

var rootCmd = &cobra.Command{
	Use:     "ftm",
	Short:   "File Time Machine",
	Long:    `ftm tracks versions of text files in a watched directory.`,
	Example: `ftm checkout .`,
	Args:    cobra.MinimumNArgs(0),
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}
