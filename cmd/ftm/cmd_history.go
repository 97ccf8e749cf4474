package ftm

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "Show the recorded history for a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		var entries any
		if err := c.get("/api/history", urlValues("file", args[0]), &entries); err != nil {
			fail(err)
		}
		printJSON(entries)
	},
}
