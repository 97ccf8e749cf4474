package ftm

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history and quota usage",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		var stats any
		if err := c.get("/api/stats", nil, &stats); err != nil {
			fail(err)
		}
		printJSON(stats)
	},
}
