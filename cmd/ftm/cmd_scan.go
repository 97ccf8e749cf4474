package ftm

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(stopCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trigger a full reconciliation scan",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		var result any
		if err := c.post("/api/scan", nil, &result); err != nil {
			fail(err)
		}
		printJSON(result)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run housekeeping now (orphan sweep, log rotation)",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		if err := c.post("/api/clean", nil, nil); err != nil {
			fail(err)
		}
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running ftm server",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		if err := c.post("/api/shutdown", nil, nil); err != nil {
			fail(err)
		}
	},
}
