package ftm

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file> <checksum-prefix>",
	Short: "Restore a file to a prior recorded version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args[1]) < 8 {
			fail(fmt.Errorf("checksum prefix must be at least 8 characters"))
		}
		c := newAPIClient(Port)
		body := struct {
			File     string `json:"file"`
			Checksum string `json:"checksum"`
		}{File: args[0], Checksum: args[1]}
		if err := c.post("/api/restore", body, nil); err != nil {
			fail(err)
		}
		fmt.Println("restored", args[0], "to", args[1])
	},
}
