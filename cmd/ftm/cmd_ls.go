package ftm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVar(&lsIncludeDeleted, "include-deleted", false, "include deleted files in the tree")
}

var lsIncludeDeleted bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked files as a tree",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		var tree any
		if err := c.get("/api/files", urlValues("include_deleted", lsIncludeDeleted), &tree); err != nil {
			fail(err)
		}
		printJSON(tree)
	},
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
