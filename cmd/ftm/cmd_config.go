package ftm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the watched root's configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the current configuration, or a single dotted key",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		var conf map[string]any
		if err := c.get("/api/config", nil, &conf); err != nil {
			fail(err)
		}
		if len(args) == 0 {
			printJSON(conf)
			return
		}
		v, ok := lookupDotted(conf, args[0])
		if !ok {
			fail(fmt.Errorf("no such config key: %s", args[0]))
		}
		printJSON(v)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a dotted configuration key and persist it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(Port)
		body := struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		}{Key: args[0], Value: parseScalar(args[1])}
		if err := c.post("/api/config", body, nil); err != nil {
			fail(err)
		}
	},
}

func lookupDotted(m map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = asMap[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// parseScalar coerces a CLI-provided value string into bool/int/float
// where possible, falling back to the raw string, so `config set` can
// carry typed values through JSON without a --type flag.
func parseScalar(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
