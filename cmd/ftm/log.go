package ftm

import (
	"fmt"
	"path"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Debug bool

// initLog configures the CLI's own logrus output, kept distinct from the
// zerolog logger the checked-out server writes to (ambient logging
// split described in SPEC_FULL.md §4).
func initLog(cmd *cobra.Command, args []string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			_, filename := path.Split(f.File)
			return "", fmt.Sprintf("%s:%d", filename, f.Line)
		},
	})

	if Debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}
}
