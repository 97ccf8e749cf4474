package ftm

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	engine "github.com/ftm-project/ftm/internal/ftm"
	ftmhttp "github.com/ftm-project/ftm/internal/ftm/http"
)

func init() {
	rootCmd.AddCommand(checkoutCmd)
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <dir>",
	Short: "Start tracking a directory and serve its history over HTTP",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		e, err := engine.Checkout(dir)
		if err != nil {
			log.Err(err).Msg("checkout failed")
			os.Exit(1)
		}

		svc := ftmhttp.NewService(e, Port)

		shutdown := make(chan struct{})
		svc.OnShutdown(func() { close(shutdown) })

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		go func() {
			select {
			case <-sigCh:
			case <-shutdown:
			}
			log.Info().Msg("shutting down")
			if err := svc.Stop(); err != nil {
				log.Err(err).Msg("http shutdown failed")
			}
			if err := e.Stop(); err != nil {
				log.Err(err).Msg("engine shutdown failed")
			}
			os.Exit(0)
		}()

		if err := svc.ListenAndServe(); err != nil {
			log.Err(err).Msg("http server exited")
			os.Exit(1)
		}
	},
}
