package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the job queue",
		Long: `Consume the job queue until interrupted.

With --drain the worker processes messages until the queue reports none
visible and then exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withApp(signalCtx, func(app *bootstrap.App) error {
				w, err := worker.New(app.Queue, app.Pipeline, app.Logger, worker.OptionsFromConfig(app.Config))
				if err != nil {
					return err
				}
				if drain {
					handled, err := w.Drain(signalCtx)
					fmt.Fprintf(cmd.OutOrStdout(), "Processed %d message(s)\n", handled)
					return err
				}
				return w.Run(signalCtx)
			})
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "Exit once the queue is empty")
	return cmd
}
