package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"audiodrop/internal/api"
	"audiodrop/internal/bootstrap"
	"audiodrop/internal/worker"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var withWorker bool
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intake HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withApp(signalCtx, func(app *bootstrap.App) error {
				opts := api.OptionsFromConfig(app.Config, app.Logger)
				if bind != "" {
					opts.Bind = bind
				}
				srv, err := api.New(app.Queue, app.Store, opts)
				if err != nil {
					return err
				}

				g, gctx := errgroup.WithContext(signalCtx)
				if err := srv.Start(gctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())

				if withWorker {
					w, err := worker.New(app.Queue, app.Pipeline, app.Logger, worker.OptionsFromConfig(app.Config))
					if err != nil {
						srv.Stop()
						return err
					}
					g.Go(func() error { return w.Run(gctx) })
				}
				g.Go(func() error {
					<-gctx.Done()
					srv.Stop()
					return nil
				})
				return g.Wait()
			})
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also consume the queue in this process")
	cmd.Flags().StringVar(&bind, "bind", "", "Override api.bind")
	return cmd
}
