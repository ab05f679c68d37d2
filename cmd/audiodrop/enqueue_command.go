package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/job"
)

type enqueueResult struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "enqueue <url> <title> <email>",
		Short: "Validate a job and add it to the queue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := job.Job{SourceURL: args[0], Title: args[1], Destination: args[2]}
			if err := j.Validate(); err != nil {
				return err
			}
			body, err := job.Encode(j)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q, err := bootstrap.OpenQueue(commandContextOrBackground(cmd), cfg)
			if err != nil {
				return err
			}
			defer q.Close()

			id, err := q.Send(commandContextOrBackground(cmd), body)
			if err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			res := enqueueResult{ID: id, Key: j.Key()}
			if asJSON {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (artifact %s)\n", res.ID, res.Key)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
