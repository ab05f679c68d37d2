package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/job"
	"audiodrop/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRedriveCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))

	return queueCmd
}

func (c *commandContext) withQueue(cmd *cobra.Command, fn func(context.Context, queue.Queue) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	runCtx := commandContextOrBackground(cmd)
	q, err := bootstrap.OpenQueue(runCtx, cfg)
	if err != nil {
		return err
	}
	defer q.Close()
	return fn(runCtx, q)
}

func localQueue(q queue.Queue) (*queue.SQLiteQueue, error) {
	local, ok := q.(*queue.SQLiteQueue)
	if !ok {
		return nil, errors.New("this command requires the sqlite queue backend; use the SQS dead-letter queue tools instead")
	}
	return local, nil
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(runCtx context.Context, q queue.Queue) error {
				stats, err := q.Stats(runCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"Ready", strconv.FormatInt(stats.Ready, 10)},
					{"In flight", strconv.FormatInt(stats.InFlight, 10)},
					{"Dead", strconv.FormatInt(stats.Dead, 10)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"State", "Messages"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print counts as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued messages (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(runCtx context.Context, q queue.Queue) error {
				local, err := localQueue(q)
				if err != nil {
					return err
				}
				entries, err := local.List(runCtx, state)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					status := e.State
					if e.InFlight(now) {
						status = "in flight"
					}
					title := "(malformed)"
					if j, err := job.Decode(e.Body); err == nil {
						title = j.Title
					}
					rows = append(rows, []string{
						e.ID,
						status,
						strconv.Itoa(e.ReceiveCount),
						title,
						e.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"ID", "State", "Receives", "Title", "Queued"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (ready, dead)")
	return cmd
}

func newQueueRedriveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redrive",
		Short: "Move dead-lettered messages back to ready (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(runCtx context.Context, q queue.Queue) error {
				local, err := localQueue(q)
				if err != nil {
					return err
				}
				n, err := local.Redrive(runCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Redrove %d message(s)\n", n)
				return nil
			})
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dead-lettered messages (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(runCtx context.Context, q queue.Queue) error {
				local, err := localQueue(q)
				if err != nil {
					return err
				}
				n, err := local.Purge(runCtx, all)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d message(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every message, not only dead ones")
	return cmd
}
