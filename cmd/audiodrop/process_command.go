package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/job"
	"audiodrop/internal/pipeline"
	"audiodrop/internal/services"
)

type processResult struct {
	Key            string `json:"key"`
	Outcome        string `json:"outcome"`
	CacheHit       bool   `json:"cacheHit"`
	CachedDelivery bool   `json:"cachedDelivery"`
	SourceBytes    int64  `json:"sourceBytes"`
	ArtifactBytes  int64  `json:"artifactBytes"`
	Error          string `json:"error,omitempty"`
	RefreshError   string `json:"refreshError,omitempty"`
}

func newProcessResult(res pipeline.Result) processResult {
	out := processResult{
		Key:            res.Key,
		Outcome:        string(res.Outcome),
		CacheHit:       res.CacheHit,
		CachedDelivery: res.CachedDelivery,
		SourceBytes:    res.SourceBytes,
		ArtifactBytes:  res.ArtifactBytes,
	}
	if res.Err != nil {
		out.Error = services.UserMessage(res.Err)
	}
	if res.RefreshErr != nil {
		out.RefreshError = services.UserMessage(res.RefreshErr)
	}
	return out
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <url> <title> <email>",
		Short: "Run one job through the pipeline without the queue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := job.Job{SourceURL: args[0], Title: args[1], Destination: args[2]}
			if err := j.Validate(); err != nil {
				return err
			}

			return ctx.withApp(commandContextOrBackground(cmd), func(app *bootstrap.App) error {
				jobCtx, cancel := context.WithTimeout(commandContextOrBackground(cmd), app.Config.JobTimeout())
				defer cancel()
				res := app.Pipeline.Process(jobCtx, j)

				out := newProcessResult(res)
				if asJSON {
					if err := writeJSON(cmd, out); err != nil {
						return err
					}
				} else {
					rows := [][]string{
						{"Key", out.Key},
						{"Outcome", out.Outcome},
						{"Cache hit", yesNo(out.CacheHit)},
						{"Source bytes", strconv.FormatInt(out.SourceBytes, 10)},
						{"Artifact bytes", strconv.FormatInt(out.ArtifactBytes, 10)},
					}
					if out.Error != "" {
						rows = append(rows, []string{"Error", out.Error})
					}
					if out.RefreshError != "" {
						rows = append(rows, []string{"Refresh error", out.RefreshError})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows, nil))
				}
				if res.Outcome == job.OutcomeFailed {
					return errors.New("job failed; the requester was sent a failure notice")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
