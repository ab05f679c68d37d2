package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/job"
)

func newLinkCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "link <key|title>",
		Short: "Print a signed download link for a stored artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !job.ValidKey(key) {
				key = job.ArtifactKey(key)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.LinkTTL()
			}
			runCtx := commandContextOrBackground(cmd)
			store, err := bootstrap.OpenStore(runCtx, cfg)
			if err != nil {
				return err
			}
			exists, err := store.Exists(runCtx, key)
			if err != nil {
				return err
			}
			if !exists {
				return errors.New("no artifact stored under " + key)
			}
			link, err := store.SignedLink(runCtx, key, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Link validity (defaults to pipeline.link_ttl_seconds)")
	return cmd
}
