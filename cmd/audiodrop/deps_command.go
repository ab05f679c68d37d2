package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"audiodrop/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := deps.CheckFFmpeg(commandContextOrBackground(cmd), cfg.FFmpegBinary())
			rows := [][]string{{status.Name, status.Command, yesNo(status.Available), status.Detail}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Dependency", "Command", "Available", "Detail"}, rows, nil))
			if !status.Available && !status.Optional {
				return errors.New("required dependency missing: " + status.Name)
			}
			return nil
		},
	}
}
