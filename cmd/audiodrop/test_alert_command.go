package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audiodrop/internal/notifications"
)

func newTestAlertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-alert",
		Short: "Send a test operator alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Alerts.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "ntfy topic not configured; set alerts.ntfy_topic")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(commandContextOrBackground(cmd)); err != nil {
				return fmt.Errorf("send test alert: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test alert sent")
			return nil
		},
	}
}
