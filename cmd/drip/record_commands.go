package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Start or stop a recording on the running appliance",
	}

	recordCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.requireAppliance()
			if err != nil {
				return err
			}
			sessionID, err := client.StartRecording(cmd.Context())
			if err != nil {
				return wrapClientError(err, ctx.configValue().APIBind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording started (session %s)\n", sessionID)
			return nil
		},
	})

	recordCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop recording and hand the file to post-processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.requireAppliance()
			if err != nil {
				return err
			}
			message, err := client.StopRecording(cmd.Context())
			if err != nil {
				return wrapClientError(err, ctx.configValue().APIBind)
			}
			if message == "" {
				message = "Recording stopped"
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	})

	return recordCmd
}
