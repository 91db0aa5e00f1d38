package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"drip/internal/controlapi"
	"drip/internal/ptz"
)

// cameraAction runs against the appliance when it is running, since it owns
// the serial port, and opens the port directly otherwise.
type cameraAction struct {
	remote func(context.Context, *controlapi.Client) (string, error)
	local  func(context.Context, *ptz.Controller) (string, error)
}

func (a cameraAction) run(cmd *cobra.Command, ctx *commandContext) error {
	client, running, err := ctx.applianceClient()
	if err != nil {
		return err
	}

	var message string
	if running {
		message, err = a.remote(cmd.Context(), client)
		err = wrapClientError(err, ctx.configValue().APIBind)
	} else {
		ctrl := ptz.New(ctx.configValue(), ptz.WithLogger(ctx.logger()))
		message, err = a.local(cmd.Context(), ctrl)
		if closeErr := ctrl.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), message)
	return nil
}

func newZoomCommand(ctx *commandContext) *cobra.Command {
	zoomCmd := &cobra.Command{
		Use:   "zoom",
		Short: "Control the camera zoom",
	}

	zoomCmd.AddCommand(&cobra.Command{
		Use:   "set <multiplier>",
		Short: "Set the zoom multiplier (1.0 to 30.0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			multiplier, err := parseMultiplier(args[0])
			if err != nil {
				return err
			}
			return cameraAction{
				remote: func(c context.Context, client *controlapi.Client) (string, error) {
					return client.Zoom(c, multiplier)
				},
				local: func(c context.Context, ctrl *ptz.Controller) (string, error) {
					if err := ctrl.SetZoom(c, ptz.MultiplierToLevel(multiplier)); err != nil {
						return "", err
					}
					return zoomMessage(ctrl.State()), nil
				},
			}.run(cmd, ctx)
		},
	})

	for _, direction := range []string{"in", "out"} {
		zoomCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Zoom %s by one step", direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cameraAction{
					remote: func(c context.Context, client *controlapi.Client) (string, error) {
						return client.ZoomStep(c, direction)
					},
					local: func(c context.Context, ctrl *ptz.Controller) (string, error) {
						step := ctrl.ZoomIn
						if direction == "out" {
							step = ctrl.ZoomOut
						}
						if err := step(c); err != nil {
							return "", err
						}
						return zoomMessage(ctrl.State()), nil
					},
				}.run(cmd, ctx)
			},
		})
	}

	return zoomCmd
}

func newICRCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "icr <on|off>",
		Short: "Switch the IR-cut filter (night mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return cameraAction{
				remote: func(c context.Context, client *controlapi.Client) (string, error) {
					return client.SetICR(c, enabled)
				},
				local: func(c context.Context, ctrl *ptz.Controller) (string, error) {
					if err := ctrl.SetICR(c, enabled); err != nil {
						return "", err
					}
					return "ICR Mode: " + onOff(enabled), nil
				},
			}.run(cmd, ctx)
		},
	}
}

func newIRCorrectionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ir-correction <on|off>",
		Short: "Switch IR focus correction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return cameraAction{
				remote: func(c context.Context, client *controlapi.Client) (string, error) {
					return client.SetIRCorrection(c, enabled)
				},
				local: func(c context.Context, ctrl *ptz.Controller) (string, error) {
					if err := ctrl.SetIRCorrection(c, enabled); err != nil {
						return "", err
					}
					return "IR Correction: " + onOff(enabled), nil
				},
			}.run(cmd, ctx)
		},
	}
}

func parseMultiplier(value string) (float64, error) {
	multiplier, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "x"), 64)
	if err != nil {
		return 0, fmt.Errorf("zoom multiplier must be a number (got %q)", value)
	}
	if !ptz.ValidMultiplier(multiplier) {
		return 0, fmt.Errorf("zoom multiplier must be between 1.0x and 30.0x (got %s)", value)
	}
	return multiplier, nil
}

func zoomMessage(state ptz.State) string {
	return fmt.Sprintf("Zoom set to %sx (level %d)", formatMultiplier(state.Multiplier), state.ZoomLevel)
}
