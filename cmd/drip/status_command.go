package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drip/internal/controlapi"
	"drip/internal/preflight"
	"drip/internal/recording"
)

type statusReport struct {
	Running   bool                       `json:"running"`
	Appliance *controlapi.StatusResponse `json:"appliance,omitempty"`
	APIError  string                     `json:"api_error,omitempty"`
	Checks    []preflight.Result         `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show appliance state and environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{Checks: preflight.RunAll(cmd.Context(), cfg)}
			client, running, err := ctx.applianceClient()
			report.Running = running
			switch {
			case err != nil:
				report.APIError = err.Error()
			case client != nil:
				resp, err := client.Status(cmd.Context())
				if err != nil {
					report.APIError = wrapClientError(err, cfg.APIBind).Error()
				} else {
					report.Appliance = &resp
				}
			}

			if asJSON {
				report.Checks = nonNil(report.Checks)
				return writeJSON(cmd, report)
			}
			renderStatusReport(newLineWriter(cmd.OutOrStdout()), report)
			if failed := preflight.Failed(report.Checks); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderStatusReport(w *lineWriter, report statusReport) {
	w.section("Appliance")
	switch {
	case !report.Running:
		w.line("Appliance", statusInfo, "not running")
	case report.APIError != "":
		w.line("Appliance", statusWarn, "running; "+report.APIError)
	case report.Appliance != nil:
		renderApplianceState(w, *report.Appliance)
	default:
		w.line("Appliance", statusOK, "running")
	}
	w.blank()

	w.section("Environment")
	for _, result := range report.Checks {
		w.line(result.Name, checkKind(result), result.Detail)
	}
}

func renderApplianceState(w *lineWriter, resp controlapi.StatusResponse) {
	w.line("Appliance", statusOK, "running")
	if resp.Board.Message != "" {
		w.line("Status line", statusInfo, resp.Board.Message)
	}

	if rec := resp.Recording; rec != nil && rec.State == recording.StateRecording {
		w.line("Recording", statusWarn, fmt.Sprintf("in progress (%s frames, %s)", formatCount(rec.Frames), formatSeconds(rec.DurationSeconds)))
	} else if rec != nil {
		w.line("Recording", statusInfo, string(rec.State))
	}

	if job := resp.Job; job != nil {
		detail := fmt.Sprintf("%s %d%% %s", titleCase(string(job.State)), job.Progress, baseName(job.DestPath))
		kind := statusInfo
		if job.Error != "" {
			detail += " (" + job.Error + ")"
			kind = statusError
		}
		w.line("Transcode", kind, detail)
	}

	if cam := resp.Camera; cam != nil {
		if !cam.Connected {
			w.line("Camera head", statusWarn, "not connected")
			return
		}
		w.line("Camera head", statusOK, fmt.Sprintf("%s zoom %sx, ICR %s, IR correction %s",
			cam.Port, formatMultiplier(cam.Multiplier), onOff(cam.ICR), onOff(cam.IRCorrection)))
	}
}
