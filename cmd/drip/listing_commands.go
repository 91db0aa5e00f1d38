package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"drip/internal/catalog"
	"drip/internal/config"
	"drip/internal/export"
	"drip/internal/media/ffprobe"
)

const defaultListLimit = 50

type recordingRow struct {
	export.Recording
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	FrameRate       float64 `json:"frame_rate,omitempty"`
	Frames          int64   `json:"frames,omitempty"`
	Codec           string  `json:"codec,omitempty"`
	ProbeError      string  `json:"probe_error,omitempty"`
}

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List finished recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			list, err := export.List(cfg.RecordingsDir)
			if err != nil {
				return err
			}
			rows := make([]recordingRow, 0, len(list))
			for _, rec := range list {
				row := recordingRow{Recording: rec}
				if probe {
					probeRecording(cmd.Context(), cfg, &row)
				}
				rows = append(rows, row)
			}

			if asJSON {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No recordings in %s\n", cfg.RecordingsDir)
				return nil
			}
			fmt.Fprintln(out, renderTable(recordingsTable(rows, probe)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Inspect each recording with ffprobe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func probeRecording(ctx context.Context, cfg *config.Config, row *recordingRow) {
	result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary, row.Path)
	if err != nil {
		row.ProbeError = err.Error()
		return
	}
	row.DurationSeconds = result.DurationSeconds()
	row.FrameRate = result.FrameRate()
	if stream, ok := result.VideoStream(); ok {
		row.Codec = stream.CodecName
		if frames, err := strconv.ParseInt(stream.NBFrames, 10, 64); err == nil {
			row.Frames = frames
		}
	}
}

func recordingsTable(rows []recordingRow, probed bool) tableSpec {
	spec := tableSpec{
		Headers: []string{"Name", "Size", "Modified"},
		Aligns:  []columnAlignment{alignLeft, alignRight, alignLeft},
	}
	if probed {
		spec.Headers = append(spec.Headers, "Duration", "FPS", "Frames", "Codec")
		spec.Aligns = append(spec.Aligns, alignRight, alignRight, alignRight, alignLeft)
	}

	var total int64
	for _, row := range rows {
		total += row.Size
		cells := []string{row.Name, formatSize(row.Size), formatTime(row.ModTime)}
		if probed {
			if row.ProbeError != "" {
				cells = append(cells, "-", "-", "-", "probe failed")
			} else {
				cells = append(cells,
					formatSeconds(row.DurationSeconds),
					strconv.FormatFloat(row.FrameRate, 'f', 2, 64),
					formatCount(row.Frames),
					row.Codec,
				)
			}
		}
		spec.Rows = append(spec.Rows, cells)
	}
	spec.Footer = fmt.Sprintf("%d recordings, %s (%s bytes)", len(rows), formatSize(total), formatCount(total))
	return spec
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List transcode jobs from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []catalog.Job
			err := withCatalog(ctx, func(store *catalog.Store) error {
				var err error
				jobs, err = store.ListJobs(cmd.Context(), limit)
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, nonNil(jobs))
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcode jobs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobsTable(jobs)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of jobs (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func jobsTable(jobs []catalog.Job) tableSpec {
	spec := tableSpec{
		Headers: []string{"ID", "Status", "Progress", "Source", "Deliverable", "Frames", "Started", "Error"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	}
	for _, job := range jobs {
		status := titleCase(string(job.Status))
		if job.RetryOf != "" {
			status += " (retry)"
		}
		spec.Rows = append(spec.Rows, []string{
			shortID(job.ID),
			status,
			fmt.Sprintf("%d%%", job.Progress),
			baseName(job.SourcePath),
			baseName(job.DestPath),
			formatCount(job.TotalFrames),
			formatTime(job.CreatedAt),
			job.Error,
		})
	}
	return spec
}

func newExportsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List export outcomes from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []catalog.ExportRecord
			err := withCatalog(ctx, func(store *catalog.Store) error {
				var err error
				records, err = store.ListExports(cmd.Context(), limit)
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, nonNil(records))
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exports recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(exportsTable(records)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func exportsTable(records []catalog.ExportRecord) tableSpec {
	spec := tableSpec{
		Headers: []string{"Batch", "File", "Outcome", "Bytes", "Source deleted", "When", "Error"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	}
	for _, rec := range records {
		spec.Rows = append(spec.Rows, []string{
			shortID(rec.BatchID),
			baseName(rec.SourcePath),
			titleCase(rec.Outcome),
			formatCount(rec.Bytes),
			yesNo(rec.Deleted),
			formatTime(rec.CreatedAt),
			rec.Error,
		})
	}
	return spec
}

// withCatalog opens the job catalog for the duration of fn. The appliance may
// hold it open concurrently; the store retries on SQLITE_BUSY.
func withCatalog(ctx *commandContext, fn func(*catalog.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return fn(store)
}
