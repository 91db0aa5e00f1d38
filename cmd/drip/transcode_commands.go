package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drip/internal/catalog"
	"drip/internal/status"
	"drip/internal/transcode"
)

const retryCloseTimeout = 10 * time.Second

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	transcodeCmd := &cobra.Command{
		Use:   "transcode",
		Short: "Inspect and retry frame-rate remux jobs",
	}
	transcodeCmd.AddCommand(newTranscodeRetryCommand(ctx))
	return transcodeCmd
}

func newTranscodeRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run a failed job whose source recording is still present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, running, err := ctx.applianceClient()
			if err != nil {
				return err
			}
			if running {
				return errors.New("stop the appliance before retrying jobs; it owns the transcoder")
			}
			return withCatalog(ctx, func(store *catalog.Store) error {
				return retryJob(cmd, ctx, store, args[0])
			})
		},
	}
}

func retryJob(cmd *cobra.Command, ctx *commandContext, store *catalog.Store, ref string) error {
	prev, err := resolveJob(cmd.Context(), store, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Retrying %s (%s, %s)\n", shortID(prev.ID), baseName(prev.SourcePath), titleCase(string(prev.Status)))

	board := &status.Board{}
	runner := transcode.New(ctx.configValue(),
		transcode.WithJobStore(store),
		transcode.WithStatusBoard(board),
		transcode.WithLogger(ctx.logger()),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), retryCloseTimeout)
		defer cancel()
		_ = runner.Close(closeCtx)
	}()

	job, err := runner.Retry(cmd.Context(), prev.ID)
	if err != nil {
		return err
	}
	select {
	case <-job.Done():
	case <-cmd.Context().Done():
		runner.Cancel()
		return cmd.Context().Err()
	}
	if err := job.Err(); err != nil {
		return fmt.Errorf("job %s failed (%s): %w", shortID(job.ID()), board.Message(), err)
	}
	fmt.Fprintf(out, "%s: %s\n", board.Message(), job.Snapshot().DestPath)
	return nil
}

// resolveJob accepts a full job ID or an unambiguous prefix, as shown by
// `drip jobs`.
func resolveJob(ctx context.Context, store *catalog.Store, ref string) (catalog.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return catalog.Job{}, errors.New("job id is required")
	}
	if job, err := store.GetJob(ctx, ref); err == nil {
		return job, nil
	}
	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		return catalog.Job{}, err
	}
	var matches []catalog.Job
	for _, job := range jobs {
		if strings.HasPrefix(job.ID, ref) {
			matches = append(matches, job)
		}
	}
	switch len(matches) {
	case 0:
		return catalog.Job{}, fmt.Errorf("no job matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return catalog.Job{}, fmt.Errorf("job id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
