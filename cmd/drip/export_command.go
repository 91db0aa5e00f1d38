package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"drip/internal/catalog"
	"drip/internal/controlapi"
	"drip/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var dest string
	var keep bool
	var remove bool
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "export [recording...]",
		Short: "Copy recordings to the export destination",
		Long: "Export copies each recording to the destination, verifies the copied size\n" +
			"and, unless originals are kept, deletes the source. Recordings may be given\n" +
			"by name (resolved against recordings_dir) or path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep && remove {
				return errors.New("--keep and --delete are mutually exclusive")
			}
			if len(args) == 0 && !all {
				return errors.New("specify recordings to export or pass --all")
			}
			var keepOverride *bool
			switch {
			case keep:
				keepOverride = &keep
			case remove:
				v := false
				keepOverride = &v
			}

			client, running, err := ctx.applianceClient()
			if err != nil {
				return err
			}

			var result export.Result
			if running {
				result, err = exportRemote(cmd, ctx, client, args, all, dest, keepOverride)
			} else {
				result, err = exportLocal(cmd, ctx, args, all, dest, keepOverride)
			}
			if err != nil {
				return err
			}

			if asJSON {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				renderExportResult(newLineWriter(cmd.OutOrStdout()), result)
			}
			if failed := len(result.Items) - result.Exported; failed > 0 {
				return fmt.Errorf("%d of %d recordings failed to export", failed, len(result.Items))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination directory (defaults to export_dest_dir)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the original recordings")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete originals after a verified copy")
	cmd.Flags().BoolVar(&all, "all", false, "Export every finished recording")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func exportRemote(cmd *cobra.Command, ctx *commandContext, client *controlapi.Client, names []string, all bool, dest string, keep *bool) (export.Result, error) {
	bind := ctx.configValue().APIBind
	if all {
		list, err := client.Recordings(cmd.Context())
		if err != nil {
			return export.Result{}, wrapClientError(err, bind)
		}
		names = recordingNames(list)
	}
	result, err := client.Export(cmd.Context(), names, dest, keep)
	return result, wrapClientError(err, bind)
}

func exportLocal(cmd *cobra.Command, ctx *commandContext, names []string, all bool, dest string, keep *bool) (export.Result, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return export.Result{}, err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return export.Result{}, fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	exporter := export.New(cfg, export.WithRecorder(store), export.WithLogger(ctx.logger()))
	if all {
		list, err := exporter.Recordings()
		if err != nil {
			return export.Result{}, err
		}
		names = recordingNames(list)
	}
	return exporter.Export(cmd.Context(), export.Request{Files: names, Dest: dest, Keep: keep})
}

func recordingNames(list []export.Recording) []string {
	names := make([]string, 0, len(list))
	for _, rec := range list {
		names = append(names, rec.Name)
	}
	return names
}

func renderExportResult(w *lineWriter, result export.Result) {
	if len(result.Items) == 0 {
		fmt.Fprintln(w.out, "No files selected for export")
		return
	}
	w.section("Export " + shortID(result.BatchID))
	for _, item := range result.Items {
		label := filepath.Base(item.SourcePath)
		switch item.Outcome {
		case export.OutcomeDeleted:
			w.line(label, statusOK, fmt.Sprintf("%s bytes verified, original deleted", formatCount(item.Bytes)))
		case export.OutcomeVerified:
			w.line(label, statusOK, fmt.Sprintf("%s bytes verified", formatCount(item.Bytes)))
		default:
			w.line(label, statusError, item.Error)
		}
	}
	w.blank()
	fmt.Fprintf(w.out, "Exported %d of %d recordings to %s\n", result.Exported, len(result.Items), result.Dest)
	if result.ManifestPath != "" {
		fmt.Fprintf(w.out, "Manifest: %s\n", result.ManifestPath)
	}
	if result.Deleted > 0 {
		fmt.Fprintf(w.out, "%d recordings left on the appliance\n", len(result.Remaining))
	}
}
