package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/manifest"
	"github.com/ossyrian/modarc/internal/views"
)

func (a *app) exportJSONCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-json ARCHIVE",
		Short: "Export the archive structure as manifest.json plus one blob per file",
		Args:  cobra.ExactArgs(1),
		RunE:  a.exportJSON,
	}
	cmd.Flags().StringP("output", "o", "", "export directory (required)")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) exportJSON(cmd *cobra.Command, args []string) error {
	arc, _, err := a.readArchive(args[0])
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("output")

	_, err = manifest.Export(dir, arc, manifest.ExportOptions{
		Overwrite: a.overwrite(cmd),
		Logger:    slog.Default(),
	})
	return err
}

func (a *app) exportViewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-views ARCHIVE",
		Short: "Export like export-json and add per-module views of the blobs",
		Args:  cobra.ExactArgs(1),
		RunE:  a.exportViews,
	}
	cmd.Flags().StringP("output", "o", "", "export directory (required)")
	cmd.Flags().String("view-mode", "hardlink", "how views refer to blobs (hardlink, symlink, copy)")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) exportViews(cmd *cobra.Command, args []string) error {
	mode, err := views.ParseMode(a.cfg.ViewMode)
	if err != nil {
		return err
	}

	arc, _, err := a.readArchive(args[0])
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("output")
	allow := a.overwrite(cmd)

	if _, err := manifest.Export(dir, arc, manifest.ExportOptions{Overwrite: allow, Logger: slog.Default()}); err != nil {
		return err
	}
	_, err = views.Materialize(dir, arc, views.Options{Mode: mode, Overwrite: allow, Logger: slog.Default()})
	return err
}

func (a *app) buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build EXPORT_DIR",
		Short: "Rebuild an archive verbatim from an exported manifest and its blobs",
		Long: `build reproduces every table, offset and modmap value exactly as the
manifest describes them. Nothing is recomputed; an inconsistent manifest is an
error, and no output is written.`,
		Args: cobra.ExactArgs(1),
		RunE: a.build,
	}
	cmd.Flags().StringP("output", "o", "", "archive to write (required)")
	cmd.Flags().Bool("strict", true, "reject blobs whose length differs from the declared size")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) build(cmd *cobra.Command, args []string) error {
	m, payloads, err := manifest.Load(args[0])
	if err != nil {
		return err
	}
	layout, err := m.Layout()
	if err != nil {
		return err
	}

	// names are decoded the way the manifest was written
	opts := a.archiveOptions()
	if names, err := archive.LookupNameCodec(m.NameEncoding); err == nil {
		opts.Names = names
	}
	arc, out, err := archive.Build(layout, payloads, opts)
	if err != nil {
		return fmt.Errorf("failed to build archive: %w", err)
	}

	dst, _ := cmd.Flags().GetString("output")
	if err := a.commit(cmd, dst, out); err != nil {
		return err
	}
	slog.Info("built archive",
		"files", len(arc.Files),
		"modules", len(arc.Modules),
		"size", len(out),
	)
	return nil
}
