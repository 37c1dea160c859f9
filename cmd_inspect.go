package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/dostime"
	"github.com/ossyrian/modarc/internal/fsutil"
)

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List modules and their slots, or the flat file table",
		Args:  cobra.ExactArgs(1),
		RunE:  a.list,
	}
	cmd.Flags().Bool("files", false, "list the file table in index order instead of modules")
	cmd.Flags().StringSlice("include", nil, "only show MODULE/NAME paths matching these patterns")
	cmd.Flags().StringSlice("exclude", nil, "hide MODULE/NAME paths matching these patterns")
	return cmd
}

func (a *app) list(cmd *cobra.Command, args []string) error {
	arc, _, err := a.readArchive(args[0])
	if err != nil {
		return err
	}
	f, err := a.filter()
	if err != nil {
		return err
	}
	files, _ := cmd.Flags().GetBool("files")

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	if files {
		// with a filter, a file is shown when a module referencing it passes
		owners := fileOwners(arc)
		fmt.Fprintln(tw, "INDEX\tNAME\tSIZE\tOFFSET\tTIME")
		for i, e := range arc.Files {
			if f != nil && !lo.SomeBy(owners[i], func(mod string) bool { return f.Match(mod, arc.FileName(i)) }) {
				continue
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%#x\t%s\n", i, arc.FileName(i), e.Size, e.Offset, formatTime(e.Timestamp))
		}
		return tw.Flush()
	}

	for m, mod := range arc.Modules {
		name := arc.ModuleName(m)
		fmt.Fprintf(tw, "%s\t%d slots\t%s\n", name, mod.SlotCount, formatTime(mod.Timestamp))
		for s, slot := range arc.Slots(m) {
			switch slot.Kind {
			case archive.SlotFile:
				idx := slot.Index()
				if !f.Match(name, arc.FileName(idx)) {
					continue
				}
				fmt.Fprintf(tw, "  %4d\t%s\t%d\n", s, arc.FileName(idx), arc.Files[idx].Size)
			default:
				if f != nil {
					continue
				}
				fmt.Fprintf(tw, "  %4d\t<%s %#04x>\t\n", s, slot.Kind, slot.Value)
			}
		}
	}
	return tw.Flush()
}

// fileOwners maps each file index to the names of the modules referencing it
func fileOwners(arc *archive.Archive) map[int][]string {
	owners := make(map[int][]string)
	for m := range arc.Modules {
		for _, slot := range arc.Slots(m) {
			if slot.Kind == archive.SlotFile {
				owners[slot.Index()] = append(owners[slot.Index()], arc.ModuleName(m))
			}
		}
	}
	return owners
}

func formatTime(ts uint32) string {
	t, ok := dostime.Decode(ts)
	if !ok {
		return fmt.Sprintf("%#08x", ts)
	}
	return t.Format("2006-01-02 15:04:05")
}

func (a *app) extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE",
		Short: "Write every module's files to OUTPUT/MODULE/NAME",
		Args:  cobra.ExactArgs(1),
		RunE:  a.extract,
	}
	cmd.Flags().StringP("output", "o", ".", "directory to extract into")
	cmd.Flags().StringSlice("include", nil, "only extract MODULE/NAME paths matching these patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip MODULE/NAME paths matching these patterns")
	cmd.Flags().Bool("dry-run", false, "list what would be written without writing")
	return cmd
}

func (a *app) extract(cmd *cobra.Command, args []string) error {
	arc, _, err := a.readArchive(args[0])
	if err != nil {
		return err
	}
	f, err := a.filter()
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("output")
	allow := a.overwrite(cmd)

	written := 0
	for m := range arc.Modules {
		module := arc.ModuleName(m)
		for s, slot := range arc.Slots(m) {
			if slot.Kind != archive.SlotFile {
				slog.Debug("skipping slot", "module", module, "slot", s, "kind", slot.Kind)
				continue
			}
			idx := slot.Index()
			name := arc.FileName(idx)
			if !f.Match(module, name) {
				continue
			}

			dst := filepath.Join(outDir, fsutil.SafeName(module), fsutil.SafeName(name))
			if a.cfg.DryRun {
				fmt.Fprintln(cmd.OutOrStdout(), dst)
				continue
			}

			if err := fsutil.CheckOverwrite(dst, allow); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
			}
			if err := os.WriteFile(dst, arc.Payload(idx), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", dst, err)
			}
			written++
		}
	}

	slog.Info("extracted files", "dir", outDir, "files", written, "dry_run", a.cfg.DryRun)
	return nil
}

func (a *app) readCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read ARCHIVE MODULE NAME",
		Short: "Write one file's payload to stdout or --out",
		Args:  cobra.ExactArgs(3),
		RunE:  a.read,
	}
	cmd.Flags().String("out", "", "write the payload to this file instead of stdout")
	return cmd
}

func (a *app) read(cmd *cobra.Command, args []string) error {
	arc, _, err := a.readArchive(args[0])
	if err != nil {
		return err
	}

	idx, ok := arc.Lookup(args[1], args[2])
	if !ok {
		return fmt.Errorf("%s/%s not found in %s", args[1], args[2], args[0])
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := cmd.OutOrStdout().Write(arc.Payload(idx))
		return err
	}
	return a.commit(cmd, out, arc.Payload(idx))
}
