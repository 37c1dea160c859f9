package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ossyrian/modarc/internal/planner"
)

// ErrSameOutput means a rewrite was asked to replace its own input.
var ErrSameOutput = errors.New("repack needs an output path different from the input")

func (a *app) modifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify ARCHIVE --replace MODULE/NAME=FILE...",
		Short: "Replace file payloads, patching in place when sizes are unchanged",
		Long: `modify replaces payloads by module and file name. When every replacement
keeps its original size the payload bytes are patched in place and no table is
touched. When any size changes the whole archive is repacked, which needs an
--output different from ARCHIVE.`,
		Args: cobra.ExactArgs(1),
		RunE: a.modify,
	}
	cmd.Flags().StringArrayP("replace", "r", nil, "MODULE/NAME=FILE replacement (repeatable)")
	cmd.Flags().StringP("output", "o", "", "write the result here instead of patching ARCHIVE")
	cmd.Flags().Bool("strict", false, "fail when a replacement does not resolve")
	cmd.Flags().Bool("touch", false, "stamp the current time on replaced entries (repack only)")
	cmd.Flags().Bool("dry-run", false, "plan and report without writing")
	cmd.MarkFlagRequired("replace")
	return cmd
}

// parseReplacement splits MODULE/NAME=FILE
func parseReplacement(s string) (module, name, path string, err error) {
	target, path, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return "", "", "", fmt.Errorf("invalid replacement %q: want MODULE/NAME=FILE", s)
	}
	module, name, ok = strings.Cut(target, "/")
	if !ok || module == "" || name == "" {
		return "", "", "", fmt.Errorf("invalid replacement target %q: want MODULE/NAME", target)
	}
	return module, name, path, nil
}

func (a *app) modify(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	specs, _ := cmd.Flags().GetStringArray("replace")

	reqs := make([]planner.Request, 0, len(specs))
	for _, s := range specs {
		module, name, path, err := parseReplacement(s)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read replacement for %s/%s: %w", module, name, err)
		}
		reqs = append(reqs, planner.Request{Module: module, Name: name, Data: data})
	}

	arc, image, err := a.readArchive(input)
	if err != nil {
		return err
	}

	p := planner.New(arc, planner.Options{
		Strict: a.cfg.Strict,
		Touch:  a.cfg.Touch,
		Logger: slog.Default(),
	})
	plan, err := p.Plan(reqs)
	if err != nil {
		return err
	}

	for _, it := range plan.Items {
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\tindex %d\tslot %d\t%d -> %d bytes\n",
			it.Module, it.Name, it.FileIndex, it.Slot, it.OldSize, it.NewSize)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\n", plan.Mode)

	if a.cfg.DryRun || plan.Mode == planner.ModeNoop {
		return nil
	}

	sameFile := output == "" || samePath(input, output)

	if plan.Mode == planner.ModeRepack {
		if sameFile {
			return fmt.Errorf("%w: %s", ErrSameOutput, input)
		}
		out, err := p.Repack(plan)
		if err != nil {
			return fmt.Errorf("failed to repack: %w", err)
		}
		return a.commit(cmd, output, out)
	}

	if !sameFile {
		if err := p.PatchBytes(plan, image); err != nil {
			return err
		}
		return a.commit(cmd, output, image)
	}

	f, err := os.OpenFile(input, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open archive for patching: %w", err)
	}
	if err := p.Patch(plan, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", input, err)
	}
	slog.Info("patched archive in place", "path", input, "replacements", len(plan.Items))
	return nil
}

func samePath(a, b string) bool {
	if fa, err := os.Stat(a); err == nil {
		if fb, err := os.Stat(b); err == nil {
			return os.SameFile(fa, fb)
		}
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func (a *app) repackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repack ARCHIVE",
		Short: "Rewrite the archive with tightly packed tables and payloads",
		Args:  cobra.ExactArgs(1),
		RunE:  a.repack,
	}
	cmd.Flags().StringP("output", "o", "", "archive to write (required)")
	cmd.Flags().Bool("dry-run", false, "report the packed size without writing")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) repack(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if samePath(args[0], output) {
		return fmt.Errorf("%w: %s", ErrSameOutput, output)
	}

	arc, image, err := a.readArchive(args[0])
	if err != nil {
		return err
	}

	payloads := arc.Payloads()
	size, err := arc.PackedSize(payloads)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d -> %d bytes\n", len(image), size)
	if a.cfg.DryRun {
		return nil
	}

	out, err := arc.Repack(payloads)
	if err != nil {
		return fmt.Errorf("failed to repack: %w", err)
	}
	return a.commit(cmd, output, out)
}
