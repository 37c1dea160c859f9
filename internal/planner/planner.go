// Package planner decides how a set of payload replacements is committed to
// an archive: as an in-place patch of payload bytes when every replacement
// keeps its size, or as a full repack otherwise.
package planner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/dostime"
)

var (
	// ErrEntryNotFound means a (module, filename) pair did not resolve.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrSizeChanged means an in-place patch was requested for a plan that changes sizes.
	ErrSizeChanged = errors.New("replacement changes payload size; in-place patch refused")
	// ErrNotRepack means a repack was requested for a plan that does not need one.
	ErrNotRepack = errors.New("plan does not require a repack")
)

// Mode is the commit path a plan takes.
type Mode uint8

const (
	// ModeNoop means nothing resolved; there is nothing to write.
	ModeNoop Mode = iota
	// ModeInPlace overwrites payload bytes of same-size entries only.
	ModeInPlace
	// ModeRepack rewrites the whole archive to a new target.
	ModeRepack
)

func (m Mode) String() string {
	switch m {
	case ModeNoop:
		return "noop"
	case ModeInPlace:
		return "in-place"
	case ModeRepack:
		return "repack"
	default:
		return "unknown"
	}
}

// Request asks for the payload of Name in Module to be replaced by Data.
type Request struct {
	Module string
	Name   string
	Data   []byte
}

// Item is one resolved replacement.
type Item struct {
	Module    string
	Name      string
	Slot      int
	FileIndex int
	OldSize   uint32
	NewSize   uint32
	// Position is the absolute offset of the payload in the archive.
	Position int64

	data []byte
}

// SizeChanged reports whether the replacement changes the payload length.
func (it Item) SizeChanged() bool { return it.OldSize != it.NewSize }

// Plan is the outcome of resolving a request set.
type Plan struct {
	Mode    Mode
	Items   []Item
	Skipped []error
}

// Options configures the planner.
type Options struct {
	// Strict makes any unresolved request fatal.
	Strict bool
	// Touch stamps Now() on every replaced file entry. It only has an effect
	// on the repack path; the in-place path never rewrites table bytes.
	Touch bool
	// Now returns the packed timestamp used by Touch. Defaults to dostime.Now.
	Now    func() uint32
	Logger *slog.Logger
}

// Planner resolves and commits replacements against one parsed archive.
type Planner struct {
	archive *archive.Archive
	opts    Options
}

// New returns a Planner for a.
func New(a *archive.Archive, opts Options) *Planner {
	if opts.Now == nil {
		opts.Now = dostime.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Planner{archive: a, opts: opts}
}

// Plan resolves every request. The first module whose name matches and the
// first file slot in that module's range whose name matches win; both
// comparisons are case-insensitive. A later request for the same file
// replaces an earlier one.
func (p *Planner) Plan(reqs []Request) (*Plan, error) {
	plan := &Plan{}
	byIndex := make(map[int]int, len(reqs))

	for _, req := range reqs {
		m, ok := p.archive.FindModule(req.Module)
		if !ok {
			if err := p.unresolved(plan, fmt.Errorf("%w: module %q", ErrEntryNotFound, req.Module)); err != nil {
				return nil, err
			}
			continue
		}

		slot, idx, ok := p.archive.FindFile(m, req.Name)
		if !ok {
			if err := p.unresolved(plan, fmt.Errorf("%w: %q in module %q", ErrEntryNotFound, req.Name, req.Module)); err != nil {
				return nil, err
			}
			continue
		}

		entry := p.archive.Files[idx]
		item := Item{
			Module:    p.archive.ModuleName(m),
			Name:      p.archive.FileName(idx),
			Slot:      slot,
			FileIndex: idx,
			OldSize:   entry.Size,
			NewSize:   uint32(len(req.Data)),
			Position:  int64(p.archive.Header.DataOffset) + int64(entry.Offset),
			data:      req.Data,
		}

		if prev, dup := byIndex[idx]; dup {
			p.opts.Logger.Warn("file replaced more than once; last request wins",
				"module", item.Module,
				"name", item.Name,
				"index", idx,
			)
			plan.Items[prev] = item
			continue
		}
		byIndex[idx] = len(plan.Items)
		plan.Items = append(plan.Items, item)
	}

	switch {
	case len(plan.Items) == 0:
		plan.Mode = ModeNoop
	case lo.SomeBy(plan.Items, Item.SizeChanged):
		plan.Mode = ModeRepack
	default:
		plan.Mode = ModeInPlace
	}

	p.opts.Logger.Info("planned modification",
		"mode", plan.Mode,
		"replacements", len(plan.Items),
		"skipped", len(plan.Skipped),
	)
	return plan, nil
}

func (p *Planner) unresolved(plan *Plan, err error) error {
	if p.opts.Strict {
		return err
	}
	p.opts.Logger.Warn("skipping replacement", "error", err)
	plan.Skipped = append(plan.Skipped, err)
	return nil
}

// Patch writes each replacement's bytes at its payload position in dst.
// No header or table byte is written. It refuses repack plans.
func (p *Planner) Patch(plan *Plan, dst io.WriterAt) error {
	if plan.Mode == ModeRepack {
		return ErrSizeChanged
	}

	for _, it := range plan.Items {
		if _, err := dst.WriteAt(it.data, it.Position); err != nil {
			return fmt.Errorf("failed to patch %s/%s at %d: %w", it.Module, it.Name, it.Position, err)
		}
		p.opts.Logger.Debug("patched payload",
			"module", it.Module,
			"name", it.Name,
			"index", it.FileIndex,
			"position", it.Position,
			"size", it.NewSize,
		)
	}
	return nil
}

// PatchBytes applies a patch to an in-memory copy of the archive image.
func (p *Planner) PatchBytes(plan *Plan, image []byte) error {
	return p.Patch(plan, &sliceWriterAt{buf: image})
}

// Repack applies the replacements to the archive's payload list and
// delegates to the repack engine, returning the new archive bytes. The
// archive is updated in place.
func (p *Planner) Repack(plan *Plan) ([]byte, error) {
	if plan.Mode != ModeRepack {
		return nil, fmt.Errorf("%w: mode is %s", ErrNotRepack, plan.Mode)
	}

	payloads := p.archive.Payloads()
	for _, it := range plan.Items {
		payloads[it.FileIndex] = it.data
	}

	var stamp uint32
	if p.opts.Touch {
		stamp = p.opts.Now()
	}

	files := append([]archive.FileEntry(nil), p.archive.Files...)
	if p.opts.Touch {
		for _, it := range plan.Items {
			p.archive.Files[it.FileIndex].Timestamp = stamp
		}
	}

	out, err := p.archive.Repack(payloads)
	if err != nil {
		p.archive.Files = files
		return nil, err
	}
	return out, nil
}

type sliceWriterAt struct {
	buf []byte
}

func (s *sliceWriterAt) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(b)) > int64(len(s.buf)) {
		return 0, fmt.Errorf("%w: %d bytes at %d, image is %d bytes",
			archive.ErrBufferOverrun, len(b), off, len(s.buf))
	}
	return copy(s.buf[off:], b), nil
}
