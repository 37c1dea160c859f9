package planner_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/planner"
	"github.com/ossyrian/modarc/internal/testutil"
)

func sample(t *testing.T) ([]byte, *archive.Archive) {
	t.Helper()
	return testutil.BuildArchive(t,
		[]testutil.TestFile{
			{Name: "TITLE.PIC", Data: []byte("title-picture")},
			{Name: "MUSIC.XMI", Data: []byte("music")},
			{Name: "LEVEL.DAT", Data: []byte("level-data-0123")},
		},
		[]testutil.TestModule{
			{Name: "MENU", Slots: []uint16{0, archive.Dummy, 1}},
			{Name: "GAME", Slots: []uint16{2, 1}},
		},
	)
}

func newPlanner(a *archive.Archive, opts planner.Options) *planner.Planner {
	opts.Logger = testutil.DiscardLogger()
	return planner.New(a, opts)
}

func TestPlan_SameSizeIsInPlace(t *testing.T) {
	_, a := sample(t)
	p := newPlanner(a, planner.Options{})

	plan, err := p.Plan([]planner.Request{
		{Module: "menu", Name: "title.pic", Data: []byte("TITLE-PICTURE")},
		{Module: "GAME", Name: "MUSIC.XMI", Data: []byte("MUSIC")},
	})
	require.NoError(t, err)

	assert.Equal(t, planner.ModeInPlace, plan.Mode)
	require.Len(t, plan.Items, 2)
	assert.Equal(t, 0, plan.Items[0].FileIndex)
	assert.Equal(t, "MENU", plan.Items[0].Module)
	assert.Equal(t, 1, plan.Items[1].FileIndex)
	assert.Equal(t, 1, plan.Items[1].Slot)
}

func TestPlan_SizeChangeIsRepack(t *testing.T) {
	_, a := sample(t)
	p := newPlanner(a, planner.Options{})

	plan, err := p.Plan([]planner.Request{
		{Module: "MENU", Name: "TITLE.PIC", Data: []byte("TITLE-PICTURE")},
		{Module: "GAME", Name: "LEVEL.DAT", Data: []byte("short")},
	})
	require.NoError(t, err)
	assert.Equal(t, planner.ModeRepack, plan.Mode)

	err = p.Patch(plan, &bytesWriterAt{})
	assert.ErrorIs(t, err, planner.ErrSizeChanged)
}

func TestPlan_Unresolved(t *testing.T) {
	reqs := []planner.Request{
		{Module: "MENU", Name: "LEVEL.DAT", Data: []byte("x")}, // not in MENU's slots
		{Module: "NOPE", Name: "TITLE.PIC", Data: []byte("x")},
		{Module: "GAME", Name: "LEVEL.DAT", Data: []byte("LEVEL-DATA-0123")},
	}

	t.Run("default skips", func(t *testing.T) {
		_, a := sample(t)
		plan, err := newPlanner(a, planner.Options{}).Plan(reqs)
		require.NoError(t, err)
		assert.Len(t, plan.Skipped, 2)
		for _, skipped := range plan.Skipped {
			assert.ErrorIs(t, skipped, planner.ErrEntryNotFound)
		}
		require.Len(t, plan.Items, 1)
		assert.Equal(t, planner.ModeInPlace, plan.Mode)
	})

	t.Run("strict fails", func(t *testing.T) {
		_, a := sample(t)
		_, err := newPlanner(a, planner.Options{Strict: true}).Plan(reqs)
		assert.ErrorIs(t, err, planner.ErrEntryNotFound)
	})

	t.Run("nothing resolved", func(t *testing.T) {
		_, a := sample(t)
		plan, err := newPlanner(a, planner.Options{}).Plan(reqs[:2])
		require.NoError(t, err)
		assert.Equal(t, planner.ModeNoop, plan.Mode)
	})
}

func TestPatch_Locality(t *testing.T) {
	original, a := sample(t)
	p := newPlanner(a, planner.Options{Touch: true, Now: func() uint32 { return 42 }})

	plan, err := p.Plan([]planner.Request{
		{Module: "GAME", Name: "LEVEL.DAT", Data: []byte("LEVEL-DATA-0123")},
	})
	require.NoError(t, err)
	require.Equal(t, planner.ModeInPlace, plan.Mode)

	image := bytes.Clone(original)
	require.NoError(t, p.PatchBytes(plan, image))

	entry := a.Files[2]
	start := int(a.Header.DataOffset + entry.Offset)
	end := start + int(entry.Size)

	assert.Equal(t, original[:start], image[:start], "bytes before the patched range changed")
	assert.Equal(t, original[end:], image[end:], "bytes after the patched range changed")
	assert.Equal(t, []byte("LEVEL-DATA-0123"), image[start:end])

	// touch has no effect on the in-place path
	reread, err := archive.Read(image, testutil.Quiet())
	require.NoError(t, err)
	assert.Equal(t, a.Files[2].Timestamp, reread.Files[2].Timestamp)
}

func TestPatch_WriterAt(t *testing.T) {
	original, a := sample(t)
	p := newPlanner(a, planner.Options{})

	plan, err := p.Plan([]planner.Request{
		{Module: "MENU", Name: "MUSIC.XMI", Data: []byte("MUSIC")},
	})
	require.NoError(t, err)

	w := &bytesWriterAt{buf: bytes.Clone(original)}
	require.NoError(t, p.Patch(plan, w))

	reread, err := archive.Read(w.buf, testutil.Quiet())
	require.NoError(t, err)
	assert.Equal(t, []byte("MUSIC"), reread.Payload(1))
	assert.Equal(t, []byte("title-picture"), reread.Payload(0))
}

func TestRepack_AppliesReplacementsAndTouch(t *testing.T) {
	_, a := sample(t)
	p := newPlanner(a, planner.Options{Touch: true, Now: func() uint32 { return 0x12345678 }})

	plan, err := p.Plan([]planner.Request{
		{Module: "GAME", Name: "LEVEL.DAT", Data: []byte("a much longer level payload than before")},
	})
	require.NoError(t, err)
	require.Equal(t, planner.ModeRepack, plan.Mode)

	out, err := p.Repack(plan)
	require.NoError(t, err)

	b, err := archive.Read(out, testutil.Quiet())
	require.NoError(t, err)
	assert.Equal(t, []byte("a much longer level payload than before"), b.Payload(2))
	assert.Equal(t, []byte("music"), b.Payload(1))
	assert.Equal(t, uint32(0x12345678), b.Files[2].Timestamp)
	assert.Equal(t, uint32(0x1CCF6DAF), b.Files[1].Timestamp, "untouched entries keep their timestamp")
	assert.Equal(t, a.ModMap, b.ModMap)

	idx, ok := b.Lookup("GAME", "LEVEL.DAT")
	require.True(t, ok)
	assert.Equal(t, 2, idx, "slot mapping must not change")
}

func TestRepack_RefusesInPlacePlan(t *testing.T) {
	_, a := sample(t)
	p := newPlanner(a, planner.Options{})

	plan, err := p.Plan([]planner.Request{
		{Module: "MENU", Name: "MUSIC.XMI", Data: []byte("MUSIC")},
	})
	require.NoError(t, err)

	_, err = p.Repack(plan)
	assert.ErrorIs(t, err, planner.ErrNotRepack)
}

func TestPlan_LastRequestWins(t *testing.T) {
	_, a := sample(t)
	p := newPlanner(a, planner.Options{})

	plan, err := p.Plan([]planner.Request{
		{Module: "MENU", Name: "MUSIC.XMI", Data: []byte("first, longer")},
		{Module: "GAME", Name: "MUSIC.XMI", Data: []byte("MUSIC")},
	})
	require.NoError(t, err)
	require.Len(t, plan.Items, 1)
	assert.Equal(t, uint32(5), plan.Items[0].NewSize)
	assert.Equal(t, planner.ModeInPlace, plan.Mode)
}

type bytesWriterAt struct {
	buf []byte
}

func (w *bytesWriterAt) WriteAt(b []byte, off int64) (int, error) {
	return copy(w.buf[off:], b), nil
}
