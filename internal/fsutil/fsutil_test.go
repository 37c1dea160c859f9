package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/modarc/internal/fsutil"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.dat")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("first"), 0o644))
	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("second"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCheckOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))

	assert.NoError(t, fsutil.CheckOverwrite(filepath.Join(dir, "missing"), fsutil.Never))
	assert.NoError(t, fsutil.CheckOverwrite(existing, fsutil.Always))
	assert.ErrorIs(t, fsutil.CheckOverwrite(existing, fsutil.Never), fsutil.ErrOverwriteDeclined)
	assert.ErrorIs(t, fsutil.CheckOverwrite(existing, nil), fsutil.ErrOverwriteDeclined)
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"LOGO.PCX":  "LOGO.PCX",
		`A\B/C:D`:   "A_B_C_D",
		"..":        "_",
		"":          "_",
		"TAB\tNAME": "TAB_NAME",
	}
	for in, want := range tests {
		assert.Equal(t, want, fsutil.SafeName(in), "input %q", in)
	}
}
