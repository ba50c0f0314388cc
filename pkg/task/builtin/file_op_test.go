package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFramePattern(t *testing.T) {
	cases := []struct {
		path  string
		frame int
		want  string
	}{
		{"/shots/sq10/comp.%04d.exr", 12, "/shots/sq10/comp.0012.exr"},
		{"/shots/sq10/comp.%d.exr", 12, "/shots/sq10/comp.12.exr"},
		{"/shots/sq10/comp.%06d.exr", 12, "/shots/sq10/comp.000012.exr"},
		{"plates/scan.%02d.dpx", 7, "plates/scan.07.dpx"},
		{"/shots/sq10/comp.exr", 12, "/shots/sq10/comp.exr"},
		{"", 12, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, expandFramePattern(tc.path, tc.frame), tc.path)
	}
}

func TestResolveDestination(t *testing.T) {
	dir := t.TempDir()

	// Trailing separator marks a directory even when it does not exist.
	assert.Equal(t, filepath.Join(dir, "missing", "a.exr"),
		resolveDestination("/src/a.exr", filepath.Join(dir, "missing")+"/"))

	// An existing directory needs no trailing separator.
	assert.Equal(t, filepath.Join(dir, "a.exr"), resolveDestination("/src/a.exr", dir))

	// Anything else is a concrete file path.
	assert.Equal(t, "/out/b.exr", resolveDestination("/src/a.exr", "/out/b.exr"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))
	dst := filepath.Join(dir, "nested", "deep", "dst.txt")

	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()

	err := copyFile(filepath.Join(dir, "absent.txt"), filepath.Join(dir, "out.txt"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

// writeFrameFiles creates one file per frame following a %04d style
// pattern.
func writeFrameFiles(t *testing.T, dir, pattern string, frames ...int) {
	t.Helper()
	for _, frame := range frames {
		path := filepath.Join(dir, fmt.Sprintf(pattern, frame))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("frame %d", frame)), 0o644))
	}
}
