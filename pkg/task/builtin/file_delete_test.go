package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/task-engine/pkg/task"
)

func newTestDelete(src string, start, end int) *FileDelete {
	f := NewFileDelete()
	f.SetName("cleanup")
	f.Set(attrSource, src)
	f.Set(task.AttrStartFrame, start)
	f.Set(task.AttrEndFrame, end)
	return f
}

func TestFileDelete_Sequence(t *testing.T) {
	dir := t.TempDir()
	writeFrameFiles(t, dir, "tmp.%04d.exr", 5, 6, 7)

	f := newTestDelete(filepath.Join(dir, "tmp.%04d.exr"), 5, 7)
	require.NoError(t, f.Validate())

	res := f.Run(context.Background())
	assert.Equal(t, 0, res.Status)

	for frame := 5; frame <= 7; frame++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("tmp.%04d.exr", frame)))
		assert.True(t, os.IsNotExist(err), "frame %d still on disk", frame)
	}
}

func TestFileDelete_MissingPathSucceeds(t *testing.T) {
	dir := t.TempDir()

	f := newTestDelete(filepath.Join(dir, "never-there.%04d.exr"), 1, 3)

	res := f.Run(context.Background())
	assert.Equal(t, 0, res.Status)
	assert.NoError(t, res.Err)
}

func TestFileDelete_DirectoryTree(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "nested", "junk.tmp"), []byte("x"), 0o644))

	f := newTestDelete(scratch, 1, 1)

	res := f.Run(context.Background())
	assert.Equal(t, 0, res.Status)

	_, err := os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))
}

func TestFileDelete_Validate(t *testing.T) {
	f := NewFileDelete()
	f.SetName("cleanup")
	f.Set(task.AttrStartFrame, 1)
	f.Set(task.AttrEndFrame, 1)

	var verr *task.ValidationError
	require.ErrorAs(t, f.Validate(), &verr)
	assert.Equal(t, attrSource, verr.Attr)
}
