package builtin

import (
	"context"
	"fmt"
	"os"

	"renderfarm/task-engine/pkg/task"
)

// TypeFileDelete is the registry name of the file delete task type.
const TypeFileDelete = "FileDelete"

var fileDeleteSchema = task.SequenceSchema.Extend(
	task.Attribute{Name: attrSource, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "File or directory tree to delete. A %04d style pattern expands to the current frame."},
)

// FileDelete removes a file or directory tree per frame. Deleting a path
// that is already gone is not an error.
type FileDelete struct {
	*task.Sequence
}

// NewFileDelete creates an unconfigured FileDelete task.
func NewFileDelete() *FileDelete {
	t := &FileDelete{}
	t.Sequence = task.NewSequence(TypeFileDelete, fileDeleteSchema, t)
	return t
}

// RunFrame deletes the source for one frame.
func (f *FileDelete) RunFrame(ctx context.Context, frame int) (int, error) {
	src := expandFramePattern(task.AttrOr(f, attrSource, ""), frame)

	if err := os.RemoveAll(src); err != nil {
		return 1, fmt.Errorf("delete %s: %w", src, err)
	}
	return 0, nil
}

func init() {
	task.Register(TypeFileDelete, func() task.Task { return NewFileDelete() })
}
