package builtin

import (
	"context"
	"fmt"

	"renderfarm/task-engine/pkg/task"
)

// TypeFileCopy is the registry name of the file copy task type.
const TypeFileCopy = "FileCopy"

var fileCopySchema = task.SequenceSchema.Extend(
	task.Attribute{Name: attrSource, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "File to copy. A %04d style pattern expands to the current frame."},
	task.Attribute{Name: attrDestination, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "Destination file or directory. A directory needs a trailing slash or must already exist."},
)

// FileCopy copies a file per frame. A %04d style pattern in either path
// selects that frame's file; paths without a pattern repeat the same
// copy.
type FileCopy struct {
	*task.Sequence
}

// NewFileCopy creates an unconfigured FileCopy task.
func NewFileCopy() *FileCopy {
	t := &FileCopy{}
	t.Sequence = task.NewSequence(TypeFileCopy, fileCopySchema, t)
	return t
}

// RunFrame copies the source for one frame.
func (f *FileCopy) RunFrame(ctx context.Context, frame int) (int, error) {
	src := expandFramePattern(task.AttrOr(f, attrSource, ""), frame)
	dst := resolveDestination(src, expandFramePattern(task.AttrOr(f, attrDestination, ""), frame))

	if err := copyFile(src, dst); err != nil {
		return 1, fmt.Errorf("copy %s: %w", src, err)
	}
	return 0, nil
}

func init() {
	task.Register(TypeFileCopy, func() task.Task { return NewFileCopy() })
}
