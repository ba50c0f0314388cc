package task

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/frames"
	"renderfarm/task-engine/pkg/logger"
)

// Names of the attributes every sequence task type declares.
const (
	AttrStartFrame = "start_frame"
	AttrEndFrame   = "end_frame"
	AttrChunkSize  = "chunk_size"
)

// DefaultChunkSize is the number of frames per chunk when a sequence task
// does not set chunk_size.
const DefaultChunkSize = 8

// SequenceSchema declares the attributes shared by every range-based task
// type, appended after the base attributes.
var SequenceSchema = BaseSchema.Extend(
	Attribute{Name: AttrStartFrame, Type: TypeInt, Required: true, Configurable: true, Serialize: true,
		Description: "First frame of the range, inclusive."},
	Attribute{Name: AttrEndFrame, Type: TypeInt, Required: true, Configurable: true, Serialize: true,
		Description: "Last frame of the range, inclusive."},
	Attribute{Name: AttrChunkSize, Type: TypeInt, Default: DefaultChunkSize, Configurable: true, Serialize: true,
		Description: "Frames per exported chunk. 0 disables chunking."},
)

// FrameRunner does the per-frame work of a sequence task.
type FrameRunner interface {
	RunFrame(ctx context.Context, frame int) (int, error)
}

// Sequencer is implemented by range-based tasks that can split themselves
// into independent per-chunk clones.
type Sequencer interface {
	Task
	Range() frames.Range
	ChunkSize() int
	Chunks() []Task
}

// Sequence is the shared state and frame loop for range-based task types.
// Concrete types embed *Sequence and implement FrameRunner.
type Sequence struct {
	*Base
	runner FrameRunner
}

// NewSequence creates the shared state for a range-based task instance.
// The schema must extend SequenceSchema; runner does the per-frame work.
func NewSequence(typeName string, schema Schema, runner FrameRunner) *Sequence {
	return &Sequence{
		Base:   NewBase(typeName, schema),
		runner: runner,
	}
}

// StartFrame returns the first frame of the range.
func (s *Sequence) StartFrame() int {
	n, _ := IntAttr(s, AttrStartFrame)
	return n
}

// EndFrame returns the last frame of the range.
func (s *Sequence) EndFrame() int {
	n, _ := IntAttr(s, AttrEndFrame)
	return n
}

// ChunkSize returns the configured frames-per-chunk count.
func (s *Sequence) ChunkSize() int {
	n, ok := IntAttr(s, AttrChunkSize)
	if !ok {
		return DefaultChunkSize
	}
	return n
}

// Range returns the inclusive frame range covered by this instance.
func (s *Sequence) Range() frames.Range {
	return frames.New(s.StartFrame(), s.EndFrame())
}

// Validate checks the base schema, then the frame range invariants.
func (s *Sequence) Validate() error {
	if err := s.Base.Validate(); err != nil {
		return err
	}

	if s.ChunkSize() < 0 {
		return NewValidationError(s.Name(), AttrChunkSize, "chunk size must not be negative")
	}

	start, end := s.StartFrame(), s.EndFrame()
	if end < start {
		return NewValidationError(s.Name(), "",
			fmt.Sprintf("invalid frame range: %d - %d", start, end))
	}
	if start < 0 || end < 0 {
		return NewValidationError(s.Name(), "",
			fmt.Sprintf("invalid frame range (negative frame bounds): %d - %d", start, end))
	}
	return nil
}

// WithRange returns a new, independent instance covering chunk and named
// name. The receiver is never modified.
func (s *Sequence) WithRange(chunk frames.Range, name string) *Sequence {
	clone := &Sequence{
		Base:   NewBase(s.TypeName(), s.Schema()),
		runner: s.runner,
	}
	clone.ReplaceValues(s.CloneValues())
	clone.Set(AttrStartFrame, chunk.Start)
	clone.Set(AttrEndFrame, chunk.End)
	clone.Set(AttrTaskName, name)
	return clone
}

// Chunks splits the instance into per-chunk clones according to its chunk
// size, in ascending frame order. With chunk size 0 the instance itself is
// returned unchunked.
func (s *Sequence) Chunks() []Task {
	size := s.ChunkSize()
	if size <= 0 {
		return []Task{s}
	}

	splits := s.Range().Split(size)
	chunks := make([]Task, 0, len(splits))
	for _, c := range splits {
		chunks = append(chunks, s.WithRange(c, frames.ChunkName(s.Name(), c)))
	}
	return chunks
}

// Run calls Setup, then the frame worker once per frame in ascending order.
// A failed frame does not stop later frames; the failure set is aggregated
// into the result. Cancelling the context stops the loop between frames.
func (s *Sequence) Run(ctx context.Context) *Result {
	started := time.Now()
	result := &Result{Task: s.Name()}

	if s.runner == nil {
		result.Status = 1
		result.Err = fmt.Errorf("task '%s': no frame worker attached", s.Name())
		result.Duration = time.Since(started)
		return result
	}

	if preparer, ok := s.runner.(interface{ Setup() error }); ok {
		if err := preparer.Setup(); err != nil {
			result.Status = 1
			result.Err = fmt.Errorf("task '%s': setup failed: %w", s.Name(), err)
			result.Duration = time.Since(started)
			return result
		}
	}

	r := s.Range()
	for frame := r.Start; frame <= r.End; frame++ {
		select {
		case <-ctx.Done():
			result.Status = 1
			result.Err = ctx.Err()
			result.Duration = time.Since(started)
			return result
		default:
		}

		fr := s.runFrame(ctx, frame)
		result.Frames = append(result.Frames, fr)
		if fr.Failed() {
			result.Status = 1
		}
	}

	if failed := result.FailedFrames(); len(failed) > 0 {
		result.Err = NewExecutionError(s.Name(), failed)
		logger.Error("sequence frames failed",
			zap.String("task", s.Name()),
			zap.Ints("frames", failed))
	}

	result.Duration = time.Since(started)
	return result
}

// runFrame invokes the frame worker, converting a panic into that frame's
// failure so the loop can continue.
func (s *Sequence) runFrame(ctx context.Context, frame int) (fr FrameResult) {
	fr.Frame = frame
	started := time.Now()

	defer func() {
		fr.Duration = time.Since(started)
		if r := recover(); r != nil {
			logger.Error("frame worker panicked",
				zap.String("task", s.Name()),
				zap.Int("frame", frame),
				zap.Any("panic", r))
			fr.Status = 1
			fr.Err = fmt.Errorf("frame %d panicked: %v", frame, r)
		}
	}()

	status, err := s.runner.RunFrame(ctx, frame)
	fr.Status = status
	fr.Err = err
	if err != nil && fr.Status == 0 {
		fr.Status = 1
	}
	return fr
}
