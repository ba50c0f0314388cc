package task

import "time"

// FrameResult is the outcome of running one frame of a sequence task.
type FrameResult struct {
	Frame    int
	Status   int
	Err      error
	Duration time.Duration
}

// Failed reports whether the frame did not complete successfully.
func (r FrameResult) Failed() bool {
	return r.Status != 0 || r.Err != nil
}

// Result is the outcome of running a task. Status 0 means success; any
// other value means failure. For sequence tasks Frames holds the per-frame
// outcomes in ascending frame order.
type Result struct {
	Task     string
	Status   int
	Frames   []FrameResult
	Duration time.Duration
	Err      error
}

// FailedFrames returns the frames that failed, in ascending order.
func (r *Result) FailedFrames() []int {
	var failed []int
	for _, f := range r.Frames {
		if f.Failed() {
			failed = append(failed, f.Frame)
		}
	}
	return failed
}

// OK reports whether the task completed successfully.
func (r *Result) OK() bool {
	return r.Status == 0 && r.Err == nil
}
