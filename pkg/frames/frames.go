// Package frames provides frame range arithmetic for sequence tasks.
//
// A Range covers the inclusive interval [Start, End]. Splitting a range
// produces contiguous sub-ranges of at most chunkSize frames each, in
// ascending order, for independent execution on separate farm workers.
package frames

import "fmt"

// Range is an inclusive frame interval.
type Range struct {
	Start int
	End   int
}

// New returns the range [start, end].
func New(start, end int) Range {
	return Range{Start: start, End: end}
}

// Len returns the number of frames covered by the range.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Contains reports whether frame lies within the range.
func (r Range) Contains(frame int) bool {
	return frame >= r.Start && frame <= r.End
}

// String renders the range as "start-end".
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Split divides the range into contiguous chunks of at most chunkSize
// frames. A chunkSize of 0 (or less) means no splitting: the whole range is
// returned as a single chunk. Chunks are emitted in ascending frame order
// and exactly cover the range.
func (r Range) Split(chunkSize int) []Range {
	if chunkSize <= 0 {
		return []Range{r}
	}

	chunks := make([]Range, 0, Count(r, chunkSize))
	cursorEnd := r.Start - 1
	for cursorEnd < r.End {
		chunkStart := cursorEnd + 1
		chunkEnd := chunkStart + chunkSize - 1
		if chunkEnd > r.End {
			chunkEnd = r.End
		}
		chunks = append(chunks, Range{Start: chunkStart, End: chunkEnd})
		cursorEnd = chunkEnd
	}
	return chunks
}

// Count returns the number of chunks Split produces for the given chunk
// size: ceil(Len / chunkSize), or 1 when chunkSize is 0.
func Count(r Range, chunkSize int) int {
	if chunkSize <= 0 {
		return 1
	}
	return (r.Len() + chunkSize - 1) / chunkSize
}

// ChunkName derives the per-chunk task name from the parent task name and
// the chunk bounds.
func ChunkName(base string, chunk Range) string {
	return fmt.Sprintf("%s_%d-%d", base, chunk.Start, chunk.End)
}
