package calendar

import "fmt"

// InvalidCountError reports a count that is out of range for Op: negative
// where zero is allowed, or non-positive where a positive count is required.
type InvalidCountError struct {
	Op    string
	Count int
}

func (e *InvalidCountError) Error() string {
	return fmt.Sprintf("calendar: %s: invalid count %d", e.Op, e.Count)
}

// MisalignedChunkError reports a day count that does not split into whole
// weeks of Size days.
type MisalignedChunkError struct {
	Count int
	Size  int
}

func (e *MisalignedChunkError) Error() string {
	return fmt.Sprintf("calendar: %d days is not a multiple of %d", e.Count, e.Size)
}
