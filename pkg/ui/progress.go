package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps track of batch progress
type StatusTracker struct {
	Total     int
	Completed int
	Failed    int
	StartTime time.Time
}

// NewStatusTracker creates a tracker for total prompts
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// RecordSuccess counts a generated image
func (st *StatusTracker) RecordSuccess() {
	st.Completed++
}

// RecordFailure counts a failed prompt
func (st *StatusTracker) RecordFailure() {
	st.Failed++
}

// Done returns how many prompts have been attempted
func (st *StatusTracker) Done() int {
	return st.Completed + st.Failed
}

// GetProgressBar returns a formatted progress bar
func (st *StatusTracker) GetProgressBar() string {
	const width = 20
	filled := 0
	if st.Total > 0 {
		filled = st.Done() * width / st.Total
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.Done(), st.Total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns images per minute
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Completed) / elapsed
}

// PrintProgress prints the current progress line
func (st *StatusTracker) PrintProgress() {
	fmt.Fprintf(out, "%s %s  %s\n",
		Magenta("[BATCH]"),
		st.GetProgressBar(),
		Dim(fmt.Sprintf("ok %d, failed %d, %.1f/min", st.Completed, st.Failed, st.GetRate())))
}

// Summary returns a one-line summary
func (st *StatusTracker) Summary() string {
	return fmt.Sprintf("%d of %d images generated, %d failed in %s",
		st.Completed, st.Total, st.Failed, st.GetElapsedTime().Round(time.Second))
}
