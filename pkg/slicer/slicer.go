// Package slicer splits a large temporal range into bounded sub-windows so no
// single upstream request risks the platform's row and offset limits.
package slicer

import "time"

// Window is one [From, To) sub-range. Truncated is set by the caller when the
// window's result count hit the configured per-request cap, meaning rows were
// probably lost. Truncated windows are surfaced, not automatically re-split.
type Window struct {
	From      time.Time
	To        time.Time
	Truncated bool
}

// Cursor returns the window's ordering key, used for checkpointing.
func (w Window) Cursor() string {
	return w.From.Format("2006-01-02")
}

// Months produces calendar-month windows covering [from, to) with no gaps or
// overlaps. The sequence is finite and restartable: pass a later from to
// resume after a checkpoint.
func Months(from, to time.Time) []Window {
	from = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = to.UTC()

	var windows []Window
	for cur := from; cur.Before(to); {
		next := cur.AddDate(0, 1, 0)
		if next.After(to) {
			next = to
		}
		windows = append(windows, Window{From: cur, To: next})
		cur = next
	}
	return windows
}

// After filters windows to those starting strictly after the cursor, for
// resumption. An empty cursor returns all windows.
func After(windows []Window, cursor string) []Window {
	if cursor == "" {
		return windows
	}
	resumed := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Cursor() > cursor {
			resumed = append(resumed, w)
		}
	}
	return resumed
}
