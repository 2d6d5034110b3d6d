package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Ramsey-B/willow/pkg/metrics"
)

// Summary accumulates the run counters every job prints on exit. Safe for
// concurrent use by pool workers. Partial failures land in Skipped; the
// summary is printed regardless of how the run ended.
type Summary struct {
	Job string

	mu           sync.Mutex
	scanned      int
	created      int
	updated      int
	noop         int
	deduplicated int
	skipped      map[string]int
	truncated    []string
}

func NewSummary(job string) *Summary {
	return &Summary{
		Job:     job,
		skipped: make(map[string]int),
	}
}

// AddScanned counts raw rows pulled from a source.
func (s *Summary) AddScanned(source string, n int) {
	s.mu.Lock()
	s.scanned += n
	s.mu.Unlock()
	metrics.RowsScanned.WithLabelValues(s.Job, source).Add(float64(n))
}

func (s *Summary) AddCreated() {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	metrics.RowsResolved.WithLabelValues(s.Job, "new").Inc()
}

func (s *Summary) AddUpdated() {
	s.mu.Lock()
	s.updated++
	s.mu.Unlock()
	metrics.RowsResolved.WithLabelValues(s.Job, "existing").Inc()
}

func (s *Summary) AddNoop() {
	s.mu.Lock()
	s.noop++
	s.mu.Unlock()
}

// AddSkipped counts a row that reached a terminal non-applied outcome.
func (s *Summary) AddSkipped(reason string) {
	s.mu.Lock()
	s.skipped[reason]++
	s.mu.Unlock()
	metrics.RowsSkipped.WithLabelValues(s.Job, reason).Inc()
}

func (s *Summary) AddDeduplicated(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.deduplicated += n
	s.mu.Unlock()
	metrics.RowsDeduplicated.WithLabelValues(s.Job).Add(float64(n))
}

// AddTruncated flags a sub-window whose row count hit the request cap.
func (s *Summary) AddTruncated(cursor string) {
	s.mu.Lock()
	s.truncated = append(s.truncated, cursor)
	s.mu.Unlock()
	metrics.WindowsTruncated.WithLabelValues(s.Job).Inc()
}

// SkippedTotal returns the total skipped row count.
func (s *Summary) SkippedTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.skipped {
		total += n
	}
	return total
}

// String renders the end-of-run report.
func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: scanned=%d created=%d updated=%d noop=%d deduplicated=%d",
		s.Job, s.scanned, s.created, s.updated, s.noop, s.deduplicated)

	if len(s.skipped) > 0 {
		reasons := make([]string, 0, len(s.skipped))
		for r := range s.skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		sb.WriteString(" skipped=[")
		for i, r := range reasons {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%s:%d", r, s.skipped[r])
		}
		sb.WriteString("]")
	}

	if len(s.truncated) > 0 {
		fmt.Fprintf(&sb, " truncated_windows=%v", s.truncated)
	}
	return sb.String()
}
