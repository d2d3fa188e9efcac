package sweep

import (
	"time"

	"github.com/matzehuels/grainscale/pkg/store"
)

// Status of one point.
type Status string

const (
	StatusOK      Status = "ok"
	StatusCached  Status = "cached"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome of one point.
type Result struct {
	Point    Point         `json:"point"`
	Status   Status        `json:"status"`
	ExitCode int           `json:"exit_code"`
	LogPath  string        `json:"log_path,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary collects every point of one sweep.
type Summary struct {
	RunID      string        `json:"run_id"`
	OutputRoot string        `json:"output_root"`
	Results    []Result      `json:"results"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
}

// Counts totals the results. Cached points count as succeeded; skipped
// inputs as skipped.
func (s *Summary) Counts() store.Counts {
	var c store.Counts
	for _, r := range s.Results {
		switch r.Status {
		case StatusOK, StatusCached:
			c.Succeeded++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Cached is the number of points skipped because they had already succeeded.
func (s *Summary) Cached() int {
	return len(s.Filter(StatusCached))
}

// Filter returns the results with status.
func (s *Summary) Filter(status Status) []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
