package batch

import (
	"time"

	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/store"
)

// Status is the outcome of one size.
type Status string

// Outcome statuses.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped" // source missing or unreadable
	StatusFailed  Status = "failed"  // degradation or output write failed
)

// Outcome records what happened at one size.
type Outcome struct {
	Size        int           `json:"size"`
	Status      Status        `json:"status"`
	Source      string        `json:"source,omitempty"`
	Params      noise.Params  `json:"params"`
	Label       string        `json:"label,omitempty"`
	DerivedFrom int           `json:"derived_from,omitempty"`
	Original    string        `json:"original,omitempty"`
	Noisy       string        `json:"noisy,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Report summarizes a run. Outcomes are ordered by size.
type Report struct {
	RunID         string             `json:"run_id"`
	RequestedKind string             `json:"requested_kind"`
	Kind          noise.Kind         `json:"kind"`
	FellBack      bool               `json:"fell_back,omitempty"`
	Policy        consistency.Policy `json:"policy"`
	Params        noise.Params       `json:"params"`
	OutputDir     string             `json:"output_dir"`
	Comparison    string             `json:"comparison,omitempty"`
	Panels        int                `json:"panels"`
	Outcomes      []Outcome          `json:"outcomes"`
	Started       time.Time          `json:"started"`
	Duration      time.Duration      `json:"duration"`
}

// Counts totals the outcomes by status.
func (r *Report) Counts() store.Counts {
	var c store.Counts
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusOK:
			c.Succeeded++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Sizes returns the sizes with the given status, ascending.
func (r *Report) Sizes(status Status) []int {
	var out []int
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o.Size)
		}
	}
	return out
}
