package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/store"
)

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                         "—",
		1234567 * time.Nanosecond: "1ms",
		1500 * time.Millisecond:   "1.5s",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestCountsLine(t *testing.T) {
	got := countsLine(store.Counts{Succeeded: 3, Skipped: 1})
	for _, want := range []string{"3 ok", "1 skipped", "0 failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("countsLine = %q, lacks %q", got, want)
		}
	}
}

func TestBatchTable(t *testing.T) {
	r := &batch.Report{Outcomes: []batch.Outcome{
		{Size: 128, Status: batch.StatusOK, Label: "std=7.0"},
		{Size: 256, Status: batch.StatusSkipped, Error: "no source image"},
	}}
	out := batchTable(r)
	for _, want := range []string{"128", "std=7.0", "256", "skipped", "no source image"} {
		if !strings.Contains(out, want) {
			t.Errorf("table lacks %q:\n%s", want, out)
		}
	}
}
