package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/seancxwu/dl-for-har-comparison/explog"
)

// FoldResult is the outcome of one cross-validation fold.
type FoldResult struct {
	Fold         int
	Elapsed      time.Duration
	Epochs       int
	Accuracy     float64
	ValidationF1 float64
	TestF1       float64
}

// Report accumulates fold results over a run. Snapshot writes the whole
// report; rewriting after every fold keeps the artifact consistent with the
// in-memory state even if a later fold aborts the run.
type Report struct {
	rows []FoldResult
}

// Append adds one fold's result.
func (r *Report) Append(fr FoldResult) {
	r.rows = append(r.rows, fr)
}

// Rows returns the accumulated results.
func (r *Report) Rows() []FoldResult {
	return r.rows
}

// Snapshot rewrites path with the full report: the header line followed by
// one row per completed fold.
func (r *Report) Snapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "harness: create log directory")
	}
	body := explog.Header
	for _, row := range r.rows {
		body += fmt.Sprintf("%d,%v,%d,%v,%v,%v\n",
			row.Fold, row.Elapsed.Seconds(), row.Epochs, row.Accuracy, row.ValidationF1, row.TestF1)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return errors.Wrap(err, "harness: write report")
	}
	return nil
}
