// package explog collects the per-epoch metrics of an experiment run and,
// when saving is enabled, mirrors them to a CSV file that is rewritten in
// full after every update, so the file on disk always reflects the best
// epoch seen so far in each fold.
package explog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Header is the column layout of every log artifact the harness writes.
const Header = "fold, time, best_epoch, best_accuracy, best_validation_f1, best_test_f1\n"

// Config describes one run's logging.
type Config struct {
	ExpName string
	Dataset string
	NFolds  int
	Save    bool
	LogDir  string
}

// Logger tracks the best epoch per fold, selected by validation F1.
type Logger struct {
	cfg   Config
	now   func() time.Time
	folds map[int]*foldState
}

type foldState struct {
	start        time.Time
	elapsed      time.Duration
	epochs       int
	bestEpoch    int
	bestValF1    float64
	bestAccuracy float64
	bestTestF1   float64
}

// New constructs a Logger. The log directory is created when saving is
// enabled.
func New(cfg Config) (*Logger, error) {
	if cfg.ExpName == "" || cfg.Dataset == "" {
		return nil, errors.New("explog: experiment name and dataset are required")
	}
	if cfg.NFolds <= 0 {
		return nil, errors.Errorf("explog: non-positive fold count %d", cfg.NFolds)
	}
	if cfg.Save {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "explog: create log directory")
		}
	}
	return &Logger{
		cfg:   cfg,
		now:   time.Now,
		folds: make(map[int]*foldState),
	}, nil
}

// Path returns the log artifact location for this run.
func (l *Logger) Path() string {
	return filepath.Join(l.cfg.LogDir, fmt.Sprintf("%s_%s.csv", l.cfg.Dataset, l.cfg.ExpName))
}

// Update records one epoch of metrics for the given fold. Expected keys
// are accuracy, validation_f1 and test_f1; the best epoch of a fold is the
// one with the highest validation F1. When saving is enabled the artifact
// is rewritten in full.
func (l *Logger) Update(fold int, m map[string]float64) error {
	now := l.now()
	fs := l.folds[fold]
	if fs == nil {
		fs = &foldState{start: now, bestValF1: -1}
		l.folds[fold] = fs
	}
	fs.epochs++
	// Freeze the elapsed time of the fold being updated; folds that are
	// already done must not keep accumulating wall time in later
	// snapshots.
	fs.elapsed = now.Sub(fs.start)
	if v := m["validation_f1"]; v > fs.bestValF1 {
		fs.bestValF1 = v
		fs.bestEpoch = fs.epochs
		fs.bestAccuracy = m["accuracy"]
		fs.bestTestF1 = m["test_f1"]
	}
	if !l.cfg.Save {
		return nil
	}
	return l.snapshot()
}

// BestEpoch returns the best epoch recorded for a fold, or zero when the
// fold has no updates.
func (l *Logger) BestEpoch(fold int) int {
	if fs := l.folds[fold]; fs != nil {
		return fs.bestEpoch
	}
	return 0
}

// snapshot rewrites the whole artifact from the accumulated state.
func (l *Logger) snapshot() error {
	folds := make([]int, 0, len(l.folds))
	for k := range l.folds {
		folds = append(folds, k)
	}
	sort.Ints(folds)

	body := Header
	for _, k := range folds {
		fs := l.folds[k]
		body += fmt.Sprintf("%d,%v,%d,%v,%v,%v\n",
			k, fs.elapsed.Seconds(), fs.bestEpoch, fs.bestAccuracy, fs.bestValF1, fs.bestTestF1)
	}
	if err := os.WriteFile(l.Path(), []byte(body), 0o644); err != nil {
		return errors.Wrap(err, "explog: write log")
	}
	return nil
}
