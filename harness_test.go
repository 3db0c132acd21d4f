package harness

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seancxwu/dl-for-har-comparison/datasets"
	"github.com/seancxwu/dl-for-har-comparison/lab"
)

// writeDataset writes train/test recordings for the named dataset with one
// 100-step window per entry in labels.
func writeDataset(t *testing.T, root, id string, trainLabels, testLabels []int, gyro bool) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	write := func(name string, labels []int) {
		rng := rand.New(rand.NewSource(7))
		var b strings.Builder
		for _, label := range labels {
			for i := 0; i < seqLength; i++ {
				// Shift the signal per class so models have something to find.
				base := float64(label)
				fmt.Fprintf(&b, "%d,%.4f,%.4f,%.4f", label,
					base+rng.NormFloat64(), base+rng.NormFloat64(), base+rng.NormFloat64())
				if gyro {
					fmt.Fprintf(&b, ",%.4f,%.4f,%.4f",
						rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64())
				}
				b.WriteByte('\n')
			}
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
	}
	write("train.csv", trainLabels)
	write("test.csv", testLabels)
}

func writeDefinition(t *testing.T, expDir, id, body string) {
	t.Helper()
	path := filepath.Join(expDir, id+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func halfAndHalf(n int) []int {
	labels := make([]int, n)
	for i := n / 2; i < n; i++ {
		labels[i] = 1
	}
	return labels
}

func TestRunDBNScenario(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")
	logDir := filepath.Join(root, "log")

	// 100 training windows split 50/50, 10 test windows.
	writeDataset(t, root, "hapt", halfAndHalf(100), halfAndHalf(10), false)
	writeDefinition(t, expDir, "dbn/t1_exp", `{
		"gyroscope": false, "type": "dbn", "name": "t1", "preprocess": false,
		"epochs": 2, "hidden": [8], "learning_rate": 0.05
	}`)

	exp, err := New(Config{
		Experiment: "dbn/t1_exp",
		Dataset:    "hapt",
		NFolds:     5,
		Save:       true,
		ExpDir:     expDir,
		LogDir:     logDir,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, exp.Run())

	rows := exp.Report().Rows()
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Fold)
		assert.Equal(t, 2, row.Epochs)
		assert.GreaterOrEqual(t, row.Accuracy, 0.0)
		assert.LessOrEqual(t, row.Accuracy, 1.0)
	}

	// Header plus one data row per fold, rewritten in full each fold. The
	// file is named after the definition file, not the display name.
	b, err := os.ReadFile(filepath.Join(logDir, "hapt_t1_exp.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "fold, time, best_epoch, best_accuracy, best_validation_f1, best_test_f1", strings.TrimSpace(lines[0]))
	for i := 1; i < 6; i++ {
		assert.True(t, strings.HasPrefix(lines[i], fmt.Sprintf("%d,", i)))
	}
}

func TestRunCNNScenario(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")
	logDir := filepath.Join(root, "log")

	writeDataset(t, root, "hhar", halfAndHalf(20), halfAndHalf(6), true)
	writeDefinition(t, expDir, "cnn/c1_exp", `{
		"gyroscope": true, "type": "cnn", "name": "c1", "preprocess": true,
		"epochs": 2, "batch_size": 8, "learning_rate": 0.05, "filters": 2, "kernel": 5
	}`)

	exp, err := New(Config{
		Experiment: "cnn/c1_exp",
		Dataset:    "hhar",
		NFolds:     2,
		Save:       true,
		ExpDir:     expDir,
		LogDir:     logDir,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, exp.Run())

	// The iterative path reports through the logger, which wrote the log
	// artifact: header plus one best-epoch row per fold.
	b, err := os.ReadFile(filepath.Join(logDir, "hhar_c1.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)

	// The non-iterative report stays empty on this path.
	assert.Empty(t, exp.Report().Rows())
}

// oneBased labels half the windows 1 and half 2, the labeling real
// recordings like HAPT use.
func oneBased(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = 1
		if i >= n/2 {
			labels[i] = 2
		}
	}
	return labels
}

func TestRunOneBasedLabelsFit(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")

	writeDataset(t, root, "hapt", oneBased(20), oneBased(6), false)
	writeDefinition(t, expDir, "dbn/t2_exp", `{
		"gyroscope": false, "type": "dbn", "name": "t2", "preprocess": false,
		"epochs": 1, "hidden": [4], "learning_rate": 0.05
	}`)

	exp, err := New(Config{
		Experiment: "dbn/t2_exp",
		Dataset:    "hapt",
		NFolds:     2,
		ExpDir:     expDir,
		LogDir:     filepath.Join(root, "log"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, exp.Run())
	require.Len(t, exp.Report().Rows(), 2)
}

func TestRunOneBasedLabelsIterative(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")

	writeDataset(t, root, "activemiles", oneBased(20), oneBased(6), false)
	writeDefinition(t, expDir, "mlp/m1_exp", `{
		"gyroscope": false, "type": "mlp", "name": "m1", "preprocess": false,
		"epochs": 1, "batch_size": 8, "learning_rate": 0.05
	}`)

	exp, err := New(Config{
		Experiment: "mlp/m1_exp",
		Dataset:    "activemiles",
		NFolds:     2,
		ExpDir:     expDir,
		LogDir:     filepath.Join(root, "log"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, exp.Run())
}

func TestRunMissingTypeKey(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")
	writeDefinition(t, expDir, "bad/b1_exp", `{
		"gyroscope": false, "name": "b1", "preprocess": false
	}`)

	exp, err := New(Config{
		Experiment: "bad/b1_exp",
		// The dataset does not exist either: the configuration error must
		// win because the definition is parsed before any data loading.
		Dataset: "hapt",
		NFolds:  5,
		ExpDir:  expDir,
	}, nil)
	require.NoError(t, err)

	err = exp.Run()
	var cerr *lab.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, exp.Report().Rows())
}

func TestRunUnknownDataset(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")
	writeDefinition(t, expDir, "dbn/t1_exp", `{
		"gyroscope": false, "type": "dbn", "name": "t1", "preprocess": false
	}`)

	exp, err := New(Config{
		Experiment: "dbn/t1_exp",
		Dataset:    "unknownset",
		NFolds:     5,
		ExpDir:     expDir,
	}, nil)
	require.NoError(t, err)

	err = exp.Run()
	var derr *datasets.DataError
	require.ErrorAs(t, err, &derr)
	assert.Empty(t, exp.Report().Rows())
}

func TestGyroGating(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HAR_DATA", root)
	expDir := filepath.Join(root, "exp")

	// activemiles has no gyroscope stream: requesting it must fall back to
	// accelerometer channels only rather than fail.
	writeDataset(t, root, "activemiles", halfAndHalf(10), halfAndHalf(4), false)
	writeDefinition(t, expDir, "dbn/g1_exp", `{
		"gyroscope": true, "type": "dbn", "name": "g1", "preprocess": false,
		"epochs": 1, "hidden": [4]
	}`)

	exp, err := New(Config{
		Experiment: "dbn/g1_exp",
		Dataset:    "activemiles",
		NFolds:     2,
		ExpDir:     expDir,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, exp.Run())
	require.Len(t, exp.Report().Rows(), 2)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Experiment: "e", Dataset: "d", NFolds: 0}, nil)
	require.Error(t, err)
	// A single fold cannot be partitioned; it must error here rather than
	// fail inside the run.
	_, err = New(Config{Experiment: "e", Dataset: "d", NFolds: 1}, nil)
	require.Error(t, err)
	_, err = New(Config{Dataset: "d", NFolds: 5}, nil)
	require.Error(t, err)
}
