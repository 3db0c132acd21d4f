// package datasets loads the sensor datasets used by the experiment
// harness. Each dataset is a directory of CSV recordings that are cut into
// fixed-length windows of accelerometer (and, when recorded, gyroscope)
// samples, one label per window.
package datasets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/seancxwu/dl-for-har-comparison/tensor"
)

// Dataset holds the train/test feature tensors and label slices of one
// loaded dataset. Feature tensors are samples x time x channels. The
// gyroscope tensors are nil when the dataset has no gyroscope stream or it
// was not requested.
type Dataset struct {
	XAccTrain *tensor.Tensor
	XGyrTrain *tensor.Tensor
	YTrain    []int

	XAccTest *tensor.Tensor
	XGyrTest *tensor.Tensor
	YTest    []int
}

// DataError reports a dataset that could not be resolved or loaded.
type DataError struct {
	Dataset string
	Err     error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("datasets: %s: %v", e.Dataset, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// entry describes a known dataset: whether its recordings carry gyroscope
// channels in addition to the accelerometer.
type entry struct {
	gyroscope bool
}

var registry = map[string]entry{
	"hapt":        {gyroscope: true},
	"activemiles": {gyroscope: false},
	"hhar":        {gyroscope: true},
	"fusion":      {gyroscope: true},
}

// Known reports whether id names a registered dataset.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}

// Root returns the directory holding the dataset directories, settable
// through HAR_DATA.
func Root() string {
	if dir := os.Getenv("HAR_DATA"); dir != "" {
		return dir
	}
	return "data"
}

// Load reads the named dataset, windows it to seqLen steps per sample, and
// optionally standardizes every channel with the training-set statistics.
// Gyroscope channels are only parsed when gyro is set and the dataset
// records them. Unknown identifiers and unreadable or malformed recordings
// return a *DataError.
func Load(id string, seqLen int, gyro, preprocess bool) (*Dataset, error) {
	ent, ok := registry[id]
	if !ok {
		return nil, &DataError{Dataset: id, Err: errors.Errorf("unknown dataset identifier")}
	}
	if seqLen <= 0 {
		return nil, &DataError{Dataset: id, Err: errors.Errorf("non-positive sequence length %d", seqLen)}
	}
	wantGyro := gyro && ent.gyroscope

	dir := filepath.Join(Root(), id)
	ds := &Dataset{}
	var err error
	ds.XAccTrain, ds.XGyrTrain, ds.YTrain, err = loadSplit(filepath.Join(dir, "train.csv"), seqLen, wantGyro)
	if err != nil {
		return nil, &DataError{Dataset: id, Err: err}
	}
	ds.XAccTest, ds.XGyrTest, ds.YTest, err = loadSplit(filepath.Join(dir, "test.csv"), seqLen, wantGyro)
	if err != nil {
		return nil, &DataError{Dataset: id, Err: err}
	}

	if preprocess {
		standardize(ds.XAccTrain, ds.XAccTest)
		if ds.XGyrTrain != nil {
			standardize(ds.XGyrTrain, ds.XGyrTest)
		}
	}
	return ds, nil
}

// loadSplit reads one recording file and windows it. Rows are
// label,ax,ay,az and optionally gx,gy,gz. The trailing partial window is
// dropped; each window takes the majority label of its rows.
func loadSplit(path string, seqLen int, gyro bool) (acc, gyr *tensor.Tensor, labels []int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "open recording")
	}
	defer f.Close()

	var accRows, gyrRows [][3]float64
	var rowLabels []int

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 4 && len(fields) != 7 {
			return nil, nil, nil, errors.Errorf("%s:%d: got %d columns, want 4 or 7", path, line, len(fields))
		}
		if gyro && len(fields) != 7 {
			return nil, nil, nil, errors.Errorf("%s:%d: gyroscope requested but row has no gyroscope columns", path, line)
		}
		label, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "%s:%d: label", path, line)
		}
		var row [3]float64
		for i := 0; i < 3; i++ {
			row[i], err = strconv.ParseFloat(strings.TrimSpace(fields[1+i]), 64)
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "%s:%d: accelerometer column %d", path, line, i)
			}
		}
		rowLabels = append(rowLabels, label)
		accRows = append(accRows, row)
		if gyro {
			var grow [3]float64
			for i := 0; i < 3; i++ {
				grow[i], err = strconv.ParseFloat(strings.TrimSpace(fields[4+i]), 64)
				if err != nil {
					return nil, nil, nil, errors.Wrapf(err, "%s:%d: gyroscope column %d", path, line, i)
				}
			}
			gyrRows = append(gyrRows, grow)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "read recording")
	}

	nWindows := len(accRows) / seqLen
	if nWindows == 0 {
		return nil, nil, nil, errors.Errorf("%s: %d rows is fewer than one %d-step window", path, len(accRows), seqLen)
	}

	acc = tensor.New(nWindows, seqLen, 3)
	if gyro {
		gyr = tensor.New(nWindows, seqLen, 3)
	}
	labels = make([]int, nWindows)
	for w := 0; w < nWindows; w++ {
		votes := make(map[int]int)
		for t := 0; t < seqLen; t++ {
			r := w*seqLen + t
			for c := 0; c < 3; c++ {
				acc.Set(accRows[r][c], w, t, c)
				if gyro {
					gyr.Set(gyrRows[r][c], w, t, c)
				}
			}
			votes[rowLabels[r]]++
		}
		labels[w] = majority(votes)
	}
	return acc, gyr, labels, nil
}

// majority returns the label with the most votes, lowest label winning
// ties so window labels are deterministic.
func majority(votes map[int]int) int {
	best, bestN := 0, -1
	for label, n := range votes {
		if n > bestN || (n == bestN && label < best) {
			best, bestN = label, n
		}
	}
	return best
}

// standardize shifts and scales every channel of train and test to zero
// mean and unit variance using the training-set statistics.
func standardize(train, test *tensor.Tensor) {
	channels := train.Dim(2)
	for c := 0; c < channels; c++ {
		vals := channelValues(train, c)
		mean := stat.Mean(vals, nil)
		std := stat.PopStdDev(vals, nil)
		if std == 0 {
			std = 1
		}
		scaleChannel(train, c, mean, std)
		scaleChannel(test, c, mean, std)
	}
}

func channelValues(t *tensor.Tensor, c int) []float64 {
	vals := make([]float64, 0, t.Dim(0)*t.Dim(1))
	for i := 0; i < t.Dim(0); i++ {
		for j := 0; j < t.Dim(1); j++ {
			vals = append(vals, t.At(i, j, c))
		}
	}
	return vals
}

func scaleChannel(t *tensor.Tensor, c int, mean, std float64) {
	for i := 0; i < t.Dim(0); i++ {
		for j := 0; j < t.Dim(1); j++ {
			t.Set((t.At(i, j, c)-mean)/std, i, j, c)
		}
	}
}
