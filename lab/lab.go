package lab

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/seancxwu/dl-for-har-comparison/tensor"
)

// Set pairs a feature tensor with its labels, the unit of data handed to
// the iterative training loop.
type Set struct {
	X *tensor.Tensor
	Y []int
}

// Model is the handle the harness drives. Non-iterative models implement
// Fit/Predict and report the epoch count their fitting consumed; iterative
// models implement Train, which runs the full loop and reports per-epoch
// metrics through the update callback. Calling the wrong family returns an
// error.
type Model interface {
	// Fit trains the model on the rows of x with labels y.
	Fit(x *mat.Dense, y []int) error
	// Predict returns the predicted class per row of x.
	Predict(x *mat.Dense) []int
	// NEpochs reports the number of epochs the last Fit or Train ran.
	NEpochs() int
	// Train runs the iterative loop over train, scoring val and test each
	// epoch and passing the metrics to update.
	Train(train, val, test Set, update func(epoch int, metrics map[string]float64)) error
	// String describes the model for display.
	String() string
}

// Build parses the definition at defPath and constructs a model for
// nClasses output classes, seeded deterministically.
func Build(defPath string, nClasses int, seed int64) (Model, error) {
	def, err := LoadDefinition(defPath)
	if err != nil {
		return nil, err
	}
	switch def.Arch {
	case ArchDBN:
		return newDBN(def, nClasses, seed), nil
	case ArchCNN:
		return newConvNet(def, nClasses, seed), nil
	default:
		// Unrecognized types train iteratively on flattened features with
		// no convolutional stage.
		flat := *def
		flat.Filters = 0
		return newConvNet(&flat, nClasses, seed), nil
	}
}

// argmax returns the index of the largest value in row.
func argmax(row []float64) int {
	best, bestV := 0, math.Inf(-1)
	for i, v := range row {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best
}

// softmaxRow exponentiates row in place into a probability vector, shifted
// by the max for stability.
func softmaxRow(row []float64) {
	max := math.Inf(-1)
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - max)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}
