package lab

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/seancxwu/dl-for-har-comparison/metrics"
	"github.com/seancxwu/dl-for-har-comparison/tensor"
)

// convNet is the iterative handle: a temporal convolution over all input
// channels, ReLU, global average pooling, and a dense softmax readout,
// trained with minibatch SGD. With zero filters the convolutional stage is
// skipped and the readout trains directly on flattened features, which is
// the path unrecognized architecture types take.
type convNet struct {
	def      *Definition
	nClasses int
	seed     int64

	seqLen   int // conv path input layout
	channels int
	denseIn  int

	wc [][]float64 // filters x kernel*channels
	bc []float64
	wv [][]float64 // denseIn x nClasses
	bv []float64

	epochs int
}

func newConvNet(def *Definition, nClasses int, seed int64) *convNet {
	return &convNet{def: def, nClasses: nClasses, seed: seed}
}

func (c *convNet) String() string {
	if c.def.Filters > 0 {
		return fmt.Sprintf("cnn(filters=%d, kernel=%d, classes=%d)", c.def.Filters, c.def.Kernel, c.nClasses)
	}
	return fmt.Sprintf("%s(dense, classes=%d)", c.def.Type, c.nClasses)
}

func (c *convNet) NEpochs() int { return c.epochs }

func (c *convNet) Fit(x *mat.Dense, y []int) error {
	return errors.New("lab: iterative model does not fit in one shot, use Train")
}

// Train runs the SGD loop over train, scoring val and test after every
// epoch and reporting the metrics through update. Epochs are 1-indexed in
// the callback.
func (c *convNet) Train(train, val, test Set, update func(int, map[string]float64)) error {
	if train.X.Dim(0) != len(train.Y) {
		return errors.Errorf("lab: %d samples but %d labels", train.X.Dim(0), len(train.Y))
	}
	for _, label := range train.Y {
		if label < 0 || label >= c.nClasses {
			return errors.Errorf("lab: label %d outside %d classes", label, c.nClasses)
		}
	}
	rowLen := train.X.Len() / train.X.Dim(0)
	if c.def.Filters > 0 {
		shape := train.X.Shape()
		if len(shape) != 4 {
			return errors.Errorf("lab: convolutional input must be 4-d, got shape %v", shape)
		}
		c.seqLen, c.channels = shape[2], shape[3]
		if c.def.Kernel > c.seqLen {
			return errors.Errorf("lab: kernel %d longer than sequence %d", c.def.Kernel, c.seqLen)
		}
	}

	rng := rand.New(rand.NewSource(c.seed))
	c.initParams(rowLen, rng)

	trainX := flatSamples(train.X)
	valX := flatSamples(val.X)
	testX := flatSamples(test.X)

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= c.def.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		loss := c.runEpoch(trainX, train.Y, order)

		valPred := c.predictSamples(valX)
		testPred := c.predictSamples(testX)
		update(epoch, map[string]float64{
			"loss":          loss,
			"accuracy":      metrics.Accuracy(test.Y, testPred),
			"validation_f1": metrics.WeightedF1(val.Y, valPred),
			"test_f1":       metrics.WeightedF1(test.Y, testPred),
		})
		c.epochs = epoch
	}
	return nil
}

// Predict classifies the rows of x with the trained parameters. Rows are
// flattened samples in the training layout.
func (c *convNet) Predict(x *mat.Dense) []int {
	if c.wv == nil {
		panic("lab: predict before train")
	}
	n, cols := x.Dims()
	out := make([]int, n)
	row := make([]float64, cols)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		_, z := c.forward(row)
		out[i] = argmax(c.logitsOf(z))
	}
	return out
}

func (c *convNet) initParams(rowLen int, rng *rand.Rand) {
	if c.def.Filters > 0 {
		fan := c.def.Kernel * c.channels
		scale := 1 / math.Sqrt(float64(fan))
		c.wc = make([][]float64, c.def.Filters)
		for f := range c.wc {
			c.wc[f] = make([]float64, fan)
			for i := range c.wc[f] {
				c.wc[f][i] = rng.NormFloat64() * scale
			}
		}
		c.bc = make([]float64, c.def.Filters)
		c.denseIn = c.def.Filters
	} else {
		c.denseIn = rowLen
	}

	scale := 1 / math.Sqrt(float64(c.denseIn))
	c.wv = make([][]float64, c.denseIn)
	for i := range c.wv {
		c.wv[i] = make([]float64, c.nClasses)
		for j := range c.wv[i] {
			c.wv[i][j] = rng.NormFloat64() * scale
		}
	}
	c.bv = make([]float64, c.nClasses)
}

// forward computes the pre-activation conv maps and the pooled feature
// vector for one flattened sample. On the dense path the sample itself is
// the feature vector and a is nil.
func (c *convNet) forward(x []float64) (a [][]float64, z []float64) {
	if c.def.Filters == 0 {
		return nil, x
	}
	span := c.seqLen - c.def.Kernel + 1
	a = make([][]float64, c.def.Filters)
	z = make([]float64, c.def.Filters)
	for f := 0; f < c.def.Filters; f++ {
		a[f] = make([]float64, span)
		var pooled float64
		for t := 0; t < span; t++ {
			sum := c.bc[f]
			for k := 0; k < c.def.Kernel; k++ {
				off := (t + k) * c.channels
				woff := k * c.channels
				for ch := 0; ch < c.channels; ch++ {
					sum += c.wc[f][woff+ch] * x[off+ch]
				}
			}
			a[f][t] = sum
			if sum > 0 {
				pooled += sum
			}
		}
		z[f] = pooled / float64(span)
	}
	return a, z
}

func (c *convNet) logitsOf(z []float64) []float64 {
	logits := make([]float64, c.nClasses)
	copy(logits, c.bv)
	for f, v := range z {
		if v == 0 {
			continue
		}
		for j := 0; j < c.nClasses; j++ {
			logits[j] += c.wv[f][j] * v
		}
	}
	return logits
}

// runEpoch makes one pass over the training samples in the given order and
// returns the mean cross-entropy.
func (c *convNet) runEpoch(xs [][]float64, ys []int, order []int) float64 {
	batch := c.def.BatchSize
	var totalLoss float64
	for start := 0; start < len(order); start += batch {
		end := start + batch
		if end > len(order) {
			end = len(order)
		}
		totalLoss += c.step(xs, ys, order[start:end])
	}
	return totalLoss / float64(len(order))
}

// step accumulates gradients over one minibatch and applies them.
func (c *convNet) step(xs [][]float64, ys []int, inds []int) float64 {
	gwv := make([][]float64, c.denseIn)
	for i := range gwv {
		gwv[i] = make([]float64, c.nClasses)
	}
	gbv := make([]float64, c.nClasses)
	var gwc [][]float64
	var gbc []float64
	if c.def.Filters > 0 {
		gwc = make([][]float64, c.def.Filters)
		for f := range gwc {
			gwc[f] = make([]float64, c.def.Kernel*c.channels)
		}
		gbc = make([]float64, c.def.Filters)
	}

	var loss float64
	for _, idx := range inds {
		x, y := xs[idx], ys[idx]
		a, z := c.forward(x)
		probs := c.logitsOf(z)
		softmaxRow(probs)
		if p := probs[y]; p > 1e-12 {
			loss += -math.Log(p)
		} else {
			loss += -math.Log(1e-12)
		}

		// dL/dlogits
		probs[y]--
		for j := 0; j < c.nClasses; j++ {
			gbv[j] += probs[j]
		}
		for f, v := range z {
			for j := 0; j < c.nClasses; j++ {
				gwv[f][j] += v * probs[j]
			}
		}
		if c.def.Filters == 0 {
			continue
		}

		span := c.seqLen - c.def.Kernel + 1
		for f := 0; f < c.def.Filters; f++ {
			var dz float64
			for j := 0; j < c.nClasses; j++ {
				dz += c.wv[f][j] * probs[j]
			}
			dh := dz / float64(span) // shared by every active time step
			for t := 0; t < span; t++ {
				if a[f][t] <= 0 {
					continue
				}
				gbc[f] += dh
				for k := 0; k < c.def.Kernel; k++ {
					off := (t + k) * c.channels
					woff := k * c.channels
					for ch := 0; ch < c.channels; ch++ {
						gwc[f][woff+ch] += dh * x[off+ch]
					}
				}
			}
		}
	}

	lr := c.def.LearningRate / float64(len(inds))
	for i := range c.wv {
		for j := range c.wv[i] {
			c.wv[i][j] -= lr * gwv[i][j]
		}
	}
	for j := range c.bv {
		c.bv[j] -= lr * gbv[j]
	}
	if c.def.Filters > 0 {
		for f := range c.wc {
			for i := range c.wc[f] {
				c.wc[f][i] -= lr * gwc[f][i]
			}
			c.bc[f] -= lr * gbc[f]
		}
	}
	return loss
}

func (c *convNet) predictSamples(xs [][]float64) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		_, z := c.forward(x)
		out[i] = argmax(c.logitsOf(z))
	}
	return out
}

// flatSamples views each axis-0 row of t as one flattened sample.
func flatSamples(t *tensor.Tensor) [][]float64 {
	n := t.Dim(0)
	rowLen := t.Len() / n
	data := t.Data()
	out := make([][]float64, n)
	for i := range out {
		out[i] = data[i*rowLen : (i+1)*rowLen]
	}
	return out
}
