package lab

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ridge is the regularization weight of the least-squares readout
// initialization and of the gradient refinement.
const ridge = 1e-3

// dbn is the belief-network style handle: a stack of seeded random
// projection layers with tanh activations feeding a softmax readout. The
// readout is initialized by a regularized least-squares solve against
// one-hot targets and then refined for a fixed number of full-batch
// gradient passes, so fitting is deterministic and not driven by the
// harness fold loop.
type dbn struct {
	def      *Definition
	nClasses int
	seed     int64

	layers  []*mat.Dense // projection per hidden layer, inDim x width
	readout *mat.Dense   // (lastWidth+1) x nClasses, last row is the bias
	epochs  int
}

func newDBN(def *Definition, nClasses int, seed int64) *dbn {
	return &dbn{def: def, nClasses: nClasses, seed: seed}
}

func (d *dbn) String() string {
	return fmt.Sprintf("dbn(hidden=%v, classes=%d)", d.def.Hidden, d.nClasses)
}

func (d *dbn) NEpochs() int { return d.epochs }

func (d *dbn) Train(train, val, test Set, update func(int, map[string]float64)) error {
	return errors.New("lab: dbn does not train iteratively, use Fit")
}

// Fit builds the projection stack for the width of x and fits the readout.
func (d *dbn) Fit(x *mat.Dense, y []int) error {
	n, cols := x.Dims()
	if n != len(y) {
		return errors.Errorf("lab: %d samples but %d labels", n, len(y))
	}

	rng := rand.New(rand.NewSource(d.seed))
	d.layers = d.layers[:0]
	in := cols
	for _, width := range d.def.Hidden {
		w := mat.NewDense(in, width, nil)
		scale := 1 / math.Sqrt(float64(in))
		for i := 0; i < in; i++ {
			for j := 0; j < width; j++ {
				w.Set(i, j, rng.NormFloat64()*scale)
			}
		}
		d.layers = append(d.layers, w)
		in = width
	}

	h := d.encode(x) // n x (in+1), bias column appended
	onehot := mat.NewDense(n, d.nClasses, nil)
	for i, c := range y {
		if c < 0 || c >= d.nClasses {
			return errors.Errorf("lab: label %d outside %d classes", c, d.nClasses)
		}
		onehot.Set(i, c, 1)
	}

	// Least-squares initialization: (HᵀH + λI) W = HᵀY.
	var gram, rhs mat.Dense
	gram.Mul(h.T(), h)
	r, _ := gram.Dims()
	for i := 0; i < r; i++ {
		gram.Set(i, i, gram.At(i, i)+ridge)
	}
	rhs.Mul(h.T(), onehot)
	d.readout = &mat.Dense{}
	if err := d.readout.Solve(&gram, &rhs); err != nil {
		return errors.Wrap(err, "lab: readout solve")
	}

	// Refine with full-batch softmax gradient descent.
	for epoch := 0; epoch < d.def.Epochs; epoch++ {
		var logits mat.Dense
		logits.Mul(h, d.readout)
		probs := logits.RawMatrix()
		for i := 0; i < n; i++ {
			softmaxRow(probs.Data[i*probs.Stride : i*probs.Stride+d.nClasses])
		}
		var diff, grad mat.Dense
		diff.Sub(&logits, onehot)
		grad.Mul(h.T(), &diff)
		grad.Scale(1/float64(n), &grad)
		var reg mat.Dense
		reg.Scale(ridge, d.readout)
		grad.Add(&grad, &reg)
		grad.Scale(d.def.LearningRate, &grad)
		d.readout.Sub(d.readout, &grad)
	}
	d.epochs = d.def.Epochs
	return nil
}

// Predict returns the argmax class per row of x. Fit must have run.
func (d *dbn) Predict(x *mat.Dense) []int {
	if d.readout == nil {
		panic("lab: predict before fit")
	}
	h := d.encode(x)
	var logits mat.Dense
	logits.Mul(h, d.readout)
	n, _ := x.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = argmax(mat.Row(nil, i, &logits))
	}
	return out
}

// encode pushes x through the projection stack and appends a bias column.
func (d *dbn) encode(x *mat.Dense) *mat.Dense {
	cur := x
	for _, w := range d.layers {
		var next mat.Dense
		next.Mul(cur, w)
		next.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &next)
		cur = &next
	}
	n, cols := cur.Dims()
	withBias := mat.NewDense(n, cols+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			withBias.Set(i, j, cur.At(i, j))
		}
		withBias.Set(i, cols, 1)
	}
	return withBias
}
