// package tensor implements a dense, row-major float64 tensor with the small
// set of shape operations the experiment harness needs: channel
// concatenation, the per-architecture reshapes, and row gathering for
// cross-validation splits. Two-dimensional tensors convert to gonum matrices
// without copying.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Tensor is a dense n-dimensional array. Data is stored row-major, so
// reshapes that preserve the element order are views over the same backing
// slice.
type Tensor struct {
	data  []float64
	shape []int
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("tensor: non-positive dimension %v", shape))
		}
		size *= s
	}
	return &Tensor{
		data:  make([]float64, size),
		shape: append([]int(nil), shape...),
	}
}

// FromSlice wraps data in a tensor of the given shape. The slice is not
// copied.
func FromSlice(data []float64, shape ...int) *Tensor {
	t := &Tensor{data: data, shape: append([]int(nil), shape...)}
	size := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("tensor: non-positive dimension %v", shape))
		}
		size *= s
	}
	if len(data) != size {
		panic("tensor: length mismatch")
	}
	return t
}

// Shape returns the tensor's dimensions. The returned slice must not be
// modified.
func (t *Tensor) Shape() []int { return t.shape }

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// Len returns the total number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data returns the backing slice.
func (t *Tensor) Data() []float64 { return t.data }

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic("tensor: wrong number of indices")
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic("tensor: index out of range")
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the element at the given indices.
func (t *Tensor) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set stores v at the given indices.
func (t *Tensor) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

// Reshape returns a view of t with a new shape. The element count must be
// unchanged.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if size != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", t.shape, shape))
	}
	return &Tensor{data: t.data, shape: append([]int(nil), shape...)}
}

// InsertAxis returns a view with a singleton dimension inserted before
// axis. A samples x time x channels tensor becomes samples x 1 x time x
// channels for axis 1, which is the convolutional input layout.
func (t *Tensor) InsertAxis(axis int) *Tensor {
	if axis < 0 || axis > len(t.shape) {
		panic("tensor: insert axis out of range")
	}
	shape := make([]int, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[axis:]...)
	return &Tensor{data: t.data, shape: shape}
}

// Flatten2D returns a view collapsing all axes after the first into one,
// so samples x time x channels becomes samples x (time*channels). This is
// the belief-network input layout.
func (t *Tensor) Flatten2D() *Tensor {
	if len(t.shape) < 2 {
		panic("tensor: flatten needs at least two axes")
	}
	cols := 1
	for _, s := range t.shape[1:] {
		cols *= s
	}
	return &Tensor{data: t.data, shape: []int{t.shape[0], cols}}
}

// Matrix returns the tensor as a gonum matrix sharing the same backing
// data. The tensor must be two-dimensional.
func (t *Tensor) Matrix() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor: matrix view of %d-d tensor", len(t.shape)))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// Gather returns a new tensor holding the rows of axis 0 selected by inds,
// in order. Rows are copied.
func (t *Tensor) Gather(inds []int) *Tensor {
	rowLen := len(t.data) / t.shape[0]
	shape := append([]int(nil), t.shape...)
	shape[0] = len(inds)
	out := New(shape...)
	for i, idx := range inds {
		if idx < 0 || idx >= t.shape[0] {
			panic("tensor: gather index out of range")
		}
		copy(out.data[i*rowLen:(i+1)*rowLen], t.data[idx*rowLen:(idx+1)*rowLen])
	}
	return out
}

// ConcatChannels concatenates two samples x time x channels tensors along
// the channel axis. The leading two dimensions must agree.
func ConcatChannels(a, b *Tensor) *Tensor {
	if len(a.shape) != 3 || len(b.shape) != 3 {
		panic("tensor: channel concat needs 3-d tensors")
	}
	if a.shape[0] != b.shape[0] || a.shape[1] != b.shape[1] {
		panic("tensor: channel concat shape mismatch")
	}
	n, steps := a.shape[0], a.shape[1]
	ca, cb := a.shape[2], b.shape[2]
	out := New(n, steps, ca+cb)
	for i := 0; i < n*steps; i++ {
		copy(out.data[i*(ca+cb):], a.data[i*ca:(i+1)*ca])
		copy(out.data[i*(ca+cb)+ca:], b.data[i*cb:(i+1)*cb])
	}
	return out
}

// Mean returns the mean over all elements.
func (t *Tensor) Mean() float64 { return stat.Mean(t.data, nil) }

// Std returns the population standard deviation over all elements, matching
// the convention of the diagnostics the harness prints.
func (t *Tensor) Std() float64 {
	return stat.PopStdDev(t.data, nil)
}
