// package harness runs human-activity-recognition classification
// experiments: it loads a sensor dataset, reshapes the feature tensors for
// the architecture an experiment definition names, partitions the training
// set into stratified folds, and per fold either fits a one-shot model or
// drives an iterative training loop, collecting timing and accuracy/F1
// metrics as it goes.
package harness

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/seancxwu/dl-for-har-comparison/datasets"
	"github.com/seancxwu/dl-for-har-comparison/device"
	"github.com/seancxwu/dl-for-har-comparison/explog"
	"github.com/seancxwu/dl-for-har-comparison/fold"
	"github.com/seancxwu/dl-for-har-comparison/lab"
	"github.com/seancxwu/dl-for-har-comparison/metrics"
	"github.com/seancxwu/dl-for-har-comparison/tensor"
)

// seqLength is the fixed number of time steps per sample window.
const seqLength = 100

// seed makes fold partitions and model construction reproducible across
// runs.
const seed int64 = 0

// Config selects the experiment to run. Experiment is a definition
// identifier relative to ExpDir, without the .json suffix.
type Config struct {
	Experiment string
	Dataset    string
	NFolds     int
	Save       bool
	ExpDir     string
	LogDir     string
}

// Experiment drives one end-to-end run across NFolds folds.
type Experiment struct {
	cfg     Config
	defPath string
	expName string
	kFold   int
	logger  *explog.Logger
	report  *Report
	log     *slog.Logger
}

// New validates cfg and resolves the experiment-definition path. The fold
// counter starts at one; the metric logger is created during Run.
func New(cfg Config, log *slog.Logger) (*Experiment, error) {
	if cfg.NFolds < 2 {
		return nil, errors.Errorf("harness: fold count must be at least two, got %d", cfg.NFolds)
	}
	if cfg.Experiment == "" || cfg.Dataset == "" {
		return nil, errors.New("harness: experiment and dataset are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Experiment{
		cfg:     cfg,
		defPath: filepath.Join(cfg.ExpDir, cfg.Experiment+".json"),
		expName: path.Base(cfg.Experiment),
		kFold:   1,
		report:  &Report{},
		log:     log,
	}, nil
}

// Report returns the accumulated fold results.
func (e *Experiment) Report() *Report {
	return e.report
}

// Run executes the experiment. Definition and dataset failures abort the
// run before any fold is trained; model failures abort it mid-flight with
// the completed folds' results preserved in the report.
func (e *Experiment) Run() error {
	def, err := lab.LoadDefinition(e.defPath)
	if err != nil {
		return err
	}
	e.log.Info("experiment loaded", "name", def.Name, "type", def.Type, "dataset", e.cfg.Dataset, "folds", e.cfg.NFolds)

	e.logger, err = explog.New(explog.Config{
		ExpName: def.Name,
		Dataset: e.cfg.Dataset,
		NFolds:  e.cfg.NFolds,
		Save:    e.cfg.Save,
		LogDir:  e.cfg.LogDir,
	})
	if err != nil {
		return err
	}

	ds, err := datasets.Load(e.cfg.Dataset, seqLength, def.Gyroscope, def.Preprocess)
	if err != nil {
		return err
	}

	// Gyroscope channels join the features only when requested and present.
	gyro := def.Gyroscope && ds.XGyrTrain != nil && ds.XGyrTest != nil
	x, y := ds.XAccTrain, ds.YTrain
	xTs, yTs := ds.XAccTest, ds.YTest
	if gyro {
		x = tensor.ConcatChannels(ds.XAccTrain, ds.XGyrTrain)
		xTs = tensor.ConcatChannels(ds.XAccTest, ds.XGyrTest)
	}

	fmt.Println("Test: features shape, labels shape, mean, standard deviation")
	fmt.Println(xTs.Shape(), len(yTs), xTs.Mean(), xTs.Std())

	switch def.Arch {
	case lab.ArchCNN:
		xTs = xTs.InsertAxis(1)
	case lab.ArchDBN:
		// The belief-network flatten commutes with row slicing, so it is
		// applied once to the full arrays rather than per fold.
		x = x.Flatten2D()
		xTs = xTs.Flatten2D()
	}

	dev := device.Detect()
	fmt.Printf("Using device: %s\n", dev)
	fmt.Println("Test: features shape, labels shape, mean, standard deviation")
	fmt.Println(xTs.Shape(), len(yTs), xTs.Mean(), xTs.Std())

	// Models index one-hot rows and logit columns by label, so labels must
	// be dense 0-based class indices. Dataset labelings like 1..6 are
	// remapped against the sorted class list of both splits.
	classes := metrics.Classes(append(append([]int(nil), y...), yTs...))
	y = denseLabels(y, classes)
	yTs = denseLabels(yTs, classes)
	nOut := len(classes)

	folds := fold.Stratified(y, e.cfg.NFolds, seed)

	e.kFold = 1
	for _, f := range folds {
		xTr, xVa := x.Gather(f.Train), x.Gather(f.Val)
		yTr, yVa := gatherInts(y, f.Train), gatherInts(y, f.Val)

		fmt.Println("Training: features shape, labels shape, mean, standard deviation")
		fmt.Println(xTr.Shape(), len(yTr), xTr.Mean(), xTr.Std())
		fmt.Println("Validation: features shape, labels shape, mean, standard deviation")
		fmt.Println(xVa.Shape(), len(yVa), xVa.Mean(), xVa.Std())

		if def.Arch == lab.ArchDBN {
			if err := e.runFitFold(xTr, yTr, xVa, yVa, xTs, yTs, nOut); err != nil {
				return err
			}
		} else {
			if err := e.runTrainFold(def, xTr, yTr, xVa, yVa, xTs, yTs, nOut); err != nil {
				return err
			}
		}
		e.kFold++
	}
	return nil
}

// runFitFold is the non-iterative path: a timed fit, validation and test
// predictions, and a report snapshot when saving.
func (e *Experiment) runFitFold(xTr *tensor.Tensor, yTr []int, xVa *tensor.Tensor, yVa []int, xTs *tensor.Tensor, yTs []int, nOut int) error {
	model, err := lab.Build(e.defPath, nOut, seed)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := model.Fit(xTr.Matrix(), yTr); err != nil {
		return err
	}
	elapsed := time.Since(start)

	predVa := model.Predict(xVa.Matrix())
	validationF1 := metrics.WeightedF1(yVa, predVa)

	predTs := model.Predict(xTs.Matrix())
	accuracy := metrics.Accuracy(yTs, predTs)
	testF1 := metrics.WeightedF1(yTs, predTs)

	e.report.Append(FoldResult{
		Fold:         e.kFold,
		Elapsed:      elapsed,
		Epochs:       model.NEpochs(),
		Accuracy:     accuracy,
		ValidationF1: validationF1,
		TestF1:       testF1,
	})
	e.log.Info("fold fitted", "fold", e.kFold, "elapsed", elapsed, "accuracy", accuracy, "test_f1", testF1)

	if e.cfg.Save {
		// The artifact is named after the definition file, not the display
		// name the logger uses.
		out := filepath.Join(e.cfg.LogDir, fmt.Sprintf("%s_%s.csv", e.cfg.Dataset, e.expName))
		return e.report.Snapshot(out)
	}
	return nil
}

// runTrainFold is the iterative path: the model owns the epoch loop and
// reports per-epoch metrics through the logger, tagged with the current
// fold.
func (e *Experiment) runTrainFold(def *lab.Definition, xTr *tensor.Tensor, yTr []int, xVa *tensor.Tensor, yVa []int, xTs *tensor.Tensor, yTs []int, nOut int) error {
	if def.Arch == lab.ArchCNN {
		xTr = xTr.InsertAxis(1)
		xVa = xVa.InsertAxis(1)
	}

	fmt.Println(metrics.Counts(yTr))
	fmt.Println(metrics.Counts(yVa))
	fmt.Println(metrics.Counts(yTs))

	model, err := lab.Build(e.defPath, nOut, seed)
	if err != nil {
		return err
	}
	fmt.Println(model)

	kFold := e.kFold
	update := func(epoch int, m map[string]float64) {
		if err := e.logger.Update(kFold, m); err != nil {
			e.log.Warn("log update failed", "fold", kFold, "epoch", epoch, "err", err)
		}
	}
	return model.Train(
		lab.Set{X: xTr, Y: yTr},
		lab.Set{X: xVa, Y: yVa},
		lab.Set{X: xTs, Y: yTs},
		update,
	)
}

// denseLabels maps every label in y onto its index in the sorted class
// list.
func denseLabels(y, classes []int) []int {
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	out := make([]int, len(y))
	for i, c := range y {
		out[i] = index[c]
	}
	return out
}

// gatherInts returns the elements of y selected by inds, in order.
func gatherInts(y []int, inds []int) []int {
	out := make([]int, len(inds))
	for i, idx := range inds {
		out[i] = y[idx]
	}
	return out
}
