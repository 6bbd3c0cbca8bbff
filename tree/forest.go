package tree

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/core/parallel"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// RandomForest is the DRF candidate, or XRT when Random is set. Each tree is
// fitted on a bootstrap sample (DRF) or the full frame (XRT). Regression
// trees average the response; classification grows one tree per class on
// the class indicator and averages the resulting probability estimates.
type RandomForest struct {
	State *model.StateManager

	Random     bool
	NTrees     int
	MaxDepth   int
	MinRows    int
	Mtries     int     // features per split; <= 0 picks sqrt(p) or p/3
	SampleRate float64 // bootstrap fraction for DRF
	Seed       uint64
	Workers    int

	Classify bool
	Classes  int
	// Trees[t][k] is tree t for class k (k = 0 for regression and binomial).
	Trees [][]Tree
}

// ForestOption configures a RandomForest.
type ForestOption func(*RandomForest)

// WithForestTrees sets the number of trees.
func WithForestTrees(n int) ForestOption {
	return func(f *RandomForest) { f.NTrees = n }
}

// WithForestDepth sets the maximum depth of each tree.
func WithForestDepth(depth int) ForestOption {
	return func(f *RandomForest) { f.MaxDepth = depth }
}

// WithForestSeed sets the seed from which every tree's generator is derived.
func WithForestSeed(seed uint64) ForestOption {
	return func(f *RandomForest) { f.Seed = seed }
}

// WithWorkers sets how many trees are grown concurrently.
func WithWorkers(n int) ForestOption {
	return func(f *RandomForest) { f.Workers = n }
}

// WithClassification makes the forest a classifier over k classes. k may be
// 0 to infer it from the labels.
func WithClassification(k int) ForestOption {
	return func(f *RandomForest) {
		f.Classify = true
		f.Classes = k
	}
}

// NewRandomForest creates a DRF forest.
func NewRandomForest(opts ...ForestOption) *RandomForest {
	f := &RandomForest{
		State:      model.NewStateManager(),
		NTrees:     50,
		MaxDepth:   20,
		MinRows:    1,
		SampleRate: 0.632,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewExtraTrees creates an XRT forest.
func NewExtraTrees(opts ...ForestOption) *RandomForest {
	f := NewRandomForest(opts...)
	f.Random = true
	return f
}

// Algo returns "XRT" for extremely randomised trees and "DRF" otherwise.
func (f *RandomForest) Algo() string {
	if f.Random {
		return "XRT"
	}
	return "DRF"
}

// NClasses returns the number of classes, or 1 for regression.
func (f *RandomForest) NClasses() int {
	if !f.Classify {
		return 1
	}
	return f.Classes
}

// Fit trains the forest without a deadline.
func (f *RandomForest) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext trains the forest. Trees whose turn comes after ctx is done
// are skipped; an error is returned only when no tree was grown.
func (f *RandomForest) FitContext(ctx context.Context, X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForest.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("RandomForest.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("RandomForest.Fit", "y must be a column vector")
	}
	if f.NTrees < 1 {
		return errors.NewValidationError("ntrees", "must be at least 1", f.NTrees)
	}

	Xd := toDense(X)

	// one target vector per output
	var targets [][]float64
	if f.Classify {
		codes, k, ok := classCodes(y, f.Classes)
		if !ok {
			return errors.NewValueError("RandomForest.Fit", "labels must be non-negative class codes")
		}
		f.Classes = k
		outputs := k
		if k == 2 {
			outputs = 1
		}
		targets = make([][]float64, outputs)
		for o := range targets {
			positive := o
			if k == 2 {
				positive = 1
			}
			targets[o] = make([]float64, nSamples)
			for i, c := range codes {
				if c == positive {
					targets[o][i] = 1
				}
			}
		}
	} else {
		t := make([]float64, nSamples)
		for i := range t {
			t[i] = y.At(i, 0)
		}
		targets = [][]float64{t}
	}

	cfg := growConfig{
		MaxDepth:    f.MaxDepth,
		MinRows:     f.MinRows,
		Mtries:      f.mtries(nFeatures),
		RandomSplit: f.Random,
	}

	trees := make([][]Tree, f.NTrees)
	parallel.ParallelizeN(f.NTrees, f.Workers, func(start, end int) {
		for t := start; t < end; t++ {
			if ctx.Err() != nil {
				return
			}
			rng := rand.New(rand.NewPCG(f.Seed, uint64(t)))
			indices := f.sample(nSamples, rng)
			perClass := make([]Tree, len(targets))
			for o, target := range targets {
				// grad = -y, hess = 1 makes each leaf the mean response
				grad := make([]float64, nSamples)
				hess := make([]float64, nSamples)
				for i, v := range target {
					grad[i] = -v
					hess[i] = 1
				}
				perClass[o] = growTree(Xd, grad, hess, indices, cfg, rng)
			}
			trees[t] = perClass
		}
	})

	f.Trees = f.Trees[:0]
	for _, t := range trees {
		if t != nil {
			f.Trees = append(f.Trees, t)
		}
	}
	if len(f.Trees) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.NewModelError("RandomForest.Fit", "no tree was grown", nil)
	}

	f.State.SetFitted(nFeatures, nSamples)
	return nil
}

func (f *RandomForest) mtries(p int) int {
	if f.Mtries > 0 {
		return f.Mtries
	}
	var m int
	if f.Classify {
		m = int(math.Sqrt(float64(p)))
	} else {
		m = p / 3
	}
	if m < 1 {
		m = 1
	}
	return m
}

// sample draws the rows one tree is fitted on.
func (f *RandomForest) sample(n int, rng *rand.Rand) []int {
	if f.Random || f.SampleRate <= 0 || f.SampleRate >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	size := int(math.Ceil(f.SampleRate * float64(n)))
	indices := make([]int, size)
	for i := range indices {
		indices[i] = rng.IntN(n)
	}
	return indices
}

// average returns the mean prediction of output o over all trees for row i.
func (f *RandomForest) average(X mat.Matrix, i, o int) float64 {
	sum := 0.0
	for _, t := range f.Trees {
		sum += t[o].Predict(X, i)
	}
	return sum / float64(len(f.Trees))
}

// Predict returns regression values or the most probable class code as an
// n×1 matrix.
func (f *RandomForest) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, c := X.Dims()
	if err := f.State.RequireFitted("RandomForest", "Predict", c); err != nil {
		return nil, err
	}
	if f.Classify {
		proba, err := f.PredictProba(X)
		if err != nil {
			return nil, err
		}
		return argMax(proba), nil
	}
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, f.average(X, i, 0))
	}
	return out, nil
}

// PredictProba returns an n×Classes matrix of averaged class frequencies.
func (f *RandomForest) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	n, c := X.Dims()
	if err := f.State.RequireFitted("RandomForest", "PredictProba", c); err != nil {
		return nil, err
	}
	if !f.Classify {
		return nil, errors.NewValueError("RandomForest.PredictProba", "not available for regression")
	}

	proba := mat.NewDense(n, f.Classes, nil)
	for i := 0; i < n; i++ {
		if f.Classes == 2 {
			p := errors.ClipValue(f.average(X, i, 0), 0, 1)
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		sum := 0.0
		for k := 0; k < f.Classes; k++ {
			p := errors.ClipValue(f.average(X, i, k), 0, 1)
			proba.Set(i, k, p)
			sum += p
		}
		for k := 0; k < f.Classes; k++ {
			if sum > 0 {
				proba.Set(i, k, proba.At(i, k)/sum)
			} else {
				proba.Set(i, k, 1/float64(f.Classes))
			}
		}
	}
	return proba, nil
}
