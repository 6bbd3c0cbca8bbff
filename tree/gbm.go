package tree

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// Distributions understood by GradientBoosting.
const (
	Gaussian    = "gaussian"
	Bernoulli   = "bernoulli"
	Multinomial = "multinomial"
)

// GradientBoosting is the GBM candidate. Gaussian fits squared loss,
// Bernoulli fits log loss on a single logit, and Multinomial grows one tree
// per class per round on softmax outputs.
type GradientBoosting struct {
	State *model.StateManager

	Distribution string
	NTrees       int
	LearnRate    float64
	MaxDepth     int
	MinRows      int
	Lambda       float64

	// StoppingRounds stops boosting once the training loss has not improved
	// by more than StoppingTolerance (relative) for that many rounds.
	StoppingRounds    int
	StoppingTolerance float64

	Classes   int
	InitScore []float64
	// Trees[r][k] is the tree for class k at round r (k = 0 for a single
	// output).
	Trees [][]Tree
}

// GBMOption configures a GradientBoosting model.
type GBMOption func(*GradientBoosting)

// WithNTrees sets the number of boosting rounds.
func WithNTrees(n int) GBMOption {
	return func(g *GradientBoosting) { g.NTrees = n }
}

// WithLearnRate sets the shrinkage applied to each tree.
func WithLearnRate(rate float64) GBMOption {
	return func(g *GradientBoosting) { g.LearnRate = rate }
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(depth int) GBMOption {
	return func(g *GradientBoosting) { g.MaxDepth = depth }
}

// WithMinRows sets the minimum number of rows per leaf.
func WithMinRows(rows int) GBMOption {
	return func(g *GradientBoosting) { g.MinRows = rows }
}

// WithEarlyStopping enables stopping on a stalled training loss.
func WithEarlyStopping(rounds int, tolerance float64) GBMOption {
	return func(g *GradientBoosting) {
		g.StoppingRounds = rounds
		g.StoppingTolerance = tolerance
	}
}

// WithGBMClasses fixes the number of response classes.
func WithGBMClasses(k int) GBMOption {
	return func(g *GradientBoosting) { g.Classes = k }
}

// NewGradientBoosting creates a GBM for the given distribution.
func NewGradientBoosting(distribution string, opts ...GBMOption) *GradientBoosting {
	g := &GradientBoosting{
		State:             model.NewStateManager(),
		Distribution:      distribution,
		NTrees:            50,
		LearnRate:         0.1,
		MaxDepth:          5,
		MinRows:           1,
		Lambda:            1.0,
		StoppingTolerance: 1e-3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Algo returns the candidate family name.
func (g *GradientBoosting) Algo() string { return "GBM" }

// NClasses returns the number of classes for classification models and 1
// for regression.
func (g *GradientBoosting) NClasses() int {
	if g.Distribution == Gaussian {
		return 1
	}
	return g.Classes
}

// Fit trains the model without a deadline.
func (g *GradientBoosting) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext trains the model, checking ctx between rounds. A cancelled
// context keeps the rounds built so far and returns ctx.Err() only when no
// tree was grown.
func (g *GradientBoosting) FitContext(ctx context.Context, X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("GradientBoosting.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("GradientBoosting.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("GradientBoosting.Fit", "y must be a column vector")
	}

	Xd := toDense(X)
	target := make([]float64, nSamples)
	for i := range target {
		target[i] = y.At(i, 0)
	}

	var codes []int
	outputs := 1
	switch g.Distribution {
	case Gaussian:
	case Bernoulli, Multinomial:
		var ok bool
		codes, g.Classes, ok = classCodes(y, g.Classes)
		if !ok {
			return errors.NewValueError("GradientBoosting.Fit", "labels must be non-negative class codes")
		}
		if g.Distribution == Bernoulli && g.Classes > 2 {
			return errors.NewValueError("GradientBoosting.Fit", "bernoulli requires two classes")
		}
		if g.Distribution == Multinomial {
			outputs = g.Classes
		}
	default:
		return errors.NewValidationError("distribution", "must be gaussian, bernoulli or multinomial", g.Distribution)
	}

	g.InitScore = g.initScores(target, codes, outputs)
	g.Trees = nil

	// raw scores per output, updated as trees are added
	scores := make([][]float64, outputs)
	for k := range scores {
		scores[k] = make([]float64, nSamples)
		for i := range scores[k] {
			scores[k][i] = g.InitScore[k]
		}
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	cfg := growConfig{MaxDepth: g.MaxDepth, MinRows: g.MinRows, Lambda: g.Lambda}
	grad := make([]float64, nSamples)
	hess := make([]float64, nSamples)

	bestLoss := math.Inf(1)
	sinceBest := 0

	for round := 0; round < g.NTrees; round++ {
		if err := ctx.Err(); err != nil {
			if round == 0 {
				return err
			}
			break
		}

		probs := g.outputProbabilities(scores)
		trees := make([]Tree, outputs)
		for k := 0; k < outputs; k++ {
			g.gradients(k, target, codes, scores, probs, grad, hess)
			t := growTree(Xd, grad, hess, indices, cfg, nil)
			for i := range t.Nodes {
				t.Nodes[i].Value *= g.LearnRate
			}
			trees[k] = t
		}
		for k, t := range trees {
			for i := 0; i < nSamples; i++ {
				scores[k][i] += t.Predict(Xd, i)
			}
		}
		g.Trees = append(g.Trees, trees)

		loss := g.loss(target, codes, scores)
		if err := errors.CheckScalar("GradientBoosting.Fit", loss, round); err != nil {
			return err
		}
		if g.StoppingRounds > 0 {
			if loss < bestLoss*(1-g.StoppingTolerance) || math.IsInf(bestLoss, 1) {
				bestLoss = loss
				sinceBest = 0
			} else if sinceBest++; sinceBest >= g.StoppingRounds {
				break
			}
		}
	}

	g.State.SetFitted(nFeatures, nSamples)
	return nil
}

func (g *GradientBoosting) initScores(target []float64, codes []int, outputs int) []float64 {
	init := make([]float64, outputs)
	n := float64(len(target))
	switch g.Distribution {
	case Gaussian:
		sum := 0.0
		for _, v := range target {
			sum += v
		}
		init[0] = sum / n
	case Bernoulli:
		pos := 0.0
		for _, c := range codes {
			if c == 1 {
				pos++
			}
		}
		p := errors.ClipValue(pos/n, 1e-6, 1-1e-6)
		init[0] = math.Log(p / (1 - p))
	case Multinomial:
		counts := make([]float64, outputs)
		for _, c := range codes {
			counts[c]++
		}
		for k := range init {
			init[k] = errors.StabilizeLog(counts[k] / n)
		}
	}
	return init
}

// outputProbabilities converts raw scores to probabilities for the
// classification distributions; nil for Gaussian.
func (g *GradientBoosting) outputProbabilities(scores [][]float64) [][]float64 {
	switch g.Distribution {
	case Bernoulli:
		p := make([]float64, len(scores[0]))
		for i, s := range scores[0] {
			p[i] = sigmoid(s)
		}
		return [][]float64{p}
	case Multinomial:
		n := len(scores[0])
		probs := make([][]float64, len(scores))
		for k := range probs {
			probs[k] = make([]float64, n)
		}
		row := make([]float64, len(scores))
		for i := 0; i < n; i++ {
			for k := range scores {
				row[k] = scores[k][i]
			}
			softmax(row)
			for k := range scores {
				probs[k][i] = row[k]
			}
		}
		return probs
	}
	return nil
}

func (g *GradientBoosting) gradients(k int, target []float64, codes []int, scores, probs [][]float64, grad, hess []float64) {
	for i := range grad {
		switch g.Distribution {
		case Gaussian:
			grad[i] = scores[0][i] - target[i]
			hess[i] = 1
		case Bernoulli:
			p := probs[0][i]
			grad[i] = p - float64(codes[i])
			hess[i] = math.Max(p*(1-p), 1e-6)
		case Multinomial:
			p := probs[k][i]
			indicator := 0.0
			if codes[i] == k {
				indicator = 1
			}
			grad[i] = p - indicator
			hess[i] = math.Max(p*(1-p), 1e-6)
		}
	}
}

func (g *GradientBoosting) loss(target []float64, codes []int, scores [][]float64) float64 {
	n := float64(len(target))
	sum := 0.0
	switch g.Distribution {
	case Gaussian:
		for i, v := range target {
			d := scores[0][i] - v
			sum += d * d
		}
	case Bernoulli:
		for i, c := range codes {
			p := errors.ClipValue(sigmoid(scores[0][i]), 1e-15, 1-1e-15)
			if c == 1 {
				sum -= math.Log(p)
			} else {
				sum -= math.Log(1 - p)
			}
		}
	case Multinomial:
		row := make([]float64, len(scores))
		for i, c := range codes {
			for k := range scores {
				row[k] = scores[k][i]
			}
			softmax(row)
			sum -= errors.StabilizeLog(row[c])
		}
	}
	return sum / n
}

func (g *GradientBoosting) rawScores(X mat.Matrix) [][]float64 {
	n, _ := X.Dims()
	scores := make([][]float64, len(g.InitScore))
	for k := range scores {
		scores[k] = make([]float64, n)
		for i := 0; i < n; i++ {
			s := g.InitScore[k]
			for _, round := range g.Trees {
				s += round[k].Predict(X, i)
			}
			scores[k][i] = s
		}
	}
	return scores
}

// Predict returns regression values, or the most probable class code for
// classification distributions, as an n×1 matrix.
func (g *GradientBoosting) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, c := X.Dims()
	if err := g.State.RequireFitted("GradientBoosting", "Predict", c); err != nil {
		return nil, err
	}
	if g.Distribution == Gaussian {
		scores := g.rawScores(X)
		return mat.NewDense(n, 1, scores[0]), nil
	}
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argMax(proba), nil
}

// PredictProba returns an n×Classes probability matrix.
func (g *GradientBoosting) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	n, c := X.Dims()
	if err := g.State.RequireFitted("GradientBoosting", "PredictProba", c); err != nil {
		return nil, err
	}
	if g.Distribution == Gaussian {
		return nil, errors.NewValueError("GradientBoosting.PredictProba", fmt.Sprintf("not available for %s distribution", g.Distribution))
	}

	scores := g.rawScores(X)
	proba := mat.NewDense(n, g.Classes, nil)
	probs := g.outputProbabilities(scores)
	for i := 0; i < n; i++ {
		if g.Distribution == Bernoulli {
			proba.Set(i, 0, 1-probs[0][i])
			proba.Set(i, 1, probs[0][i])
			continue
		}
		for k := 0; k < g.Classes; k++ {
			proba.Set(i, k, probs[k][i])
		}
	}
	return proba, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}

// softmax normalises row in place.
func softmax(row []float64) {
	maxV := math.Inf(-1)
	for _, v := range row {
		maxV = math.Max(maxV, v)
	}
	sum := 0.0
	for k, v := range row {
		row[k] = math.Exp(v - maxV)
		sum += row[k]
	}
	for k := range row {
		row[k] /= sum
	}
}

func argMax(proba mat.Matrix) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(best))
	}
	return out
}
