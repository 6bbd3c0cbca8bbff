package automl

import (
	"strconv"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/linear"
	"github.com/YuminosukeSato/automltrain/tree"
)

// candidate is one entry of the search plan.
type candidate struct {
	Algo   string
	Params map[string]string
	build  func(p Problem, classes int) model.Estimator
}

type gbmPoint struct {
	depth int
	rate  float64
}

// gbmGrid is walked in order; the first three points are tried before XRT.
var gbmGrid = []gbmPoint{
	{depth: 5, rate: 0.1},
	{depth: 3, rate: 0.1},
	{depth: 7, rate: 0.05},
	{depth: 9, rate: 0.05},
	{depth: 5, rate: 0.05},
	{depth: 3, rate: 0.2},
	{depth: 7, rate: 0.1},
	{depth: 11, rate: 0.02},
}

const gbmBeforeXRT = 3

// plan returns the candidates in training order, filtered by the algorithm
// lists and capped at MaxModels (0 means the whole plan).
func (a *AutoML) plan(seed int64) []candidate {
	var all []candidate
	all = append(all, a.glm())
	all = append(all, a.forest(AlgoDRF, seed))
	for _, pt := range gbmGrid[:gbmBeforeXRT] {
		all = append(all, a.gbm(pt))
	}
	all = append(all, a.forest(AlgoXRT, seed+1))
	for _, pt := range gbmGrid[gbmBeforeXRT:] {
		all = append(all, a.gbm(pt))
	}

	var out []candidate
	for _, c := range all {
		if !a.params.Allows(c.Algo) {
			continue
		}
		if a.params.MaxModels > 0 && len(out) == a.params.MaxModels {
			break
		}
		out = append(out, c)
	}
	return out
}

func (a *AutoML) glm() candidate {
	return candidate{
		Algo:   AlgoGLM,
		Params: map[string]string{"lambda": "1e-6", "C": "1"},
		build: func(p Problem, classes int) model.Estimator {
			if !p.IsClassification() {
				return linear.NewLinearRegression()
			}
			return linear.NewLogisticRegression(linear.WithNClasses(classes))
		},
	}
}

func (a *AutoML) forest(algo string, seed int64) candidate {
	workers := a.workers
	return candidate{
		Algo: algo,
		Params: map[string]string{
			"ntrees":    "50",
			"max_depth": "20",
			"seed":      strconv.FormatInt(seed, 10),
		},
		build: func(p Problem, classes int) model.Estimator {
			opts := []tree.ForestOption{
				tree.WithForestSeed(uint64(seed)),
				tree.WithWorkers(workers),
			}
			if p.IsClassification() {
				opts = append(opts, tree.WithClassification(classes))
			}
			if algo == AlgoXRT {
				return tree.NewExtraTrees(opts...)
			}
			return tree.NewRandomForest(opts...)
		},
	}
}

func (a *AutoML) gbm(pt gbmPoint) candidate {
	rounds, tol := a.params.StoppingRounds, a.params.StoppingTolerance
	return candidate{
		Algo: AlgoGBM,
		Params: map[string]string{
			"ntrees":          "50",
			"max_depth":       strconv.Itoa(pt.depth),
			"learn_rate":      strconv.FormatFloat(pt.rate, 'g', -1, 64),
			"stopping_rounds": strconv.Itoa(rounds),
		},
		build: func(p Problem, classes int) model.Estimator {
			dist := tree.Gaussian
			switch p {
			case Binomial:
				dist = tree.Bernoulli
			case Multinomial:
				dist = tree.Multinomial
			}
			return tree.NewGradientBoosting(dist,
				tree.WithMaxDepth(pt.depth),
				tree.WithLearnRate(pt.rate),
				tree.WithEarlyStopping(rounds, tol),
				tree.WithGBMClasses(classes),
			)
		},
	}
}
