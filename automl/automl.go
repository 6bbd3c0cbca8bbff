// Package automl runs a bounded model search over a training frame and ranks
// the candidates on a leaderboard frame.
//
// The search walks a fixed plan (GLM, DRF, a GBM grid, XRT, more GBM grid
// points), stops on max_models, on the runtime budget or when the context
// is cancelled, and keeps every candidate that trained successfully. The
// leader is the best candidate by the sort metric.
//
//	aml := automl.New(params, automl.WithLogger(logger), automl.WithWorkers(8))
//	if err := aml.Train(ctx, features, "label", train, test); err != nil {
//	    return err
//	}
//	path, err := automl.SaveArtifact("/opt/ml/model", aml.Leader())
package automl

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/log"
	"github.com/YuminosukeSato/automltrain/preprocessing"
)

// contextFitter is implemented by estimators that can stop early when the
// search budget runs out.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// AutoML is one search. It is not safe for concurrent use.
type AutoML struct {
	params  Params
	logger  log.Logger
	workers int

	leaderboard *Leaderboard
	models      map[string]*Model
}

// Option configures an AutoML search.
type Option func(*AutoML)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(a *AutoML) { a.logger = logger }
}

// WithWorkers sets how many goroutines forest candidates may use.
func WithWorkers(n int) Option {
	return func(a *AutoML) { a.workers = n }
}

// New creates a search bounded by p.
func New(p Params, opts ...Option) *AutoML {
	a := &AutoML{params: p, models: make(map[string]*Model)}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.GetLoggerWithName("automl")
	}
	a.logger = a.logger.With(log.ProjectKey, p.ProjectName)
	return a
}

// Params returns the search parameters.
func (a *AutoML) Params() Params { return a.params }

// Leaderboard returns the ranked candidates, nil before Train succeeded.
func (a *AutoML) Leaderboard() *Leaderboard { return a.leaderboard }

// Leader returns the best model, nil before Train succeeded.
func (a *AutoML) Leader() *Model {
	if a.leaderboard.Len() == 0 {
		return nil
	}
	return a.models[a.leaderboard.Rows[0].ModelID]
}

// Model returns a trained candidate by id.
func (a *AutoML) Model(id string) (*Model, bool) {
	m, ok := a.models[id]
	return m, ok
}

// dataset is the numeric view of a frame handed to the estimators.
type dataset struct {
	X *mat.Dense
	y *mat.VecDense
}

// Train searches models predicting y from x on train and ranks them on
// leaderboard (train itself when nil). An empty x selects every column but
// y. The problem is classification when y is an enum column of train; the
// response and enum feature domains are aligned across both frames first.
func (a *AutoML) Train(ctx context.Context, x []string, y string, train, leaderboard *frame.Frame) (err error) {
	defer errors.Recover(&err, "AutoML.Train")
	project := a.params.ProjectName

	if train == nil {
		return errors.NewSearchError(project, "no training frame", nil)
	}
	if leaderboard == nil {
		a.logger.Warn("No leaderboard frame, ranking on the training frame")
		leaderboard = train
	}
	if !train.Has(y) {
		return errors.NewSearchError(project, fmt.Sprintf("response column %q not in training frame", y), nil)
	}
	if !leaderboard.Has(y) {
		return errors.NewSearchError(project, fmt.Sprintf("response column %q not in leaderboard frame", y), nil)
	}
	features, err := a.resolveFeatures(x, y, train, leaderboard)
	if err != nil {
		return err
	}

	problem := Regression
	var domain []string
	if train.IsEnum(y) {
		if domain, err = frame.AlignDomains(y, train, leaderboard); err != nil {
			return errors.NewSearchError(project, "failed to align response domain", err)
		}
		switch {
		case len(domain) < 2:
			return errors.NewSearchError(project, fmt.Sprintf("response %q needs at least two classes, got %d", y, len(domain)), nil)
		case len(domain) == 2:
			problem = Binomial
		default:
			problem = Multinomial
		}
	}

	featureDomains := make(map[string][]string)
	for _, name := range features {
		if !train.IsEnum(name) && !leaderboard.IsEnum(name) {
			continue
		}
		levels, err := frame.AlignDomains(name, train, leaderboard)
		if err != nil {
			return errors.NewSearchError(project, fmt.Sprintf("failed to align domain of %q", name), err)
		}
		featureDomains[name] = levels
	}

	sortMetric, ok := resolveSortMetric(a.params.SortMetric, problem)
	if !ok {
		return errors.NewSearchError(project, fmt.Sprintf("sort metric %s is not available for %s problems", a.params.SortMetric, problem), nil)
	}

	trainSet, err := labelled(train, features, y)
	if err != nil {
		return errors.NewSearchError(project, "failed to build training matrix", err)
	}
	validSet, err := labelled(leaderboard, features, y)
	if err != nil {
		return errors.NewSearchError(project, "failed to build leaderboard matrix", err)
	}

	imputer := preprocessing.NewMeanImputer()
	imputed, err := imputer.FitTransform(trainSet.X)
	if err != nil {
		return errors.NewSearchError(project, "failed to impute training frame", err)
	}
	trainSet.X = imputed.(*mat.Dense)
	imputed, err = imputer.Transform(validSet.X)
	if err != nil {
		return errors.NewSearchError(project, "failed to impute leaderboard frame", err)
	}
	validSet.X = imputed.(*mat.Dense)

	if a.params.NFolds != 0 {
		a.logger.Warn("Cross-validation is not supported, ranking on the leaderboard frame", "nfolds", a.params.NFolds)
	}

	seed := a.params.EffectiveSeed()
	classes := len(domain)
	if classes == 0 {
		classes = 1
	}
	plan := a.plan(seed)

	a.logger.Info("Search started",
		log.ResponseKey, y,
		log.FeaturesKey, len(features),
		log.SamplesKey, trainSet.X.RawMatrix().Rows,
		log.ProblemKey, string(problem),
		log.SortMetricKey, sortMetric,
		log.RandomSeedKey, seed,
		"candidates", len(plan),
	)

	searchCtx := ctx
	if budget := a.params.Runtime(); budget > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	lb := &Leaderboard{Project: project, Problem: problem, SortMetric: sortMetric}
	models := make(map[string]*Model)
	counters := make(map[string]int)
	started := time.Now()
	var lastErr error

	for _, c := range plan {
		if err := searchCtx.Err(); err != nil {
			a.logger.Info("Search budget exhausted", log.ModelsKey, len(lb.Rows), "reason", err.Error())
			break
		}
		counters[c.Algo]++
		id := modelID(c.Algo, counters[c.Algo], project)

		m := &Model{
			ID:             id,
			Algo:           c.Algo,
			Problem:        problem,
			Features:       append([]string(nil), features...),
			Response:       y,
			Domain:         domain,
			FeatureDomains: featureDomains,
			Params:         c.Params,
			Imputer:        imputer,
		}
		fitStart := time.Now()
		err := errors.SafeExecute("automl."+id, func() error {
			return a.fitCandidate(searchCtx, m, c, classes, trainSet, validSet)
		})
		m.TrainingTime = time.Since(fitStart)
		if err != nil {
			lastErr = err
			a.logger.Warn("Candidate failed", err, log.ModelIDKey, id, log.AlgoKey, c.Algo)
			continue
		}

		models[id] = m
		lb.Rows = append(lb.Rows, m.Row())
		a.logger.Info("Candidate trained",
			log.ModelIDKey, id,
			log.AlgoKey, c.Algo,
			log.HyperParamsKey, c.Params,
			log.MetricValueKey, m.Metrics[sortMetric],
			log.DurationMsKey, m.TrainingTime.Milliseconds(),
		)
	}

	if len(lb.Rows) == 0 {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		return errors.NewSearchError(project, "no candidate model could be trained", lastErr)
	}
	lb.sort()
	a.leaderboard = lb
	a.models = models

	a.logger.Info("Search finished",
		log.ModelsKey, len(lb.Rows),
		log.ModelIDKey, lb.Rows[0].ModelID,
		log.SortMetricKey, sortMetric,
		log.MetricValueKey, lb.Rows[0].Metric(sortMetric),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return nil
}

// fitCandidate trains one candidate and scores it on the leaderboard set.
func (a *AutoML) fitCandidate(ctx context.Context, m *Model, c candidate, classes int, train, valid dataset) error {
	if budget := a.params.PerModelRuntime(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	est := c.build(m.Problem, classes)
	var err error
	if cf, ok := est.(contextFitter); ok {
		err = cf.FitContext(ctx, train.X, train.y)
	} else {
		err = est.Fit(train.X, train.y)
	}
	if err != nil {
		return err
	}
	m.Estimator = est

	pred, err := est.Predict(valid.X)
	if err != nil {
		return err
	}
	var proba mat.Matrix
	if m.Problem.IsClassification() {
		clf, ok := est.(model.Classifier)
		if !ok {
			return errors.NewValueError("automl.fitCandidate", c.Algo+" does not predict probabilities")
		}
		if proba, err = clf.PredictProba(valid.X); err != nil {
			return err
		}
	}
	m.Metrics, err = evaluate(m.Problem, valid.y, pred, proba)
	return err
}

// resolveFeatures checks x against both frames, or derives it from train.
func (a *AutoML) resolveFeatures(x []string, y string, train, leaderboard *frame.Frame) ([]string, error) {
	if len(x) == 0 {
		for _, name := range train.Names() {
			if name != y {
				x = append(x, name)
			}
		}
	}
	var features []string
	for _, name := range x {
		if name == y {
			continue
		}
		if !train.Has(name) {
			return nil, errors.NewSearchError(a.params.ProjectName, fmt.Sprintf("feature %q not in training frame", name), nil)
		}
		if !leaderboard.Has(name) {
			return nil, errors.NewSearchError(a.params.ProjectName, fmt.Sprintf("feature %q not in leaderboard frame", name), nil)
		}
		features = append(features, name)
	}
	if len(features) == 0 {
		return nil, errors.NewSearchError(a.params.ProjectName, "no feature columns", nil)
	}
	return features, nil
}

// labelled returns the rows of f whose response is present.
func labelled(f *frame.Frame, features []string, y string) (dataset, error) {
	X, err := f.Matrix(features)
	if err != nil {
		return dataset{}, err
	}
	resp, err := f.Response(y)
	if err != nil {
		return dataset{}, err
	}

	var keep []int
	for i := 0; i < resp.Len(); i++ {
		if !math.IsNaN(resp.AtVec(i)) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return dataset{}, errors.NewModelError("automl.labelled", "no rows with a response value", errors.ErrEmptyData)
	}
	if len(keep) == resp.Len() {
		return dataset{X: X, y: resp}, nil
	}

	_, p := X.Dims()
	out := dataset{X: mat.NewDense(len(keep), p, nil), y: mat.NewVecDense(len(keep), nil)}
	for r, i := range keep {
		out.X.SetRow(r, X.RawRowView(i))
		out.y.SetVec(r, resp.AtVec(i))
	}
	return out, nil
}

// modelID names a candidate like GBM_2_AutoML_<project>.
func modelID(algo string, n int, project string) string {
	return fmt.Sprintf("%s_%d_AutoML_%s", algo, n, project)
}

// Models returns the ids of all trained candidates in leaderboard order.
func (a *AutoML) Models() []string {
	ids := make([]string, 0, a.leaderboard.Len())
	if a.leaderboard != nil {
		for _, row := range a.leaderboard.Rows {
			ids = append(ids, row.ModelID)
		}
	}
	return ids
}
