package automl

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/preprocessing"
)

// Model is a trained candidate together with everything needed to score a
// new frame: the feature order, the level domains of enum columns and the
// missing-value imputer fitted on the training frame.
type Model struct {
	ID       string
	Algo     string
	Problem  Problem
	Features []string
	Response string
	// Domain holds the response levels for classification models; class
	// code i is Domain[i].
	Domain         []string
	FeatureDomains map[string][]string
	Params         map[string]string

	Imputer   *preprocessing.MeanImputer
	Estimator model.Estimator

	Metrics      map[string]float64
	TrainingTime time.Duration
}

// Row returns the leaderboard row of the model.
func (m *Model) Row() Row {
	return Row{ModelID: m.ID, Algo: m.Algo, Metrics: m.Metrics, TrainingTime: m.TrainingTime}
}

// Predict scores f. Regression models return one column of predictions,
// classification models one column of class codes.
func (m *Model) Predict(f *frame.Frame) (mat.Matrix, error) {
	X, err := m.matrix(f)
	if err != nil {
		return nil, err
	}
	return m.Estimator.Predict(X)
}

// PredictProba returns one probability column per response level.
func (m *Model) PredictProba(f *frame.Frame) (mat.Matrix, error) {
	clf, ok := m.Estimator.(model.Classifier)
	if !ok || !m.Problem.IsClassification() {
		return nil, errors.NewValueError("Model.PredictProba", "model "+m.ID+" is not a classifier")
	}
	X, err := m.matrix(f)
	if err != nil {
		return nil, err
	}
	return clf.PredictProba(X)
}

// PredictLabels returns the predicted response level of every row.
func (m *Model) PredictLabels(f *frame.Frame) ([]string, error) {
	if !m.Problem.IsClassification() {
		return nil, errors.NewValueError("Model.PredictLabels", "model "+m.ID+" is a regression model")
	}
	pred, err := m.Predict(f)
	if err != nil {
		return nil, err
	}
	n, _ := pred.Dims()
	labels := make([]string, n)
	for i := range labels {
		code := int(pred.At(i, 0))
		if code >= 0 && code < len(m.Domain) {
			labels[i] = m.Domain[code]
		}
	}
	return labels, nil
}

// matrix builds the imputed feature matrix of f. Enum features are coded
// against the training domain without touching f; unseen levels count as
// missing.
func (m *Model) matrix(f *frame.Frame) (*mat.Dense, error) {
	n := f.NRows()
	if n == 0 {
		return nil, errors.NewModelError("Model.Predict", "empty frame", errors.ErrEmptyData)
	}
	X := mat.NewDense(n, len(m.Features), nil)
	for j, name := range m.Features {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		domain, isEnum := m.FeatureDomains[name]
		if !isEnum {
			for i := 0; i < n; i++ {
				if col.Type == frame.Enum {
					X.Set(i, j, math.NaN())
					continue
				}
				X.Set(i, j, col.Values[i])
			}
			continue
		}

		lookup := make(map[string]int, len(domain))
		for k, level := range domain {
			lookup[level] = k
		}
		for i := 0; i < n; i++ {
			code, ok := lookup[cellText(col, i)]
			if !ok {
				X.Set(i, j, math.NaN())
				continue
			}
			X.Set(i, j, float64(code))
		}
	}

	out, err := m.Imputer.Transform(X)
	if err != nil {
		return nil, err
	}
	return out.(*mat.Dense), nil
}

func cellText(c *frame.Column, i int) string {
	if c.Type == frame.Enum {
		if c.Codes[i] < 0 {
			return ""
		}
		return c.Domain[c.Codes[i]]
	}
	if math.IsNaN(c.Values[i]) {
		return ""
	}
	return strconv.FormatFloat(c.Values[i], 'f', -1, 64)
}
