package automl

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/metrics"
)

// Problem is the learning task inferred from the response column.
type Problem string

const (
	Regression  Problem = "regression"
	Binomial    Problem = "binomial"
	Multinomial Problem = "multinomial"
)

// IsClassification reports whether the problem predicts class labels.
func (p Problem) IsClassification() bool { return p != Regression }

// Metric names as they appear on the leaderboard.
const (
	MetricAuto              = "AUTO"
	MetricAUC               = "auc"
	MetricLogLoss           = "logloss"
	MetricMeanPerClassError = "mean_per_class_error"
	MetricAccuracy          = "accuracy"
	MetricDeviance          = "mean_residual_deviance"
	MetricMSE               = "mse"
	MetricRMSE              = "rmse"
	MetricMAE               = "mae"
	MetricRMSLE             = "rmsle"
)

var metricAliases = map[string]string{
	"auto":                   MetricAuto,
	"auc":                    MetricAUC,
	"logloss":                MetricLogLoss,
	"mean_per_class_error":   MetricMeanPerClassError,
	"accuracy":               MetricAccuracy,
	"deviance":               MetricDeviance,
	"mean_residual_deviance": MetricDeviance,
	"mse":                    MetricMSE,
	"rmse":                   MetricRMSE,
	"mae":                    MetricMAE,
	"rmsle":                  MetricRMSLE,
}

func canonicalMetric(name string) (string, bool) {
	m, ok := metricAliases[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// higherIsBetter reports the ranking direction of a metric.
func higherIsBetter(metric string) bool {
	return metric == MetricAUC || metric == MetricAccuracy
}

// DefaultSortMetric is the ranking metric used for AUTO.
func DefaultSortMetric(p Problem) string {
	switch p {
	case Binomial:
		return MetricAUC
	case Multinomial:
		return MetricMeanPerClassError
	default:
		return MetricDeviance
	}
}

// metricsFor lists the metrics computed for a problem, in leaderboard
// column order.
func metricsFor(p Problem) []string {
	switch p {
	case Binomial:
		return []string{MetricAUC, MetricLogLoss, MetricMeanPerClassError, MetricAccuracy, MetricRMSE, MetricMSE}
	case Multinomial:
		return []string{MetricMeanPerClassError, MetricLogLoss, MetricAccuracy, MetricRMSE, MetricMSE}
	default:
		return []string{MetricDeviance, MetricRMSE, MetricMSE, MetricMAE, MetricRMSLE}
	}
}

// resolveSortMetric maps the configured metric onto the problem.
func resolveSortMetric(configured string, p Problem) (string, bool) {
	m, ok := canonicalMetric(configured)
	if !ok {
		return "", false
	}
	if m == MetricAuto {
		return DefaultSortMetric(p), true
	}
	for _, available := range metricsFor(p) {
		if available == m {
			return m, true
		}
	}
	return "", false
}

// evaluate scores predictions against y. For classification proba holds
// one column per class. Metrics that are undefined for the data (RMSLE on
// negative values) are left out.
func evaluate(p Problem, y *mat.VecDense, pred, proba mat.Matrix) (map[string]float64, error) {
	n := y.Len()
	out := make(map[string]float64)

	predVec := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		predVec.SetVec(i, pred.At(i, 0))
	}

	if !p.IsClassification() {
		mse, err := metrics.MSE(y, predVec)
		if err != nil {
			return nil, err
		}
		mae, err := metrics.MAE(y, predVec)
		if err != nil {
			return nil, err
		}
		out[MetricDeviance] = mse
		out[MetricMSE] = mse
		out[MetricRMSE] = math.Sqrt(mse)
		out[MetricMAE] = mae
		if rmsle, err := metrics.RMSLE(y, predVec); err == nil {
			out[MetricRMSLE] = rmsle
		}
		return out, nil
	}

	acc, err := metrics.Accuracy(y, predVec)
	if err != nil {
		return nil, err
	}
	mpce, err := metrics.MeanPerClassError(y, predVec)
	if err != nil {
		return nil, err
	}
	out[MetricAccuracy] = acc
	out[MetricMeanPerClassError] = mpce

	// squared error of the class probabilities against the one-hot label
	// (binomial uses the positive column only).
	_, k := proba.Dims()
	first := 0
	if p == Binomial {
		first = 1
	}
	var sq float64
	for i := 0; i < n; i++ {
		c := int(y.AtVec(i))
		for j := first; j < k; j++ {
			target := 0.0
			if j == c {
				target = 1
			}
			d := proba.At(i, j) - target
			sq += d * d
		}
	}
	mse := sq / float64(n)
	out[MetricMSE] = mse
	out[MetricRMSE] = math.Sqrt(mse)

	if p == Binomial {
		pos := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			pos.SetVec(i, proba.At(i, 1))
		}
		auc, err := metrics.AUC(y, pos)
		if err != nil {
			return nil, err
		}
		ll, err := metrics.BinaryLogLoss(y, pos)
		if err != nil {
			return nil, err
		}
		out[MetricAUC] = auc
		out[MetricLogLoss] = ll
		return out, nil
	}

	ll, err := metrics.MultiLogLoss(y, proba)
	if err != nil {
		return nil, err
	}
	out[MetricLogLoss] = ll
	return out, nil
}
