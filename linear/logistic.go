package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/preprocessing"
)

// LogisticRegression is the GLM candidate for classification: a single
// logistic model for two classes, one-vs-rest for more. Labels are class
// codes 0..K-1. Inputs are standardised before gradient descent.
type LogisticRegression struct {
	State  *model.StateManager
	Scaler *preprocessing.StandardScaler

	// Hyperparameters
	C       float64 // Inverse regularization strength
	MaxIter int
	Tol     float64

	// Model parameters. Coef has one row for binary problems and one row
	// per class otherwise.
	Coef      [][]float64
	Intercept []float64
	Classes   int
	NIter     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:   model.NewStateManager(),
		C:       1.0,
		MaxIter: 200,
		Tol:     1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithNClasses fixes the number of classes. Without it the count is
// inferred as the largest code seen plus one, which undercounts when the
// training rows miss a level of the response domain.
func WithNClasses(k int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Classes = k
	}
}

// Algo returns the candidate family name.
func (lr *LogisticRegression) Algo() string { return "GLM" }

// NClasses returns the number of classes the model predicts.
func (lr *LogisticRegression) NClasses() int { return lr.Classes }

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}

	labels := make([]int, nSamples)
	maxCode := 0
	for i := range labels {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return errors.NewValueError("LogisticRegression.Fit", "labels must be non-negative class codes")
		}
		labels[i] = int(v)
		if labels[i] > maxCode {
			maxCode = labels[i]
		}
	}
	if lr.Classes <= maxCode {
		lr.Classes = maxCode + 1
	}
	if lr.Classes < 2 {
		lr.Classes = 2
	}

	lr.Scaler = preprocessing.NewStandardScalerDefault()
	Xs, err := lr.Scaler.FitTransform(X)
	if err != nil {
		return err
	}

	rows := 1
	if lr.Classes > 2 {
		rows = lr.Classes
	}
	lr.Coef = make([][]float64, rows)
	lr.Intercept = make([]float64, rows)
	lr.NIter = make([]int, rows)

	positive := 1
	for k := 0; k < rows; k++ {
		if rows > 1 {
			positive = k
		}
		target := make([]float64, nSamples)
		for i, l := range labels {
			if l == positive {
				target[i] = 1
			}
		}
		if err := lr.fitBinary(Xs, target, k); err != nil {
			return err
		}
	}

	lr.State.SetFitted(nFeatures, nSamples)
	return nil
}

// fitBinary fits one row of coefficients by gradient descent on the
// L2-penalised log loss.
func (lr *LogisticRegression) fitBinary(X mat.Matrix, target []float64, row int) error {
	nSamples, nFeatures := X.Dims()
	weights := make([]float64, nFeatures)
	intercept := 0.0
	lambda := 1.0 / (lr.C * float64(nSamples))

	const baseLearningRate = 1.0
	converged := false

	for iter := 0; iter < lr.MaxIter; iter++ {
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			diff := sigmoid(z) - target[i]
			gradIntercept += diff
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += diff * X.At(i, j)
			}
		}

		maxGrad := math.Abs(gradIntercept / float64(nSamples))
		for j := range gradWeights {
			gradWeights[j] = gradWeights[j]/float64(nSamples) + lambda*weights[j]
			maxGrad = math.Max(maxGrad, math.Abs(gradWeights[j]))
		}
		gradIntercept /= float64(nSamples)

		learningRate := baseLearningRate / (1.0 + 0.01*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		intercept -= learningRate * gradIntercept

		lr.NIter[row] = iter + 1
		if err := errors.CheckScalar("LogisticRegression.Fit", intercept, iter); err != nil {
			return err
		}
		if maxGrad < lr.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.MaxIter, ""))
	}

	lr.Coef[row] = weights
	lr.Intercept[row] = intercept
	return nil
}

// PredictProba returns an n×K matrix of class probabilities. One-vs-rest
// scores are normalised to sum to one per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, nFeatures := X.Dims()
	if err := lr.State.RequireFitted("LogisticRegression", "PredictProba", nFeatures); err != nil {
		return nil, err
	}
	Xs, err := lr.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	proba := mat.NewDense(nSamples, lr.Classes, nil)
	for i := 0; i < nSamples; i++ {
		if len(lr.Coef) == 1 {
			p := sigmoid(lr.linear(Xs, i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		sum := 0.0
		for k := range lr.Coef {
			p := sigmoid(lr.linear(Xs, i, k))
			proba.Set(i, k, p)
			sum += p
		}
		for k := range lr.Coef {
			proba.Set(i, k, errors.SafeDivide(proba.At(i, k), sum))
		}
	}
	return proba, nil
}

// Predict returns the most probable class code per row as an n×1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgMax(proba), nil
}

func (lr *LogisticRegression) linear(X mat.Matrix, i, row int) float64 {
	z := lr.Intercept[row]
	for j, w := range lr.Coef[row] {
		z += X.At(i, j) * w
	}
	return z
}

// ArgMax returns an n×1 matrix holding the column index of each row's
// largest value.
func ArgMax(proba mat.Matrix) *mat.Dense {
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

// sigmoid computes the logistic function, clipped to avoid overflow.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-errors.ClipValue(z, -500, 500)))
}
