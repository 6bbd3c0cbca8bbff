// Package linear は GLM 候補（ガウス族の線形回帰と二項・多項のロジスティック回帰）を提供する。
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/core/parallel"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// LinearRegression は線形回帰モデル（GLM gaussian）
type LinearRegression struct {
	State     *model.StateManager
	Weights   []float64 // 重み（係数）
	Intercept float64   // 切片

	// Lambda はリッジ正則化の強さ。特異な X^T X を避けるため小さな正の値を既定にする
	Lambda float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{State: model.NewStateManager(), Lambda: 1e-6}
}

// Algo はアルゴリズム名を返す
func (lr *LinearRegression) Algo() string { return "GLM" }

// Fit はモデルを訓練データで学習させる
// 正規方程式 (X^T X + λI) w = X^T y を解く（切片は正則化しない）
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	// 切片項のために X に 1 の列を追加
	XWithIntercept := mat.NewDense(r, c+1, nil)

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XWithIntercept.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				XWithIntercept.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var XTX mat.Dense
	XTX.Mul(XWithIntercept.T(), XWithIntercept)
	for j := 1; j <= c; j++ {
		XTX.Set(j, j, XTX.At(j, j)+lr.Lambda*float64(r))
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var XTy mat.VecDense
	XTy.MulVec(XWithIntercept.T(), yVec)

	var weights mat.VecDense
	if err := weights.SolveVec(&XTX, &XTy); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", weights.RawVector().Data, 0); err != nil {
		return err
	}

	lr.Intercept = weights.AtVec(0)
	lr.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Weights[j] = weights.AtVec(j + 1)
	}

	lr.State.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.State.RequireFitted("LinearRegression", "Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights[j]
		}
		predictions.Set(i, 0, pred)
	}

	return predictions, nil
}
