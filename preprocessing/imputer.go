package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// MeanImputer は欠損値（NaN）を学習データの列平均で置き換える。
// すべて欠損の列は0で埋める。
type MeanImputer struct {
	State *model.StateManager

	// Fill は各特徴量の補完値
	Fill []float64
}

// NewMeanImputer は新しいMeanImputerを作成する
func NewMeanImputer() *MeanImputer {
	return &MeanImputer{State: model.NewStateManager()}
}

// Fit は欠損を除いた列平均を計算する
func (m *MeanImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MeanImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	m.Fill = make([]float64, c)
	for j := 0; j < c; j++ {
		sum, n := 0.0, 0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n > 0 {
			m.Fill[j] = sum / float64(n)
		}
	}

	m.State.SetFitted(c, r)
	return nil
}

// Transform は NaN を補完値で置き換えた新しい行列を返す
func (m *MeanImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.State.RequireFitted("MeanImputer", "Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return m.Fill[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MeanImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}
