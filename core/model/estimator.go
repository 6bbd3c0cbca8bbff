package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方ができるモデル
type Estimator interface {
	Fitter
	Predictor
}

// Classifier は各クラスの確率を返せる分類モデル
//
// PredictProba の列はクラスコード 0..NClasses()-1 の順に並ぶ。
type Classifier interface {
	Estimator

	// PredictProba は各クラスの確率を予測する
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// NClasses は学習時に見たクラス数を返す
	NClasses() int
}

// Named はリーダーボードや成果物に載せるアルゴリズム名を返す
type Named interface {
	Algo() string
}

// Transformer は特徴量の前処理を行う変換器のインターフェース
type Transformer interface {
	// Fit は変換に必要な統計量を学習する
	Fit(X mat.Matrix) error

	// Transform は学習済みの統計量でデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)
}
