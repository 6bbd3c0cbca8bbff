package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// logLossEps は log(0) を避けるための確率のクリップ幅
const logLossEps = 1e-15

// checkBinary はラベルが0または1のみであることを検証し、陽性・陰性の件数を返す
func checkBinary(op string, yTrue *mat.VecDense) (nPos, nNeg int, err error) {
	for i := 0; i < yTrue.Len(); i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
			nNeg++
		default:
			return 0, 0, errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return nPos, nNeg, nil
}

// AUC は ROC 曲線下面積を計算する。yPred は陽性クラスのスコア。
// 同点のスコアは順位の平均で扱う（Mann-Whitney U 統計量）。
// 片方のクラスしか存在しない場合は定義できないため 0.5 を返し、警告を出す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	nPos, nNeg, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	// 同点グループには平均順位（1始まり）を与える
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j + 1
	}

	p, q := float64(nPos), float64(nNeg)
	return (rankSumPos - p*(p+1)/2) / (p * q), nil
}

// AUCMatrix は行列形式の入力に対して AUC を計算する。先頭列のみを使用する。
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}
	return AUC(firstColumn(yTrue), firstColumn(yPred))
}

// BinaryLogLoss は二値分類の交差エントロピーを計算する。
// yPred は陽性クラスの確率で、[eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if _, _, err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// MultiLogLoss は多クラス分類の交差エントロピーを計算する。
// yTrue はクラスコード（0..K-1）、proba は n×K のクラス確率行列。
func MultiLogLoss(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	if yTrue == nil || proba == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("MultiLogLoss", "empty input")
	}
	n := yTrue.Len()
	r, k := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("MultiLogLoss", n, r, 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		c := int(yTrue.AtVec(i))
		if c < 0 || c >= k || float64(c) != yTrue.AtVec(i) {
			return 0, errors.NewValueError("MultiLogLoss", "label outside of the probability columns")
		}
		sum -= math.Log(errors.ClipValue(proba.At(i, c), logLossEps, 1-logLossEps))
	}
	return sum / float64(n), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// MeanPerClassError はクラスごとの誤分類率の平均を計算する。
// yTrue に現れるクラスのみを平均の対象とする。
func MeanPerClassError(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MeanPerClassError", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	total := make(map[float64]int)
	wrong := make(map[float64]int)
	for i := 0; i < n; i++ {
		c := yTrue.AtVec(i)
		total[c]++
		if yPred.AtVec(i) != c {
			wrong[c]++
		}
	}

	var sum float64
	for c, cnt := range total {
		sum += float64(wrong[c]) / float64(cnt)
	}
	return sum / float64(len(total)), nil
}
