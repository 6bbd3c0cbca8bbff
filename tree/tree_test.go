package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGrowTree_StepFunction(t *testing.T) {
	// y = 0 for x < 2, y = 10 otherwise
	X := mat.NewDense(6, 1, []float64{0, 1, 1.5, 2.5, 3, 4})
	y := []float64{0, 0, 0, 10, 10, 10}

	grad := make([]float64, len(y))
	hess := make([]float64, len(y))
	for i, v := range y {
		grad[i] = -v
		hess[i] = 1
	}
	indices := []int{0, 1, 2, 3, 4, 5}

	tr := growTree(X, grad, hess, indices, growConfig{MaxDepth: 3, MinRows: 1}, nil)

	root := tr.Nodes[0]
	if root.IsLeaf() {
		t.Fatal("expected the root to be split")
	}
	if root.Threshold != 2 {
		t.Errorf("root threshold = %v, want 2", root.Threshold)
	}
	if tr.Leaves() != 2 {
		t.Errorf("Leaves() = %d, want 2 (both halves are pure)", tr.Leaves())
	}
	for i, want := range y {
		if got := tr.Predict(X, i); math.Abs(got-want) > 1e-6 {
			t.Errorf("row %d: got %v want %v", i, got, want)
		}
	}
}

func TestGrowTree_Constraints(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	grad := []float64{-1, -2, -3, -4, -5, -6, -7, -8}
	hess := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	indices := []int{0, 1, 2, 3, 4, 5, 6, 7}

	t.Run("max depth", func(t *testing.T) {
		tr := growTree(X, grad, hess, indices, growConfig{MaxDepth: 1}, nil)
		if tr.Leaves() != 2 {
			t.Errorf("Leaves() = %d, want 2", tr.Leaves())
		}
	})

	t.Run("min rows", func(t *testing.T) {
		tr := growTree(X, grad, hess, indices, growConfig{MinRows: 4}, nil)
		for _, n := range tr.Nodes {
			if !n.IsLeaf() {
				continue
			}
			count := 0
			for i := 0; i < 8; i++ {
				if tr.Predict(X, i) == n.Value {
					count++
				}
			}
			if count < 4 {
				t.Errorf("leaf %v holds %d rows, want >= 4", n.Value, count)
			}
		}
	})

	t.Run("random split stays inside the range", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		tr := growTree(X, grad, hess, indices, growConfig{MaxDepth: 1, RandomSplit: true}, rng)
		root := tr.Nodes[0]
		if !root.IsLeaf() && (root.Threshold < 0 || root.Threshold > 7) {
			t.Errorf("threshold %v outside [0, 7]", root.Threshold)
		}
	})
}

func TestClassCodes(t *testing.T) {
	codes, k, ok := classCodes(mat.NewDense(3, 1, []float64{0, 2, 1}), 0)
	if !ok || k != 3 || codes[1] != 2 {
		t.Errorf("classCodes() = %v, %d, %v", codes, k, ok)
	}

	_, k, _ = classCodes(mat.NewDense(2, 1, []float64{0, 0}), 0)
	if k != 2 {
		t.Errorf("single observed class should still give 2 classes, got %d", k)
	}

	if _, _, ok := classCodes(mat.NewDense(1, 1, []float64{1.5}), 0); ok {
		t.Error("fractional label should be rejected")
	}
}
