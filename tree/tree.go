// Package tree implements the tree-based candidate families: gradient
// boosting (GBM) and random forests (DRF, and XRT with randomised split
// thresholds). Both grow the same second-order regression tree: a node is
// split where 0.5*(GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)) is largest and a leaf
// predicts -G/(H+λ).
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a regression tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Gain      float64
	Left      int
	Right     int
	Value     float64
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a fitted regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for row i of X.
func (t Tree) Predict(X mat.Matrix, i int) float64 {
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return n.Value
		}
		if X.At(i, n.Feature) <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Leaves returns the number of leaf nodes.
func (t Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// growConfig holds the parameters shared by every tree grower.
type growConfig struct {
	MaxDepth int
	MinRows  int
	Lambda   float64
	MinGain  float64

	// Mtries is the number of features sampled per split; <= 0 uses all.
	Mtries int

	// RandomSplit draws one uniform threshold per candidate feature instead
	// of scanning every cut point (extremely randomised trees).
	RandomSplit bool
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// grower builds one tree from precomputed gradients and hessians.
type grower struct {
	X    *mat.Dense
	grad []float64
	hess []float64
	cfg  growConfig
	rng  *rand.Rand
	tree Tree
}

func growTree(X *mat.Dense, grad, hess []float64, indices []int, cfg growConfig, rng *rand.Rand) Tree {
	g := &grower{X: X, grad: grad, hess: hess, cfg: cfg, rng: rng}
	g.buildNode(indices, 0)
	return g.tree
}

func (g *grower) buildNode(indices []int, depth int) int {
	nodeIdx := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{Left: -1, Right: -1, Value: g.leafValue(indices)})

	if (g.cfg.MaxDepth > 0 && depth >= g.cfg.MaxDepth) || len(indices) < 2*g.minRows() {
		return nodeIdx
	}

	best := g.findBestSplit(indices)
	if best.feature < 0 || best.gain <= g.cfg.MinGain {
		return nodeIdx
	}

	left, right := g.partition(indices, best)
	if len(left) == 0 || len(right) == 0 {
		return nodeIdx
	}

	g.tree.Nodes[nodeIdx].Feature = best.feature
	g.tree.Nodes[nodeIdx].Threshold = best.threshold
	g.tree.Nodes[nodeIdx].Gain = best.gain

	l := g.buildNode(left, depth+1)
	r := g.buildNode(right, depth+1)
	g.tree.Nodes[nodeIdx].Left = l
	g.tree.Nodes[nodeIdx].Right = r
	return nodeIdx
}

func (g *grower) minRows() int {
	if g.cfg.MinRows < 1 {
		return 1
	}
	return g.cfg.MinRows
}

// candidateFeatures returns the features considered at one node.
func (g *grower) candidateFeatures() []int {
	_, cols := g.X.Dims()
	if g.cfg.Mtries <= 0 || g.cfg.Mtries >= cols || g.rng == nil {
		all := make([]int, cols)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return g.rng.Perm(cols)[:g.cfg.Mtries]
}

func (g *grower) findBestSplit(indices []int) split {
	best := split{feature: -1, gain: math.Inf(-1)}
	for _, j := range g.candidateFeatures() {
		var s split
		if g.cfg.RandomSplit && g.rng != nil {
			s = g.randomSplitForFeature(indices, j)
		} else {
			s = g.bestSplitForFeature(indices, j)
		}
		if s.feature >= 0 && s.gain > best.gain {
			best = s
		}
	}
	return best
}

func (g *grower) totals(indices []int) (float64, float64) {
	var G, H float64
	for _, idx := range indices {
		G += g.grad[idx]
		H += g.hess[idx]
	}
	return G, H
}

func (g *grower) bestSplitForFeature(indices []int, feature int) split {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Slice(sorted, func(a, b int) bool {
		return g.X.At(sorted[a], feature) < g.X.At(sorted[b], feature)
	})

	totalGrad, totalHess := g.totals(indices)
	best := split{feature: -1, gain: math.Inf(-1)}
	minRows := g.minRows()

	var leftGrad, leftHess float64
	for i := 0; i < len(sorted)-1; i++ {
		idx := sorted[i]
		leftGrad += g.grad[idx]
		leftHess += g.hess[idx]

		v, next := g.X.At(idx, feature), g.X.At(sorted[i+1], feature)
		if v == next {
			continue
		}
		leftCount := i + 1
		if leftCount < minRows || len(sorted)-leftCount < minRows {
			continue
		}

		gain := g.gain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > best.gain {
			best = split{feature: feature, threshold: (v + next) / 2, gain: gain}
		}
	}
	return best
}

func (g *grower) randomSplitForFeature(indices []int, feature int) split {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, idx := range indices {
		v := g.X.At(idx, feature)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !(hi > lo) {
		return split{feature: -1}
	}
	threshold := lo + g.rng.Float64()*(hi-lo)

	totalGrad, totalHess := g.totals(indices)
	var leftGrad, leftHess float64
	leftCount := 0
	for _, idx := range indices {
		if g.X.At(idx, feature) <= threshold {
			leftGrad += g.grad[idx]
			leftHess += g.hess[idx]
			leftCount++
		}
	}
	if leftCount < g.minRows() || len(indices)-leftCount < g.minRows() {
		return split{feature: -1}
	}
	gain := g.gain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
	return split{feature: feature, threshold: threshold, gain: gain}
}

func (g *grower) gain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := g.cfg.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

func (g *grower) partition(indices []int, s split) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if g.X.At(idx, s.feature) <= s.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (g *grower) leafValue(indices []int) float64 {
	G, H := g.totals(indices)
	const epsilon = 1e-10
	return -G / (H + g.cfg.Lambda + epsilon)
}

// toDense returns X as a *mat.Dense, copying only when necessary.
func toDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

// classCodes converts an n×1 label matrix to integer codes and returns the
// number of classes (largest code + 1, at least k).
func classCodes(y mat.Matrix, k int) ([]int, int, bool) {
	n, _ := y.Dims()
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return nil, 0, false
		}
		codes[i] = int(v)
		if codes[i]+1 > k {
			k = codes[i] + 1
		}
	}
	if k < 2 {
		k = 2
	}
	return codes, k, true
}
