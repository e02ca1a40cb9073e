package model

import (
	"math"
	"sort"

	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

// BoostingConfig holds the gradient boosting hyperparameters
type BoostingConfig struct {
	LearningRate   float64 `msgpack:"learning_rate" json:"learning_rate"`
	MaxDepth       int     `msgpack:"max_depth" json:"max_depth"`
	MinSamplesLeaf int     `msgpack:"min_samples_leaf" json:"min_samples_leaf"`
	L2             float64 `msgpack:"l2" json:"l2"`
	Rounds         int     `msgpack:"rounds" json:"rounds"`
}

// DefaultBoostingConfig returns the production hyperparameters.
// Shallow trees with a generous leaf minimum keep the ensemble from
// memorizing clustered event months.
func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{
		LearningRate:   0.08,
		MaxDepth:       3,
		MinSamplesLeaf: 20,
		L2:             0.1,
		Rounds:         100,
	}
}

// TreeNode is one node of a regression tree over logit residuals.
// Leaf nodes carry Value; internal nodes route on Feature/Threshold.
type TreeNode struct {
	Leaf      bool      `msgpack:"leaf" json:"leaf"`
	Value     float64   `msgpack:"value" json:"value"`
	Feature   int       `msgpack:"feature" json:"feature"`
	Threshold float64   `msgpack:"threshold" json:"threshold"`
	Left      *TreeNode `msgpack:"left,omitempty" json:"left,omitempty"`
	Right     *TreeNode `msgpack:"right,omitempty" json:"right,omitempty"`
}

func (n *TreeNode) eval(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// BoostedTrees is a gradient-boosted tree classifier for binary
// labels, fit with Newton steps on the logistic loss
type BoostedTrees struct {
	Config BoostingConfig `msgpack:"config" json:"config"`
	Base   float64        `msgpack:"base" json:"base"`
	Trees  []*TreeNode    `msgpack:"trees" json:"trees"`
}

// FitBoostedTrees fits the ensemble on an imputed design matrix.
// Boosting stops early once a round contributes nothing.
func FitBoostedTrees(X [][]float64, y []int, w []float64, cfg BoostingConfig) *BoostedTrees {
	n := len(X)
	b := &BoostedTrees{Config: cfg}
	if n == 0 {
		return b
	}

	// prior log-odds from the weighted base rate
	sumW, sumWY := 0.0, 0.0
	for i := range y {
		sumW += w[i]
		sumWY += w[i] * float64(y[i])
	}
	p0 := sumWY / sumW
	p0 = math.Min(math.Max(p0, 1e-6), 1-1e-6)
	b.Base = math.Log(p0 / (1 - p0))

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = b.Base
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < cfg.Rounds; round++ {
		for i := range X {
			p := formulas.Sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = p * (1 - p)
		}

		tree := buildTree(X, grad, hess, w, all, cfg, 0)
		if tree.Leaf && math.Abs(tree.Value) < 1e-12 {
			break
		}
		b.Trees = append(b.Trees, tree)
		for i, x := range X {
			margin[i] += cfg.LearningRate * tree.eval(x)
		}
	}
	return b
}

// Decision returns the raw logit for one row
func (b *BoostedTrees) Decision(x []float64) float64 {
	s := b.Base
	for _, tree := range b.Trees {
		s += b.Config.LearningRate * tree.eval(x)
	}
	return s
}

// PredictProba returns P(y=1|x)
func (b *BoostedTrees) PredictProba(x []float64) float64 {
	return formulas.Sigmoid(b.Decision(x))
}

func leafValue(grad, hess, w []float64, rows []int, l2 float64) float64 {
	var g, h float64
	for _, i := range rows {
		g += w[i] * grad[i]
		h += w[i] * hess[i]
	}
	return -g / (h + l2)
}

func nodeScore(grad, hess, w []float64, rows []int, l2 float64) float64 {
	var g, h float64
	for _, i := range rows {
		g += w[i] * grad[i]
		h += w[i] * hess[i]
	}
	return g * g / (h + l2)
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func buildTree(X [][]float64, grad, hess, w []float64, rows []int, cfg BoostingConfig, depth int) *TreeNode {
	if depth >= cfg.MaxDepth || len(rows) < 2*cfg.MinSamplesLeaf {
		return &TreeNode{Leaf: true, Value: leafValue(grad, hess, w, rows, cfg.L2)}
	}

	best := findBestSplit(X, grad, hess, w, rows, cfg)
	if best == nil {
		return &TreeNode{Leaf: true, Value: leafValue(grad, hess, w, rows, cfg.L2)}
	}

	return &TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildTree(X, grad, hess, w, best.left, cfg, depth+1),
		Right:     buildTree(X, grad, hess, w, best.right, cfg, depth+1),
	}
}

func findBestSplit(X [][]float64, grad, hess, w []float64, rows []int, cfg BoostingConfig) *split {
	parent := nodeScore(grad, hess, w, rows, cfg.L2)
	var best *split

	order := make([]int, len(rows))
	for f := 0; f < len(X[rows[0]]); f++ {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var gl, hl float64
		var gr, hr float64
		for _, i := range order {
			gr += w[i] * grad[i]
			hr += w[i] * hess[i]
		}

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			gl += w[i] * grad[i]
			hl += w[i] * hess[i]
			gr -= w[i] * grad[i]
			hr -= w[i] * hess[i]

			left, right := pos+1, len(order)-pos-1
			if left < cfg.MinSamplesLeaf || right < cfg.MinSamplesLeaf {
				continue
			}
			v, next := X[i][f], X[order[pos+1]][f]
			if v == next {
				continue
			}

			gain := gl*gl/(hl+cfg.L2) + gr*gr/(hr+cfg.L2) - parent
			if best == nil || gain > best.gain {
				best = &split{
					feature:   f,
					threshold: (v + next) / 2,
					gain:      gain,
				}
				best.left = append([]int{}, order[:pos+1]...)
				best.right = append([]int{}, order[pos+1:]...)
			}
		}
	}

	if best != nil && best.gain <= 1e-12 {
		return nil
	}
	return best
}
