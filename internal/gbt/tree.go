package gbt

// node is one entry in the flattened tree. Leaves carry the regularized
// weight already scaled by the learning rate; internal nodes carry the split
// and the gain it contributed (used for feature importance).
type node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Weight    float64 `json:"weight,omitempty"`
	Gain      float64 `json:"gain,omitempty"`
}

// Tree is one trained boosted tree, stored as a node array with index links.
// The zero node is the root. Trees are immutable after training and
// JSON-serializable for model snapshots.
type Tree struct {
	Nodes []node `json:"nodes"`
}

// Score implements boost.TreeModel. Each output is baseMargin plus this
// tree's additive contribution; with outputMargin false the sigmoid is
// applied to that sum instead.
func (t *Tree) Score(features [][]float64, baseMargin []float64, outputMargin bool) []float64 {
	out := make([]float64, len(features))
	for i, row := range features {
		base := 0.0
		if baseMargin != nil {
			base = baseMargin[i]
		}
		m := base + t.predictRow(row)
		if outputMargin {
			out[i] = m
		} else {
			out[i] = Sigmoid(m)
		}
	}
	return out
}

func (t *Tree) predictRow(row []float64) float64 {
	idx := 0
	for !t.Nodes[idx].Leaf {
		n := t.Nodes[idx]
		if n.Feature < len(row) && row[n.Feature] < n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return t.Nodes[idx].Weight
}

// Leaves returns the number of leaf nodes, a rough size diagnostic.
func (t *Tree) Leaves() int {
	n := 0
	for _, nd := range t.Nodes {
		if nd.Leaf {
			n++
		}
	}
	return n
}
