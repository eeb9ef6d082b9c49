package gbt

import (
	"sort"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
)

// FeatureImportance is the aggregated split gain for one feature across an
// ensemble, normalized so all importances sum to 1.
type FeatureImportance struct {
	Feature    int     `json:"feature"`
	Name       string  `json:"name,omitempty"`
	Gain       float64 `json:"gain"`
	Splits     int     `json:"splits"`
	Importance float64 `json:"importance"`
}

// Importance aggregates split gains across the given ensemble members. Names
// may be nil; when provided, names[i] labels feature i. Members that are not
// gbt trees are skipped.
func Importance(members []boost.TreeModel, names []string) []FeatureImportance {
	gains := map[int]*FeatureImportance{}
	for _, m := range members {
		t, ok := m.(*Tree)
		if !ok {
			continue
		}
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			fi := gains[n.Feature]
			if fi == nil {
				fi = &FeatureImportance{Feature: n.Feature}
				gains[n.Feature] = fi
			}
			fi.Gain += n.Gain
			fi.Splits++
		}
	}

	var total float64
	out := make([]FeatureImportance, 0, len(gains))
	for _, fi := range gains {
		if fi.Feature < len(names) {
			fi.Name = names[fi.Feature]
		}
		total += fi.Gain
		out = append(out, *fi)
	}
	if total > 0 {
		for i := range out {
			out[i].Importance = out[i].Gain / total
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gain > out[j].Gain })
	return out
}
