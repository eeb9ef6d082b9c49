// Package features converts raw network flow records into the fixed-length
// numeric vectors the online classifier consumes. Per-flow features come
// straight from the record; behavioral features are maintained per source
// address over rolling windows by the Extractor.
package features

import (
	"math"
	"time"
)

// UnlabeledFlow marks a flow with no ground truth attached.
const UnlabeledFlow = -1

// FlowRecord is one observed network flow. Label is 0 (benign), 1
// (malicious), or UnlabeledFlow when no ground truth is available.
type FlowRecord struct {
	Timestamp time.Time `json:"timestamp"`
	SrcAddr   string    `json:"src_addr"`
	DstAddr   string    `json:"dst_addr"`
	DstPort   int       `json:"dst_port"`
	Protocol  string    `json:"protocol"`
	Duration  float64   `json:"duration"` // seconds
	BytesIn   int64     `json:"bytes_in"`
	BytesOut  int64     `json:"bytes_out"`
	PktsIn    int64     `json:"pkts_in"`
	PktsOut   int64     `json:"pkts_out"`
	SynCount  int       `json:"syn_count"`
	AckCount  int       `json:"ack_count"`
	FinCount  int       `json:"fin_count"`
	RstCount  int       `json:"rst_count"`
	Label     int       `json:"label"`
}

// Labeled reports whether the flow carries ground truth.
func (f FlowRecord) Labeled() bool {
	return f.Label == 0 || f.Label == 1
}

// flowFeatureNames are the per-flow vector positions, in order.
var flowFeatureNames = []string{
	"duration",
	"log_bytes_in",
	"log_bytes_out",
	"byte_balance",
	"mean_pkt_size",
	"pkt_ratio",
	"syn_ratio",
	"rst_ratio",
	"fin_ratio",
	"is_tcp",
	"is_udp",
	"dst_port_scaled",
}

// Vector produces the per-flow portion of the feature vector. Every entry is
// guarded against NaN/Inf so a malformed flow cannot poison training.
func (f FlowRecord) Vector() []float64 {
	totalBytes := float64(f.BytesIn + f.BytesOut)
	totalPkts := float64(f.PktsIn + f.PktsOut)
	flags := float64(f.SynCount + f.AckCount + f.FinCount + f.RstCount)

	v := []float64{
		f.Duration,
		math.Log1p(float64(f.BytesIn)),
		math.Log1p(float64(f.BytesOut)),
		safeRatio(float64(f.BytesIn-f.BytesOut), totalBytes),
		safeRatio(totalBytes, totalPkts),
		safeRatio(float64(f.PktsIn), totalPkts),
		safeRatio(float64(f.SynCount), flags),
		safeRatio(float64(f.RstCount), flags),
		safeRatio(float64(f.FinCount), flags),
		boolFeature(f.Protocol == "tcp"),
		boolFeature(f.Protocol == "udp"),
		float64(f.DstPort) / 65535.0,
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}
	return v
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
