package features

import (
	"math"
	"testing"
	"time"
)

func sampleFlow() FlowRecord {
	return FlowRecord{
		Timestamp: time.Now(),
		SrcAddr:   "10.0.0.5",
		DstAddr:   "192.168.1.20",
		DstPort:   443,
		Protocol:  "tcp",
		Duration:  1.5,
		BytesIn:   4096,
		BytesOut:  1024,
		PktsIn:    10,
		PktsOut:   8,
		SynCount:  1,
		AckCount:  9,
		FinCount:  1,
		RstCount:  0,
		Label:     UnlabeledFlow,
	}
}

func TestVector_LengthMatchesNames(t *testing.T) {
	v := sampleFlow().Vector()
	if len(v) != len(flowFeatureNames) {
		t.Fatalf("vector length %d does not match %d feature names", len(v), len(flowFeatureNames))
	}
}

func TestVector_NoNaNOrInf(t *testing.T) {
	flows := []FlowRecord{
		sampleFlow(),
		{}, // all-zero flow: every ratio denominator is zero
		{BytesIn: math.MaxInt64 / 2, BytesOut: math.MaxInt64 / 2, Protocol: "udp"},
	}
	for i, f := range flows {
		for j, x := range f.Vector() {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Errorf("flow %d position %d (%s): got %f", i, j, flowFeatureNames[j], x)
			}
		}
	}
}

func TestVector_ByteBalance(t *testing.T) {
	f := sampleFlow()
	f.BytesIn = 300
	f.BytesOut = 100
	v := f.Vector()
	if got := v[3]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("expected byte balance 0.5, got %f", got)
	}
}

func TestVector_ProtocolFlags(t *testing.T) {
	f := sampleFlow()
	v := f.Vector()
	if v[9] != 1 || v[10] != 0 {
		t.Errorf("tcp flow: expected is_tcp=1 is_udp=0, got %f %f", v[9], v[10])
	}
	f.Protocol = "udp"
	v = f.Vector()
	if v[9] != 0 || v[10] != 1 {
		t.Errorf("udp flow: expected is_tcp=0 is_udp=1, got %f %f", v[9], v[10])
	}
}

func TestLabeled(t *testing.T) {
	f := sampleFlow()
	if f.Labeled() {
		t.Error("unlabeled flow reported as labeled")
	}
	f.Label = 0
	if !f.Labeled() {
		t.Error("benign flow reported as unlabeled")
	}
	f.Label = 1
	if !f.Labeled() {
		t.Error("malicious flow reported as unlabeled")
	}
}
