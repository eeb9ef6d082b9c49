package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
)

func flowMessage(t *testing.T, overrides map[string]any) map[string]any {
	t.Helper()
	data := map[string]any{
		"src_addr":  "10.0.0.5",
		"dst_addr":  "192.168.1.20",
		"dst_port":  float64(443),
		"protocol":  "tcp",
		"duration":  1.5,
		"bytes_in":  float64(4096),
		"bytes_out": float64(1024),
		"pkts_in":   float64(10),
		"pkts_out":  float64(8),
		"syn_count": float64(1),
		"ack_count": float64(9),
		"timestamp": "2026-08-20T10:00:00Z",
	}
	for k, v := range overrides {
		if v == nil {
			delete(data, k)
			continue
		}
		data[k] = v
	}
	return map[string]any{"ch": "flows", "data": data}
}

func TestParseFlow_Valid(t *testing.T) {
	flow, err := parseFlow(flowMessage(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", flow.SrcAddr)
	assert.Equal(t, "192.168.1.20", flow.DstAddr)
	assert.Equal(t, 443, flow.DstPort)
	assert.Equal(t, "tcp", flow.Protocol)
	assert.Equal(t, 1.5, flow.Duration)
	assert.Equal(t, int64(4096), flow.BytesIn)
	assert.Equal(t, 1, flow.SynCount)
	assert.Equal(t, 9, flow.AckCount)
	assert.Equal(t, features.UnlabeledFlow, flow.Label, "unlabeled by default")

	want, _ := time.Parse(time.RFC3339, "2026-08-20T10:00:00Z")
	assert.True(t, flow.Timestamp.Equal(want))
}

func TestParseFlow_StringNumbers(t *testing.T) {
	flow, err := parseFlow(flowMessage(t, map[string]any{
		"dst_port": "8080",
		"duration": "0.25",
		"bytes_in": "2048",
	}))
	require.NoError(t, err)
	assert.Equal(t, 8080, flow.DstPort)
	assert.Equal(t, 0.25, flow.Duration)
	assert.Equal(t, int64(2048), flow.BytesIn)
}

func TestParseFlow_Label(t *testing.T) {
	flow, err := parseFlow(flowMessage(t, map[string]any{"label": float64(1)}))
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Label)
	assert.True(t, flow.Labeled())
}

func TestParseFlow_MissingTimestampDefaultsToNow(t *testing.T) {
	flow, err := parseFlow(flowMessage(t, map[string]any{"timestamp": nil}))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), flow.Timestamp, 5*time.Second)
}

func TestParseFlow_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"missing source", map[string]any{"src_addr": nil}, "missing source address"},
		{"empty destination", map[string]any{"dst_addr": ""}, "missing destination address"},
		{"port out of range", map[string]any{"dst_port": float64(70000)}, "out of range"},
		{"negative duration", map[string]any{"duration": float64(-1)}, "negative duration"},
		{"negative bytes", map[string]any{"bytes_in": float64(-5)}, "negative bytes_in"},
		{"NaN duration", map[string]any{"duration": "NaN"}, "NaN"},
		{"garbage port", map[string]any{"dst_port": "not-a-port"}, "invalid dst_port"},
		{"bad label", map[string]any{"label": float64(3)}, "invalid label"},
		{"negative flag count", map[string]any{"syn_count": float64(-1)}, "negative syn_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlow(flowMessage(t, tt.overrides))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFlow_MalformedEnvelope(t *testing.T) {
	_, err := parseFlow(map[string]any{"ch": "flows", "data": []any{"wrong"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow data format")
}

func TestParseFlow_RawJSONPayload(t *testing.T) {
	payload := `{"ch":"flows","data":{"src_addr":"172.16.0.9","dst_addr":"10.1.1.1",
		"dst_port":22,"protocol":"tcp","duration":0.05,"bytes_in":640,"bytes_out":480,
		"pkts_in":7,"pkts_out":6,"syn_count":3,"ack_count":0,"label":1}}`

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	flow, err := parseFlow(raw)
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.9", flow.SrcAddr)
	assert.Equal(t, 3, flow.SynCount)
	assert.Equal(t, 0, flow.AckCount)
	assert.Equal(t, 1, flow.Label)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{"float64", 1.5, 1.5, false},
		{"int", 7, 7, false},
		{"int64", int64(9), 9, false},
		{"numeric string", "3.25", 3.25, false},
		{"empty string", "", 0, true},
		{"garbage string", "abc", 0, true},
		{"NaN string", "NaN", 0, true},
		{"Inf string", "+Inf", 0, true},
		{"bool", true, 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toFloat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	a := Sign("secret", "nonce", "key", "1700000000")
	b := Sign("secret", "nonce", "key", "1700000000")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded sha256")

	c := Sign("other-secret", "nonce", "key", "1700000000")
	assert.NotEqual(t, a, c)
}

func TestStats_Snapshot(t *testing.T) {
	var s Stats
	s.received.Add(10)
	s.parsed.Add(8)
	s.dropped.Add(1)
	s.parseFails.Add(1)
	s.reconnects.Add(2)

	snap := s.Snapshot()
	assert.Equal(t, uint64(10), snap.Received)
	assert.Equal(t, uint64(8), snap.Parsed)
	assert.Equal(t, uint64(1), snap.Dropped)
	assert.Equal(t, uint64(1), snap.ParseFails)
	assert.Equal(t, uint64(2), snap.Reconnects)
}
