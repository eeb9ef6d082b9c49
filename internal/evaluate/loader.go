// Package evaluate replays labeled flow datasets through the online learner
// in prequential order: every flow is scored first and trained on second, so
// accuracy is measured on examples the model has never seen.
package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
)

// Loader loads and serves labeled flows in timestamp order.
type Loader struct {
	flows     []features.FlowRecord
	index     int
	skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{flows: make([]features.FlowRecord, 0)}
}

// LoadFromBoltDB pulls every labeled flow out of the live capture store.
func (l *Loader) LoadFromBoltDB(store *storage.Store) error {
	err := store.IterateFlows(func(flow features.FlowRecord) bool {
		if flow.Labeled() {
			l.flows = append(l.flows, flow)
		} else {
			l.skipped++
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("load flows from store: %w", err)
	}
	l.finalize("boltdb")
	return nil
}

// LoadFromCSV reads a header-mapped CSV of flow records. Rows without a valid
// 0/1 label and rows that fail to parse are skipped, not fatal.
func (l *Loader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[col] = i
	}
	for _, required := range []string{"src_addr", "dst_addr", "label"} {
		if _, ok := indices[required]; !ok {
			return fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.skipped++
			continue
		}

		flow, ok := parseCSVFlow(record, indices)
		if !ok {
			l.skipped++
			continue
		}
		l.flows = append(l.flows, flow)
	}

	l.finalize(filePath)
	return nil
}

func parseCSVFlow(record []string, indices map[string]int) (features.FlowRecord, bool) {
	field := func(name string) string {
		idx, ok := indices[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}
	intField := func(name string) int {
		n, _ := strconv.Atoi(field(name))
		return n
	}
	int64Field := func(name string) int64 {
		n, _ := strconv.ParseInt(field(name), 10, 64)
		return n
	}

	label, err := strconv.Atoi(field("label"))
	if err != nil || (label != 0 && label != 1) {
		return features.FlowRecord{}, false
	}

	flow := features.FlowRecord{
		SrcAddr:  field("src_addr"),
		DstAddr:  field("dst_addr"),
		DstPort:  intField("dst_port"),
		Protocol: field("protocol"),
		BytesIn:  int64Field("bytes_in"),
		BytesOut: int64Field("bytes_out"),
		PktsIn:   int64Field("pkts_in"),
		PktsOut:  int64Field("pkts_out"),
		SynCount: intField("syn_count"),
		AckCount: intField("ack_count"),
		FinCount: intField("fin_count"),
		RstCount: intField("rst_count"),
		Label:    label,
	}
	if flow.SrcAddr == "" || flow.DstAddr == "" {
		return features.FlowRecord{}, false
	}

	flow.Duration, _ = strconv.ParseFloat(field("duration"), 64)

	if ts := field("timestamp"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			flow.Timestamp = parsed
		}
	}
	return flow, true
}

// LoadFromJSONL reads a stream of JSON flow records, one object per line.
func (l *Loader) LoadFromJSONL(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for decoder.More() {
		var flow features.FlowRecord
		if err := decoder.Decode(&flow); err != nil {
			return fmt.Errorf("parse JSONL record %d: %w", len(l.flows)+l.skipped+1, err)
		}
		if !flow.Labeled() {
			l.skipped++
			continue
		}
		l.flows = append(l.flows, flow)
	}

	l.finalize(filePath)
	return nil
}

func (l *Loader) finalize(source string) {
	sort.SliceStable(l.flows, func(i, j int) bool {
		return l.flows[i].Timestamp.Before(l.flows[j].Timestamp)
	})
	if len(l.flows) > 0 {
		l.StartTime = l.flows[0].Timestamp
		l.EndTime = l.flows[len(l.flows)-1].Timestamp
	}
	log.Info().
		Str("source", source).
		Int("flows", len(l.flows)).
		Int("skipped", l.skipped).
		Msg("dataset loaded")
}

// Reset rewinds the loader to the first flow.
func (l *Loader) Reset() {
	l.index = 0
}

// HasNext reports whether more flows remain.
func (l *Loader) HasNext() bool {
	return l.index < len(l.flows)
}

// Next returns the next flow. Calling past the end returns a zero record.
func (l *Loader) Next() features.FlowRecord {
	if l.index >= len(l.flows) {
		return features.FlowRecord{}
	}
	flow := l.flows[l.index]
	l.index++
	return flow
}

// Count returns the number of loaded flows.
func (l *Loader) Count() int {
	return len(l.flows)
}

// Skipped returns how many records were dropped during loading.
func (l *Loader) Skipped() int {
	return l.skipped
}

// Progress returns replay progress as a percentage.
func (l *Loader) Progress() float64 {
	if len(l.flows) == 0 {
		return 100.0
	}
	return float64(l.index) / float64(len(l.flows)) * 100.0
}
