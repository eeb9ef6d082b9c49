// Generates a synthetic labeled flow dataset: mostly benign traffic with
// bursts of scan and flood activity from a few attacker addresses. Output
// goes to the flow store, a CSV file, or both, so the same data can feed the
// live pipeline and the offline evaluator.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
)

var benignPorts = []int{80, 443, 53, 22, 25, 3306, 8080}

func main() {
	var (
		dataPath  = flag.String("data", "", "Write flows into this flow store directory")
		csvPath   = flag.String("csv", "", "Write flows to this CSV file")
		count     = flag.Int("count", 10000, "Number of flows to generate")
		attackPct = flag.Float64("attack-pct", 0.15, "Fraction of malicious flows")
		attackers = flag.Int("attackers", 3, "Number of attacker source addresses")
		driftAt   = flag.Float64("drift-at", 0, "Fraction of the stream after which the attack profile shifts (0 disables)")
		seed      = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	if *dataPath == "" && *csvPath == "" {
		log.Fatal("Set -data and/or -csv for output")
	}

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now().Add(-time.Duration(*count) * 100 * time.Millisecond)

	fmt.Printf("Generating %d flows (%.0f%% malicious, %d attackers)\n",
		*count, *attackPct*100, *attackers)

	driftPoint := *count + 1
	if *driftAt > 0 {
		driftPoint = int(float64(*count) * *driftAt)
		fmt.Printf("Attack profile shifts from scans to floods at flow %d\n", driftPoint)
	}

	flows := make([]features.FlowRecord, 0, *count)
	for i := 0; i < *count; i++ {
		ts := start.Add(time.Duration(i) * 100 * time.Millisecond)
		switch {
		case rng.Float64() >= *attackPct:
			flows = append(flows, benignFlow(rng, ts))
		case i >= driftPoint:
			flows = append(flows, floodFlow(rng, ts, *attackers))
		default:
			flows = append(flows, attackFlow(rng, ts, *attackers))
		}
	}

	if *dataPath != "" {
		writeStore(*dataPath, flows)
	}
	if *csvPath != "" {
		writeCSV(*csvPath, flows)
	}

	fmt.Println("Done")
}

// benignFlow models a completed client session: balanced handshake flags and
// a realistic byte exchange.
func benignFlow(rng *rand.Rand, ts time.Time) features.FlowRecord {
	pktsOut := int64(5 + rng.Intn(50))
	pktsIn := int64(5 + rng.Intn(80))
	return features.FlowRecord{
		Timestamp: ts,
		SrcAddr:   fmt.Sprintf("10.0.%d.%d", rng.Intn(4), 1+rng.Intn(200)),
		DstAddr:   fmt.Sprintf("192.168.1.%d", 1+rng.Intn(50)),
		DstPort:   benignPorts[rng.Intn(len(benignPorts))],
		Protocol:  "tcp",
		Duration:  0.1 + rng.Float64()*5,
		BytesIn:   pktsIn * int64(200+rng.Intn(1200)),
		BytesOut:  pktsOut * int64(100+rng.Intn(400)),
		PktsIn:    pktsIn,
		PktsOut:   pktsOut,
		SynCount:  1,
		AckCount:  int(pktsIn+pktsOut) - 2,
		FinCount:  1,
		RstCount:  0,
		Label:     0,
	}
}

// attackFlow models scan traffic: a handful of attacker addresses probing
// random high ports with SYNs that never complete.
func attackFlow(rng *rand.Rand, ts time.Time, attackers int) features.FlowRecord {
	return features.FlowRecord{
		Timestamp: ts,
		SrcAddr:   fmt.Sprintf("203.0.113.%d", 1+rng.Intn(attackers)),
		DstAddr:   fmt.Sprintf("192.168.1.%d", 1+rng.Intn(50)),
		DstPort:   1024 + rng.Intn(64000),
		Protocol:  "tcp",
		Duration:  rng.Float64() * 0.01,
		BytesIn:   60,
		BytesOut:  0,
		PktsIn:    1,
		PktsOut:   0,
		SynCount:  1,
		AckCount:  0,
		FinCount:  0,
		RstCount:  rng.Intn(2),
		Label:     1,
	}
}

// floodFlow models volumetric flood traffic from a second attacker range,
// used after the drift point so the stream's attack signature changes shape.
func floodFlow(rng *rand.Rand, ts time.Time, attackers int) features.FlowRecord {
	pkts := int64(500 + rng.Intn(5000))
	return features.FlowRecord{
		Timestamp: ts,
		SrcAddr:   fmt.Sprintf("198.51.100.%d", 1+rng.Intn(attackers)),
		DstAddr:   fmt.Sprintf("192.168.1.%d", 1+rng.Intn(5)),
		DstPort:   benignPorts[rng.Intn(len(benignPorts))],
		Protocol:  "udp",
		Duration:  1 + rng.Float64()*10,
		BytesIn:   pkts * int64(64+rng.Intn(200)),
		BytesOut:  0,
		PktsIn:    pkts,
		PktsOut:   0,
		SynCount:  0,
		AckCount:  0,
		FinCount:  0,
		RstCount:  0,
		Label:     1,
	}
}

func writeStore(dataPath string, flows []features.FlowRecord) {
	store, err := storage.New(dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	for i, flow := range flows {
		if err := store.StoreFlow(flow); err != nil {
			log.Fatalf("Failed to store flow %d: %v", i, err)
		}
	}
	fmt.Printf("Stored %d flows in %s\n", len(flows), dataPath)
}

func writeCSV(csvPath string, flows []features.FlowRecord) {
	file, err := os.Create(csvPath)
	if err != nil {
		log.Fatalf("Failed to create CSV: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"timestamp", "src_addr", "dst_addr", "dst_port", "protocol", "duration",
		"bytes_in", "bytes_out", "pkts_in", "pkts_out",
		"syn_count", "ack_count", "fin_count", "rst_count", "label",
	}
	if err := writer.Write(header); err != nil {
		log.Fatalf("Failed to write header: %v", err)
	}

	for _, f := range flows {
		record := []string{
			f.Timestamp.Format(time.RFC3339),
			f.SrcAddr,
			f.DstAddr,
			strconv.Itoa(f.DstPort),
			f.Protocol,
			fmt.Sprintf("%.4f", f.Duration),
			strconv.FormatInt(f.BytesIn, 10),
			strconv.FormatInt(f.BytesOut, 10),
			strconv.FormatInt(f.PktsIn, 10),
			strconv.FormatInt(f.PktsOut, 10),
			strconv.Itoa(f.SynCount),
			strconv.Itoa(f.AckCount),
			strconv.Itoa(f.FinCount),
			strconv.Itoa(f.RstCount),
			strconv.Itoa(f.Label),
		}
		if err := writer.Write(record); err != nil {
			log.Fatalf("Failed to write record: %v", err)
		}
	}
	fmt.Printf("Wrote %d flows to %s\n", len(flows), csvPath)
}
