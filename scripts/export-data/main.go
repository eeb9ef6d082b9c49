// Exports captured flows from the flow store as JSONL for offline
// evaluation, optionally filtered to labeled flows only.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
)

func main() {
	var (
		dataPath    = flag.String("data", "data", "Flow store directory")
		outputPath  = flag.String("output", "flows.jsonl", "Output JSONL file")
		labeledOnly = flag.Bool("labeled-only", true, "Export only flows with ground truth")
		limit       = flag.Int("limit", 0, "Stop after this many flows (0 = all)")
	)
	flag.Parse()

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	file, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	exported := 0
	skipped := 0

	err = store.IterateFlows(func(flow features.FlowRecord) bool {
		if *labeledOnly && !flow.Labeled() {
			skipped++
			return true
		}
		if err := encoder.Encode(flow); err != nil {
			log.Fatalf("Failed to encode flow: %v", err)
		}
		exported++
		return *limit == 0 || exported < *limit
	})
	if err != nil {
		log.Fatalf("Failed to iterate flows: %v", err)
	}

	fmt.Printf("Exported %d flows to %s (%d skipped)\n", exported, *outputPath, skipped)
}
