// Prints a summary of what the flow store contains: record counts, label
// distribution, per-source flow counts, and the most recent training rounds.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
)

func main() {
	var (
		dataPath   = flag.String("data", "./data", "Flow store directory")
		topSources = flag.Int("top", 10, "Number of busiest sources to show")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	flowCount, err := store.CountFlows()
	if err != nil {
		log.Fatalf("Failed to count flows: %v", err)
	}
	verdictCount, err := store.CountVerdicts()
	if err != nil {
		log.Fatalf("Failed to count verdicts: %v", err)
	}

	fmt.Printf("Flows: %d\n", flowCount)
	fmt.Printf("Verdicts: %d\n\n", verdictCount)

	benign, malicious, unlabeled := 0, 0, 0
	bySource := make(map[string]int)
	err = store.IterateFlows(func(flow features.FlowRecord) bool {
		switch flow.Label {
		case 0:
			benign++
		case 1:
			malicious++
		default:
			unlabeled++
		}
		bySource[flow.SrcAddr]++
		return true
	})
	if err != nil {
		log.Fatalf("Failed to iterate flows: %v", err)
	}

	fmt.Println("Label distribution:")
	fmt.Printf("  benign:    %d\n", benign)
	fmt.Printf("  malicious: %d\n", malicious)
	fmt.Printf("  unlabeled: %d\n\n", unlabeled)

	type sourceCount struct {
		addr  string
		count int
	}
	sources := make([]sourceCount, 0, len(bySource))
	for addr, n := range bySource {
		sources = append(sources, sourceCount{addr, n})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].count > sources[j].count })

	fmt.Printf("Busiest sources (top %d of %d):\n", *topSources, len(sources))
	for i, s := range sources {
		if i >= *topSources {
			break
		}
		fmt.Printf("  %-20s %d flows\n", s.addr, s.count)
	}

	trainings, err := store.RecentTrainings(5)
	if err != nil {
		log.Fatalf("Failed to read training history: %v", err)
	}
	if len(trainings) > 0 {
		fmt.Println("\nRecent training rounds:")
		for _, tr := range trainings {
			fmt.Printf("  round %d  %s  window=%d members=%d strategy=%s\n",
				tr.Round, tr.Timestamp.Format("2006-01-02 15:04:05"),
				tr.WindowSize, tr.Members, tr.Strategy)
		}
	}
}
