package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/leadscope/leadscope/pkg/manager"
)

func main() {
	// Usage: go run *.go -file leads.json -min 60

	fileFlag := flag.String("file", "", "JSON file with lead records")
	minFlag := flag.Float64("min", 60, "Minimum score to print")

	// Parse the command-line flags
	flag.Parse()

	if *fileFlag == "" {
		fmt.Println("A lead file is required. Please provide it using the -file flag.")
		return
	}

	data, err := os.ReadFile(*fileFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	// The default engine uses the 25/30/20/15/10 weights and a threshold of 60
	m := manager.New(manager.Config{})
	res, err := m.IngestJSON(context.Background(), data)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, f := range res.Failures {
		fmt.Printf("record %d skipped: %v\n", f.Index, f.Err)
	}

	for _, l := range m.Query(manager.Filter{MinScore: minFlag, SortByScore: true}) {
		fmt.Printf("%6.2f  %-12s %s\n", *l.Score, l.Category, l.Company)
	}
}
