// Package main is quizctl, an offline tool for inspecting saved quiz snapshots.
//
// Usage:
//
//	quizctl catalog
//	quizctl validate snapshot.json --step 3
//	quizctl recommend a.json b.json --output json
//	quizctl quote-link snapshot.json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
