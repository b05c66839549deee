package model

import "fmt"

// Claim is a checkable medical assertion extracted from the content
type Claim struct {
	ID        string `json:"id"`                  // Stable within one evaluation (c1, c2, ...)
	Text      string `json:"text"`                // The claim text itself
	Heuristic string `json:"heuristic,omitempty"` // Which extraction rule matched (e.g., "keyword:cures")
	Sentence  int    `json:"sentence,omitempty"`  // Sentence index in source (0-based)
}

// ClaimID returns the identifier for the i-th claim (0-based)
func ClaimID(i int) string {
	return fmt.Sprintf("c%d", i+1)
}
