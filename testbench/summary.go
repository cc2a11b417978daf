package testbench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cputester/cache"
)

// Summary is the outcome of a run.
type Summary struct {
	RunID       string           `json:"runId"`
	Total       int              `json:"total"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	BySource    map[Source]int   `json:"bySource"`
	FailureTags []string         `json:"failureTags"`
	Cache       cache.Statistics `json:"cache"`
	ElapsedMS   int64            `json:"elapsedMs"`
	Interrupted bool             `json:"interrupted"`
}

func newSummary(runID string, total int) *Summary {
	return &Summary{
		RunID:       runID,
		Total:       total,
		BySource:    make(map[Source]int),
		FailureTags: []string{},
	}
}

// Processed returns the number of results received.
func (s *Summary) Processed() int {
	return s.Passed + s.Failed
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s)
}

// Save writes the summary as JSON to path.
func (s *Summary) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := s.WriteJSON(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}

	return file.Close()
}
