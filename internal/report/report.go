package report

import (
	"encoding/json"
	"os"

	"example.com/plclog/internal/convert"
)

// Batch is the JSON document written for a multi-file run.
type Batch struct {
	Files     []convert.Summary `json:"files"`
	Converted int               `json:"converted"`
	Failed    int               `json:"failed"`
}

// NewBatch tallies summaries.
func NewBatch(sums []convert.Summary) Batch {
	b := Batch{Files: sums}
	for _, s := range sums {
		if s.OK() {
			b.Converted++
		} else {
			b.Failed++
		}
	}
	return b
}

func SaveSummaryJSON(sum convert.Summary, out string) error {
	return saveJSON(sum, out)
}

func LoadSummaryJSON(path string) (convert.Summary, error) {
	var sum convert.Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}

func SaveBatchJSON(b Batch, out string) error {
	return saveJSON(b, out)
}

func saveJSON(v interface{}, out string) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}
