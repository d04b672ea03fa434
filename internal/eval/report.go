package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// caseEntry is the per-case element of the results JSON
type caseEntry struct {
	Claim    string `json:"claim"`
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	GTReason string `json:"gt_reason,omitempty"`
	GT       string `json:"gt_decision"`
}

// WriteResults renders the evaluation output into outputDir: a JSON
// array whose first element is the summary followed by one entry per
// case, plus the confusion-matrix image
func WriteResults(outputDir string, summary Summary, records []Record) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	payload := make([]any, 0, len(records)+1)
	payload = append(payload, summary)
	for _, record := range records {
		entry := caseEntry{
			Claim:    fmt.Sprintf("claim %d", record.ClaimNum),
			Decision: string(record.PredictedDecision),
			Reason:   record.PredictedExplanation,
			GT:       string(record.ExpectedDecision),
			GTReason: record.ExpectedExplanation,
		}
		if record.Failed() {
			entry.Decision = "ERROR"
			entry.Reason = record.Error
		}
		payload = append(payload, entry)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	resultsPath := filepath.Join(outputDir, "eval_results.json")
	if err := os.WriteFile(resultsPath, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	matrixPath := filepath.Join(outputDir, "confusion_matrix.png")
	if err := BuildMatrix(records).RenderPNG(matrixPath); err != nil {
		return err
	}
	return nil
}
