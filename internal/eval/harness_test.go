package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

// writeCase lays out one dataset case directory
func writeCase(t *testing.T, datasetDir string, num int, description, answer string, extra map[string][]byte) {
	t.Helper()
	dir := filepath.Join(datasetDir, fmt.Sprintf("claim %d", num))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir case %d: %v", num, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "description.txt"), []byte(description), 0644); err != nil {
		t.Fatalf("write description %d: %v", num, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "answer.json"), []byte(answer), 0644); err != nil {
		t.Fatalf("write answer %d: %v", num, err)
	}
	for name, content := range extra {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			t.Fatalf("write %s for case %d: %v", name, num, err)
		}
	}
}

// decisionByText is a fake claim service that decides based on a
// keyword in the submitted claim text
func decisionByText(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("claim_message")
		if err != nil {
			http.Error(w, "missing claim_message", http.StatusBadRequest)
			return
		}
		buf := make([]byte, 512)
		n, _ := file.Read(buf)
		_ = file.Close()
		text := string(buf[:n])

		decision := "UNCERTAIN"
		switch {
		case strings.Contains(text, "approve-me"):
			decision = "APPROVE"
		case strings.Contains(text, "deny-me"):
			decision = "DENY"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"claim_id":    "test-claim",
			"decision":    decision,
			"explanation": "because the text said so",
		})
	}))
}

func newTestHarness(baseURL string) *Harness {
	client := NewClient(baseURL, 10*time.Second)
	return NewHarness(client, nil, nil, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHarness_Evaluate_ScoresAndSorts(t *testing.T) {
	service := decisionByText(t)
	defer service.Close()

	dataset := t.TempDir()
	writeCase(t, dataset, 2, "please deny-me", `{"decision": "DENY"}`, nil)
	writeCase(t, dataset, 1, "please approve-me", `{"decision": "APPROVE"}`, nil)
	writeCase(t, dataset, 3, "please approve-me", `{"decision": "DENY"}`, nil)

	records, summary, err := newTestHarness(service.URL).Evaluate(context.Background(), dataset)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []int{1, 2, 3} {
		if records[i].ClaimNum != want {
			t.Errorf("records[%d].ClaimNum = %d, want %d (sorted by case number)", i, records[i].ClaimNum, want)
		}
	}
	if !records[0].Correct || !records[1].Correct || records[2].Correct {
		t.Errorf("correctness flags wrong: %+v", records)
	}
	if summary.TotalClaims != 3 || summary.CorrectPredictions != 2 {
		t.Errorf("summary = %+v, want 2/3 correct", summary)
	}
	if summary.Accuracy < 66.6 || summary.Accuracy > 66.7 {
		t.Errorf("accuracy = %f, want 2/3 as percent", summary.Accuracy)
	}
}

func TestHarness_Evaluate_AcceptableDecision(t *testing.T) {
	service := decisionByText(t)
	defer service.Close()

	dataset := t.TempDir()
	// Service returns UNCERTAIN; expected DENY but UNCERTAIN is acceptable
	writeCase(t, dataset, 1, "no keyword here",
		`{"decision": "DENY", "acceptable_decision": "UNCERTAIN"}`, nil)

	records, summary, err := newTestHarness(service.URL).Evaluate(context.Background(), dataset)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !records[0].Correct {
		t.Error("prediction matching acceptable_decision should count as correct")
	}
	if summary.CorrectPredictions != 1 {
		t.Errorf("correct = %d, want 1", summary.CorrectPredictions)
	}
}

func TestHarness_Evaluate_MalformedCaseIsolated(t *testing.T) {
	service := decisionByText(t)
	defer service.Close()

	dataset := t.TempDir()
	writeCase(t, dataset, 1, "please approve-me", `{"decision": "APPROVE"}`, nil)
	writeCase(t, dataset, 2, "please approve-me", `{not json`, nil)
	writeCase(t, dataset, 3, "please deny-me", `{"decision": "DENY"}`, nil)

	records, summary, err := newTestHarness(service.URL).Evaluate(context.Background(), dataset)
	if err != nil {
		t.Fatalf("Evaluate must not fail the batch: %v", err)
	}

	if summary.TotalClaims != 3 {
		t.Errorf("total = %d, want 3: the failed case stays in the denominator", summary.TotalClaims)
	}
	if summary.CorrectPredictions != 2 {
		t.Errorf("correct = %d, want 2", summary.CorrectPredictions)
	}
	if !records[1].Failed() || records[1].Correct {
		t.Errorf("case 2 should be a recorded failure: %+v", records[1])
	}
}

func TestSummarize_FailedCasesExcludedFromAverages(t *testing.T) {
	score := 0.8
	records := []Record{
		{ClaimNum: 1, Correct: true, ExecutionTime: 2 * time.Second, ExplanationScore: &score},
		{ClaimNum: 2, Correct: false, ExecutionTime: 4 * time.Second},
		{ClaimNum: 3, Error: "boom"},
	}

	summary := Summarize(records)

	if summary.TotalClaims != 3 || summary.CorrectPredictions != 1 {
		t.Errorf("summary counts wrong: %+v", summary)
	}
	if summary.AverageExecutionTimeSeconds != 3.0 {
		t.Errorf("avg time = %f, want 3.0 (failed case excluded)", summary.AverageExecutionTimeSeconds)
	}
	if summary.ExplanationScoresEvaluated != 1 {
		t.Errorf("scores evaluated = %d, want 1", summary.ExplanationScoresEvaluated)
	}
	if summary.AverageExplanationScore == nil || *summary.AverageExplanationScore != 0.8 {
		t.Errorf("avg score = %v, want 0.8 (null scores excluded from denominator)", summary.AverageExplanationScore)
	}
}

func TestBuildMatrix_Counts(t *testing.T) {
	records := []Record{
		{ExpectedDecision: model.DecisionApprove, PredictedDecision: model.DecisionApprove},
		{ExpectedDecision: model.DecisionApprove, PredictedDecision: model.DecisionApprove},
		{ExpectedDecision: model.DecisionDeny, PredictedDecision: model.DecisionUncertain},
		{Error: "failed case, not counted"},
	}

	matrix := BuildMatrix(records)

	if got := matrix.Count(model.DecisionApprove, model.DecisionApprove); got != 2 {
		t.Errorf("[APPROVE][APPROVE] = %d, want 2", got)
	}
	if got := matrix.Count(model.DecisionDeny, model.DecisionUncertain); got != 1 {
		t.Errorf("[DENY][UNCERTAIN] = %d, want 1", got)
	}
	if matrix.Total() != 3 {
		t.Errorf("total = %d, want 3", matrix.Total())
	}
	if matrix.Correct() != 2 {
		t.Errorf("correct = %d, want 2", matrix.Correct())
	}
}
