package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/worker"
)

// Record is the outcome of one dataset case
type Record struct {
	ClaimNum             int
	PredictedDecision    model.Decision
	PredictedExplanation string
	ExpectedDecision     model.Decision
	ExpectedExplanation  string
	AcceptableDecision   model.Decision
	Correct              bool
	ExecutionTime        time.Duration
	ExplanationScore     *float64
	Error                string
}

// Failed reports whether the case errored before producing a prediction
func (r Record) Failed() bool { return r.Error != "" }

// Summary aggregates a full evaluation batch
type Summary struct {
	Accuracy                    float64  `json:"accuracy"`
	CorrectPredictions          int      `json:"correct_predictions"`
	TotalClaims                 int      `json:"total_claims"`
	AverageExecutionTimeSeconds float64  `json:"average_execution_time_seconds"`
	AverageExplanationScore     *float64 `json:"average_explanation_score"`
	ExplanationScoresEvaluated  int      `json:"explanation_scores_evaluated"`
}

// Harness replays the dataset against the claim submission contract.
// Every case runs as an independent task: one case's failure is
// recorded, counted against accuracy, and never aborts the batch.
type Harness struct {
	client      *Client
	judge       Judge // nil disables explanation scoring
	limiter     *worker.Limiter
	concurrency int
	logger      *slog.Logger
}

// NewHarness creates an evaluation harness
func NewHarness(client *Client, judge Judge, limiter *worker.Limiter, concurrency int, logger *slog.Logger) *Harness {
	if concurrency <= 0 {
		concurrency = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		client:      client,
		judge:       judge,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      logger,
	}
}

// caseOutcome adapts a Record to the pool's outcome type
type caseOutcome struct {
	record Record
}

func (o *caseOutcome) Err() error {
	if o.record.Failed() {
		return fmt.Errorf("claim %d: %s", o.record.ClaimNum, o.record.Error)
	}
	return nil
}

// caseTask runs one dataset case end to end
type caseTask struct {
	ref     CaseRef
	harness *Harness
}

func (t *caseTask) Run(ctx context.Context) worker.Outcome {
	return &caseOutcome{record: t.harness.runCase(ctx, t.ref)}
}

// Evaluate runs every discovered case concurrently and folds the
// results into per-case records (sorted by case number) and a summary
func (h *Harness) Evaluate(ctx context.Context, datasetDir string) ([]Record, Summary, error) {
	refs, err := DiscoverCases(datasetDir)
	if err != nil {
		return nil, Summary{}, err
	}
	if len(refs) == 0 {
		return nil, Summary{}, fmt.Errorf("no claim directories found under %s", datasetDir)
	}

	h.logger.Info("starting evaluation", "cases", len(refs), "concurrency", h.concurrency)

	pool := worker.NewPool(h.concurrency)
	pool.Start()
	for _, ref := range refs {
		pool.Submit(&caseTask{ref: ref, harness: h})
	}
	outcomes := pool.Wait()

	records := make([]Record, 0, len(outcomes))
	for _, outcome := range outcomes {
		records = append(records, outcome.(*caseOutcome).record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ClaimNum < records[j].ClaimNum })

	return records, Summarize(records), nil
}

func (h *Harness) runCase(ctx context.Context, ref CaseRef) Record {
	record := Record{ClaimNum: ref.Num}

	testCase, err := LoadCase(ref)
	if err != nil {
		record.Error = err.Error()
		h.logger.Error("case load failed", "claim", ref.Num, "error", err)
		return record
	}

	expectedDecision, err := model.ParseDecision(testCase.Expected.Decision)
	if err != nil {
		record.Error = fmt.Sprintf("answer file: %v", err)
		h.logger.Error("case answer invalid", "claim", ref.Num, "error", err)
		return record
	}
	record.ExpectedDecision = expectedDecision
	record.ExpectedExplanation = testCase.Expected.Explanation
	if testCase.Expected.AcceptableDecision != "" {
		if acceptable, err := model.ParseDecision(testCase.Expected.AcceptableDecision); err == nil {
			record.AcceptableDecision = acceptable
		}
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			record.Error = fmt.Sprintf("rate limit wait: %v", err)
			return record
		}
	}

	started := time.Now()
	result, err := h.client.Submit(ctx, testCase)
	record.ExecutionTime = time.Since(started)
	if err != nil {
		record.Error = err.Error()
		h.logger.Error("case submission failed", "claim", ref.Num, "error", err)
		return record
	}

	record.PredictedDecision = result.Decision
	record.PredictedExplanation = result.Explanation
	record.Correct = record.PredictedDecision == record.ExpectedDecision ||
		(record.AcceptableDecision != "" && record.PredictedDecision == record.AcceptableDecision)

	if record.Correct {
		h.logger.Info("case correct", "claim", ref.Num, "decision", record.PredictedDecision)
	} else {
		h.logger.Info("case wrong", "claim", ref.Num,
			"predicted", record.PredictedDecision, "expected", record.ExpectedDecision)
	}

	// Explanation quality is judged only when a reference exists; a
	// judge failure leaves the score null rather than zero
	if h.judge != nil && record.ExpectedExplanation != "" {
		judgment, err := h.judge.Score(ctx, record.PredictedExplanation, record.ExpectedExplanation)
		if err != nil {
			h.logger.Warn("explanation judging failed", "claim", ref.Num, "error", err)
		} else {
			score := judgment.Score
			record.ExplanationScore = &score
		}
	}

	return record
}

// Summarize folds records into the aggregate summary. Failed cases
// count toward the accuracy denominator but are excluded from the
// execution-time and explanation-score averages.
func Summarize(records []Record) Summary {
	summary := Summary{TotalClaims: len(records)}
	if len(records) == 0 {
		return summary
	}

	var totalTime time.Duration
	timed := 0
	var totalScore float64

	for _, record := range records {
		if record.Correct {
			summary.CorrectPredictions++
		}
		if !record.Failed() {
			totalTime += record.ExecutionTime
			timed++
		}
		if record.ExplanationScore != nil {
			totalScore += *record.ExplanationScore
			summary.ExplanationScoresEvaluated++
		}
	}

	summary.Accuracy = float64(summary.CorrectPredictions) / float64(summary.TotalClaims) * 100
	if timed > 0 {
		summary.AverageExecutionTimeSeconds = (totalTime / time.Duration(timed)).Seconds()
	}
	if summary.ExplanationScoresEvaluated > 0 {
		average := totalScore / float64(summary.ExplanationScoresEvaluated)
		summary.AverageExplanationScore = &average
	}
	return summary
}

// BuildMatrix folds records into the confusion matrix, skipping failed
// cases
func BuildMatrix(records []Record) *ConfusionMatrix {
	matrix := NewConfusionMatrix()
	for _, record := range records {
		if record.Failed() {
			continue
		}
		matrix.Add(record.ExpectedDecision, record.PredictedDecision)
	}
	return matrix
}
