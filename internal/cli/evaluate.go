package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/claimgate/internal/eval"
	"github.com/ppiankov/claimgate/internal/worker"
	"github.com/spf13/cobra"
)

var (
	evalOutputDir   string
	evalAPIURL      string
	evalConcurrency int
	evalTimeout     time.Duration
	evalJudge       bool
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <dataset-dir>",
	Short: "Replay a labeled dataset against a running instance",
	Long: `Evaluate submits every case from a labeled dataset to a running
claimgate service and scores the outcomes:
- Cases live in 'claim N' directories with a description, optional
  metadata and image, and an answer.json with the expected decision
- Cases run concurrently through a bounded worker pool
- Results land in eval_results.json plus a confusion matrix PNG
- With --judge, an LLM grades each explanation against the reference

Example:
  claimgate evaluate ./dataset
  claimgate evaluate ./dataset -o ./results -u http://localhost:8000
  claimgate evaluate ./dataset --judge --concurrency 10`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evalOutputDir, "output-dir", "o", "./eval-results", "output directory for results")
	evaluateCmd.Flags().StringVarP(&evalAPIURL, "api-url", "u", "http://localhost:8000", "base URL of the running service")
	evaluateCmd.Flags().IntVar(&evalConcurrency, "concurrency", 0, "number of concurrent workers (overrides config)")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "claim-timeout", 0, "timeout per claim submission (overrides config)")
	evaluateCmd.Flags().BoolVar(&evalJudge, "judge", false, "grade explanations with an LLM judge")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	datasetDir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evalConcurrency > 0 {
		cfg.Eval.Concurrency = evalConcurrency
	}
	if evalTimeout > 0 {
		cfg.Eval.ClaimTimeout = evalTimeout
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var judge eval.Judge
	if evalJudge || cfg.Eval.JudgeEnabled {
		llmJudge, err := eval.NewLLMJudge(os.Getenv("OPENAI_API_KEY"), cfg.Agent.BaseURL, cfg.Eval.JudgeModel)
		if err != nil {
			return fmt.Errorf("configure judge: %w", err)
		}
		judge = llmJudge
	}

	client := eval.NewClient(evalAPIURL, cfg.Eval.ClaimTimeout)
	limiter := worker.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	harness := eval.NewHarness(client, judge, limiter, cfg.Eval.Concurrency, logger)

	fmt.Fprintf(os.Stderr, "Evaluating dataset: %s\n", datasetDir)
	fmt.Fprintf(os.Stderr, "Service:            %s\n", evalAPIURL)
	fmt.Fprintf(os.Stderr, "Workers:            %d\n", cfg.Eval.Concurrency)
	fmt.Fprintln(os.Stderr)

	records, summary, err := harness.Evaluate(context.Background(), datasetDir)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if err := os.MkdirAll(evalOutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := eval.WriteResults(evalOutputDir, summary, records); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	for _, record := range records {
		if record.Failed() {
			fmt.Fprintf(os.Stderr, "✗ claim %d: %s\n", record.ClaimNum, record.Error)
			continue
		}
		mark := "✗"
		if record.Correct {
			mark = "✓"
		}
		fmt.Fprintf(os.Stderr, "%s claim %d: %s (expected %s, %.1fs)\n",
			mark, record.ClaimNum, record.PredictedDecision, record.ExpectedDecision,
			record.ExecutionTime.Seconds())
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Accuracy: %.1f%% (%d/%d)\n", summary.Accuracy, summary.CorrectPredictions, summary.TotalClaims)
	if summary.AverageExplanationScore != nil {
		fmt.Fprintf(os.Stderr, "Explanation score: %.2f (over %d cases)\n",
			*summary.AverageExplanationScore, summary.ExplanationScoresEvaluated)
	}
	fmt.Fprintf(os.Stderr, "Results: %s\n", filepath.Join(evalOutputDir, "eval_results.json"))
	fmt.Fprintf(os.Stderr, "Matrix:  %s\n", filepath.Join(evalOutputDir, "confusion_matrix.png"))

	return nil
}
