package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ppiankov/claimgate/internal/agent"
	"github.com/ppiankov/claimgate/internal/eval"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/security"
	"github.com/ppiankov/claimgate/internal/storage"
	"github.com/ppiankov/claimgate/internal/vision"
	"github.com/spf13/cobra"
)

var (
	processPolicy string
	processJSON   bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <claim-dir>",
	Short: "Adjudicate a single claim directory locally",
	Long: `Process adjudicates one claim without running the HTTP service.

The claim directory holds a description.txt, optional metadata
documents (*.md), and an optional supporting image. The policy
document is supplied with --policy. The same injection screening,
tool-calling loop, and output sanitization apply as in the service.

Requires OPENAI_API_KEY in the environment.

Example:
  claimgate process ./claims/claim-042 --policy policy.md
  claimgate process ./claims/claim-042 --policy policy.md --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processPolicy, "policy", "", "policy document path (required)")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the decision as JSON")
	_ = processCmd.MarkFlagRequired("policy")
}

func runProcess(cmd *cobra.Command, args []string) error {
	claimDir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Agent.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	policy, err := os.ReadFile(processPolicy)
	if err != nil {
		return fmt.Errorf("read policy: %w", err)
	}

	submission, err := eval.LoadSubmission(claimDir)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store := storage.NewMemoryStore()
	store.SetPolicy(policy)

	reasoner, err := agent.NewOpenAIReasoner(cfg.Agent)
	if err != nil {
		return err
	}

	analyzer := vision.NewAnalyzer(cfg.Agent.APIKey, cfg.Agent.BaseURL, cfg.Vision)
	orchestrator := agent.NewOrchestrator(
		reasoner,
		agent.NewToolbox(store, analyzer),
		security.NewInjectionFilter(),
		security.NewOutputValidator(),
		cfg.Agent.MaxSteps,
		logger,
	)

	claim := model.ClaimContext{
		ClaimID:      uuid.NewString(),
		ClaimText:    submission.ClaimText,
		MetadataText: submission.MetadataText,
		Image:        submission.Image,
	}

	response, state := orchestrator.Run(context.Background(), claim)

	if verbose {
		fmt.Fprintf(os.Stderr, "Steps taken: %d\n", state.StepCount)
		for _, call := range state.History {
			fmt.Fprintf(os.Stderr, "  tool: %s\n", call.Name)
		}
	}

	if processJSON {
		return json.NewEncoder(os.Stdout).Encode(response)
	}

	fmt.Printf("Decision:    %s\n", response.Decision)
	fmt.Printf("Explanation: %s\n", response.Explanation)
	return nil
}
