package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/storage"
)

// Tool names the orchestrator can dispatch
const (
	ToolGetPolicy         = "get_policy"
	ToolGetMetadata       = "get_metadata"
	ToolGetInfoFromImage  = "get_info_from_image"
	ToolCheckImageForgery = "check_image_forgery"
	ToolPresentDecision   = "present_decision"
)

// noImageSentinel is returned when a claim has no supporting document
const noImageSentinel = "No image document has been provided by the user for this claim."

// ImageQuerier answers questions about a claim document image
type ImageQuerier interface {
	QueryImage(ctx context.Context, image []byte, query string) (string, error)
	AssessForgery(ctx context.Context, image []byte, question string) (string, error)
}

// Toolbox holds the typed capability tools available to the reasoning
// loop. Tools never call each other; each wraps exactly one external
// collaborator and normalizes failures to descriptive strings so the
// loop can reason about them as ordinary output.
type Toolbox struct {
	store  storage.ObjectStore
	vision ImageQuerier
}

// NewToolbox wires the capability tools to their collaborators
func NewToolbox(store storage.ObjectStore, vision ImageQuerier) *Toolbox {
	return &Toolbox{store: store, vision: vision}
}

// Specs describes the five tools in the shape the reasoner expects
func (t *Toolbox) Specs() []ToolSpec {
	claimIDProp := map[string]any{
		"type":        "string",
		"description": "The unique identifier for the claim",
	}
	return []ToolSpec{
		{
			Name:        ToolGetPolicy,
			Description: "Retrieve the CFSR insurance policy document to reference during claim analysis. Call this early to understand policy coverage rules.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolGetMetadata,
			Description: "Retrieve claim metadata (booking details, dates, amounts) from storage.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"claim_id": claimIDProp},
				"required":   []string{"claim_id"},
			},
		},
		{
			Name:        ToolGetInfoFromImage,
			Description: "Extract textual information from the claim's supporting document using a vision model. Can be called multiple times with different questions (document type, patient name, dates, diagnosis, signatures, stamps).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim_id": claimIDProp,
					"query": map[string]any{
						"type":        "string",
						"description": "The detailed question to ask about the document",
					},
				},
				"required": []string{"claim_id", "query"},
			},
		},
		{
			Name:        ToolCheckImageForgery,
			Description: "Assess whether the claim's supporting document shows signs of forgery or tampering. Embed the claim context in the question. Returns a verdict of DEFINITIVE FRAUD, SUSPICIOUS, or LEGITIMATE plus observations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim_id": claimIDProp,
					"question": map[string]any{
						"type":        "string",
						"description": "The forgery question, including relevant claim context",
					},
				},
				"required": []string{"claim_id", "question"},
			},
		},
		{
			Name:        ToolPresentDecision,
			Description: "THIS MUST BE THE LAST STEP - call this to complete the workflow with the final decision on the claim.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"decision": map[string]any{
						"type":        "string",
						"enum":        []string{"APPROVE", "DENY", "UNCERTAIN"},
						"description": "The final decision on the claim",
					},
					"explanation": map[string]any{
						"type":        "string",
						"description": "A brief explanation of the decision (max 2-3 sentences)",
					},
				},
				"required": []string{"decision", "explanation"},
			},
		},
	}
}

// decisionArgs are the present_decision arguments
type decisionArgs struct {
	Decision    string `json:"decision"`
	Explanation string `json:"explanation"`
}

// metadataArgs are the get_metadata arguments
type metadataArgs struct {
	ClaimID string `json:"claim_id"`
}

// imageArgs are the get_info_from_image / check_image_forgery arguments
type imageArgs struct {
	ClaimID  string `json:"claim_id"`
	Query    string `json:"query"`
	Question string `json:"question"`
}

// Terminal parses a present_decision call. A decision outside the enum
// fails validation: the error is surfaced so the loop can report it back
// to the model rather than coercing the value.
func (t *Toolbox) Terminal(call ToolCall) (*model.DecisionResponse, error) {
	var args decisionArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid present_decision arguments: %w", err)
	}
	decision, err := model.ParseDecision(args.Decision)
	if err != nil {
		return nil, err
	}
	return &model.DecisionResponse{Decision: decision, Explanation: args.Explanation}, nil
}

// Dispatch invokes a non-terminal tool and returns its output text.
// Failures come back as descriptive strings, never as errors.
func (t *Toolbox) Dispatch(ctx context.Context, claim model.ClaimContext, call ToolCall) string {
	switch call.Name {
	case ToolGetPolicy:
		return t.getPolicy(ctx)
	case ToolGetMetadata:
		return t.getMetadata(ctx, claim, call.Arguments)
	case ToolGetInfoFromImage:
		return t.imageQuery(ctx, claim, call.Arguments, false)
	case ToolCheckImageForgery:
		return t.imageQuery(ctx, claim, call.Arguments, true)
	default:
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}
}

func (t *Toolbox) getPolicy(ctx context.Context) string {
	policy, err := t.store.GetPolicy(ctx)
	if err != nil {
		return fmt.Sprintf("Error retrieving policy: %v", err)
	}
	return string(policy)
}

func (t *Toolbox) getMetadata(ctx context.Context, claim model.ClaimContext, rawArgs string) string {
	var args metadataArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || args.ClaimID == "" {
		args.ClaimID = claim.ClaimID
	}

	metadata, err := t.store.Get(ctx, args.ClaimID, "metadata.md")
	if err != nil {
		if claim.MetadataText != "" {
			return claim.MetadataText
		}
		return fmt.Sprintf("Error retrieving metadata for claim %s: %v", args.ClaimID, err)
	}
	return string(metadata)
}

func (t *Toolbox) imageQuery(ctx context.Context, claim model.ClaimContext, rawArgs string, forgery bool) string {
	var args imageArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fmt.Sprintf("Invalid image tool arguments: %v", err)
	}
	if args.ClaimID == "" {
		args.ClaimID = claim.ClaimID
	}

	image := claim.Image
	if image == nil {
		found, _, err := storage.FindImage(ctx, t.store, args.ClaimID)
		if err != nil {
			return fmt.Sprintf("Error retrieving image for claim %s: %v", args.ClaimID, err)
		}
		image = found
	}
	if image == nil {
		return noImageSentinel
	}

	var answer string
	var err error
	if forgery {
		answer, err = t.vision.AssessForgery(ctx, image, args.Question)
	} else {
		answer, err = t.vision.QueryImage(ctx, image, args.Query)
	}
	if err != nil {
		return fmt.Sprintf("Error retrieving/analyzing image for claim %s: %v", args.ClaimID, err)
	}
	return answer
}
