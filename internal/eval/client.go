package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

// SubmissionResult is what the claim-processing service returns
type SubmissionResult struct {
	ClaimID     string         `json:"claim_id"`
	Decision    model.Decision `json:"decision"`
	Explanation string         `json:"explanation"`
}

// Client submits dataset cases through the external claim contract
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a submission client for the given API base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts one case as a multipart claim submission
func (c *Client) Submit(ctx context.Context, testCase *Case) (*SubmissionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("claim_message", "description.txt")
	if err != nil {
		return nil, fmt.Errorf("build claim_message part: %w", err)
	}
	if _, err := part.Write([]byte(testCase.ClaimText)); err != nil {
		return nil, fmt.Errorf("write claim_message: %w", err)
	}

	part, err = writer.CreateFormFile("claim_metadata", "metadata.md")
	if err != nil {
		return nil, fmt.Errorf("build claim_metadata part: %w", err)
	}
	if _, err := part.Write([]byte(testCase.MetadataText)); err != nil {
		return nil, fmt.Errorf("write claim_metadata: %w", err)
	}

	if testCase.Image != nil {
		part, err = writer.CreateFormFile("claim_image", testCase.ImageName)
		if err != nil {
			return nil, fmt.Errorf("build claim_image part: %w", err)
		}
		if _, err := part.Write(testCase.Image); err != nil {
			return nil, fmt.Errorf("write claim_image: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/claims", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("submission rejected with status %d: %s", resp.StatusCode, payload)
	}

	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode submission response: %w", err)
	}
	if !result.Decision.IsValid() {
		return nil, fmt.Errorf("service returned invalid decision %q", result.Decision)
	}
	return &result, nil
}
