package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/storage"
)

// stubRunner returns a fixed decision and counts invocations
type stubRunner struct {
	response model.DecisionResponse
	runs     int32
}

func (r *stubRunner) Run(_ context.Context, claim model.ClaimContext) (model.DecisionResponse, *model.RunState) {
	atomic.AddInt32(&r.runs, 1)
	return r.response, &model.RunState{
		Context:     claim,
		Terminated:  true,
		Termination: model.TerminatedByTool,
	}
}

func newTestServer(runner ClaimRunner) (*Server, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	srv := New(runner, store, nil, cache.NewDecisionCache(time.Hour), 0,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv, store
}

func multipartBody(t *testing.T, claimText, metadataText string, image []byte, imageName string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("claim_message", "description.txt")
	if err != nil {
		t.Fatalf("create claim_message part: %v", err)
	}
	_, _ = part.Write([]byte(claimText))

	if metadataText != "" {
		part, err = writer.CreateFormFile("claim_metadata", "metadata.md")
		if err != nil {
			t.Fatalf("create claim_metadata part: %v", err)
		}
		_, _ = part.Write([]byte(metadataText))
	}

	if image != nil {
		part, err = writer.CreateFormFile("claim_image", imageName)
		if err != nil {
			t.Fatalf("create claim_image part: %v", err)
		}
		_, _ = part.Write(image)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func TestSubmitClaim_StoresAndDecides(t *testing.T) {
	runner := &stubRunner{response: model.DecisionResponse{
		Decision:    model.DecisionApprove,
		Explanation: "covered",
	}}
	srv, store := newTestServer(runner)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, contentType := multipartBody(t, "trip cancelled", "booking: X1", []byte("img"), "photo.png")
	resp, err := http.Post(ts.URL+"/claims", contentType, body)
	if err != nil {
		t.Fatalf("post claim: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var submission SubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if submission.Decision != model.DecisionApprove {
		t.Errorf("decision = %s, want APPROVE", submission.Decision)
	}
	if submission.ClaimID == "" {
		t.Error("claim_id missing from response")
	}

	// Uploads must land in the object store under the claim id
	names, err := store.List(context.Background(), submission.ClaimID)
	if err != nil {
		t.Fatalf("list objects: %v", err)
	}
	want := map[string]bool{"description.txt": true, "metadata.md": true, "image.png": true}
	if len(names) != len(want) {
		t.Fatalf("stored objects = %v, want %v", names, want)
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected stored object %q", name)
		}
	}
}

func TestSubmitClaim_MissingMessageRejected(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.Close()

	resp, err := http.Post(ts.URL+"/claims", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("post claim: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitClaim_ResubmissionIsIdempotent(t *testing.T) {
	runner := &stubRunner{response: model.DecisionResponse{Decision: model.DecisionDeny}}
	srv, _ := newTestServer(runner)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var claimIDs []string
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t, "same claim", "same metadata", nil, "")
		resp, err := http.Post(ts.URL+"/claims", contentType, body)
		if err != nil {
			t.Fatalf("post claim %d: %v", i, err)
		}
		var submission SubmissionResponse
		if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
			t.Fatalf("decode response %d: %v", i, err)
		}
		_ = resp.Body.Close()
		claimIDs = append(claimIDs, submission.ClaimID)
	}

	if got := atomic.LoadInt32(&runner.runs); got != 1 {
		t.Errorf("pipeline ran %d times for identical submissions, want 1", got)
	}
	if claimIDs[0] != claimIDs[1] {
		t.Errorf("resubmission produced a new claim id: %s vs %s", claimIDs[0], claimIDs[1])
	}
}

func TestGetClaims_WithoutPersistence(t *testing.T) {
	srv, _ := newTestServer(&stubRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/claims")
	if err != nil {
		t.Fatalf("get claims: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when persistence is not configured", resp.StatusCode)
	}
}
