// Package server exposes the claim submission contract over HTTP:
// multipart claim uploads in, structured decisions out.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/storage"
)

// ClaimRunner processes one claim to a decision
type ClaimRunner interface {
	Run(ctx context.Context, claim model.ClaimContext) (model.DecisionResponse, *model.RunState)
}

// DecisionPersister stores and reads completed decisions
type DecisionPersister interface {
	Save(ctx context.Context, claimID string, response model.DecisionResponse) error
	Get(ctx context.Context, claimID string) (*model.StoredDecision, error)
	List(ctx context.Context) ([]string, error)
}

// SubmissionResponse is the reply to a claim submission
type SubmissionResponse struct {
	ClaimID     string         `json:"claim_id"`
	Decision    model.Decision `json:"decision"`
	Explanation string         `json:"explanation,omitempty"`
}

// ClaimsListResponse is the reply to a claims listing
type ClaimsListResponse struct {
	Claims []string `json:"claims"`
}

// Server wires the claim pipeline behind the HTTP contract
type Server struct {
	runner    ClaimRunner
	store     storage.ObjectStore
	persister DecisionPersister // nil when persistence is not configured
	decisions *cache.DecisionCache
	maxUpload int64
	logger    *slog.Logger
}

// New creates a server. persister may be nil.
func New(runner ClaimRunner, store storage.ObjectStore, persister DecisionPersister, decisions *cache.DecisionCache, maxUpload int64, logger *slog.Logger) *Server {
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:    runner,
		store:     store,
		persister: persister,
		decisions: decisions,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/claims", s.handleSubmitClaim)
	r.Get("/claims", s.handleListClaims)
	r.Get("/claims/{claimID}", s.handleGetClaim)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Insurance claims processor API",
	})
}

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse multipart form: %v", err))
		return
	}

	claimText, err := readFormFile(r, "claim_message")
	if err != nil {
		writeError(w, http.StatusBadRequest, "claim_message file is required")
		return
	}

	metadataText, _ := readFormFile(r, "claim_metadata")
	image, imageName, _ := readFormImage(r)

	// Same submission content means same decision: serve resubmissions
	// from the cache instead of deciding twice
	key := cache.SubmissionKey(string(claimText), string(metadataText), image)
	if entry, found := s.decisions.Get(key); found {
		s.logger.Info("resubmission served from cache", "claim_id", entry.ClaimID)
		writeJSON(w, http.StatusOK, SubmissionResponse{
			ClaimID:     entry.ClaimID,
			Decision:    entry.Response.Decision,
			Explanation: entry.Response.Explanation,
		})
		return
	}

	claimID := uuid.NewString()
	ctx := r.Context()

	if err := s.storeSubmission(ctx, claimID, claimText, metadataText, image, imageName); err != nil {
		s.logger.Error("store submission failed", "claim_id", claimID, "error", err)
		writeError(w, http.StatusInternalServerError, "claim submission failed")
		return
	}

	response, state := s.runner.Run(ctx, model.ClaimContext{
		ClaimID:      claimID,
		ClaimText:    string(claimText),
		MetadataText: string(metadataText),
		Image:        image,
	})
	s.logger.Info("claim processed",
		"claim_id", claimID,
		"decision", response.Decision,
		"termination", state.Termination,
		"steps", state.StepCount)

	if s.persister != nil {
		if err := s.persister.Save(ctx, claimID, response); err != nil {
			// The decision is already made; persistence failure should
			// not turn a decided claim into a client error
			s.logger.Error("persist decision failed", "claim_id", claimID, "error", err)
		}
	}

	s.decisions.Set(key, cache.Entry{ClaimID: claimID, Response: response})

	writeJSON(w, http.StatusOK, SubmissionResponse{
		ClaimID:     claimID,
		Decision:    response.Decision,
		Explanation: response.Explanation,
	})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		writeError(w, http.StatusServiceUnavailable, "decision persistence is not configured")
		return
	}
	ids, err := s.persister.List(r.Context())
	if err != nil {
		s.logger.Error("list claims failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list claims failed")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ClaimsListResponse{Claims: ids})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		writeError(w, http.StatusServiceUnavailable, "decision persistence is not configured")
		return
	}
	claimID := chi.URLParam(r, "claimID")
	stored, err := s.persister.Get(r.Context(), claimID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	if err != nil {
		s.logger.Error("get claim failed", "claim_id", claimID, "error", err)
		writeError(w, http.StatusInternalServerError, "get claim failed")
		return
	}
	writeJSON(w, http.StatusOK, model.DecisionResponse{
		Decision:    stored.Decision,
		Explanation: stored.Reason,
	})
}

func (s *Server) storeSubmission(ctx context.Context, claimID string, claimText, metadataText, image []byte, imageName string) error {
	if err := s.store.Put(ctx, claimID, "description.txt", claimText, "text/plain"); err != nil {
		return err
	}
	if len(metadataText) > 0 {
		if err := s.store.Put(ctx, claimID, "metadata.md", metadataText, "text/markdown"); err != nil {
			return err
		}
	}
	if image != nil {
		objectName := storage.ImageObjectName(imageName)
		contentType := mime.TypeByExtension(filepath.Ext(objectName))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.store.Put(ctx, claimID, objectName, image, contentType); err != nil {
			return err
		}
	}
	return nil
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func readFormImage(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("claim_image")
	if err != nil {
		return nil, "", err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
