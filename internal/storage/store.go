// Package storage holds the external collaborators the claim pipeline
// reads from and writes to: the claim object store and the decision
// database. The core treats both as stateless services.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound signals a missing object
var ErrNotFound = errors.New("object not found")

// imageExtensions is the fixed probe order for locating a claim image
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp", ".tiff"}

// ObjectStore is the claim document store, addressed by claim id plus a
// relative path convention (<claim_id>/description.txt and so on)
type ObjectStore interface {
	Put(ctx context.Context, claimID, name string, data []byte, contentType string) error
	Get(ctx context.Context, claimID, name string) ([]byte, error)
	List(ctx context.Context, claimID string) ([]string, error)

	// GetPolicy returns the full policy document shared by all claims
	GetPolicy(ctx context.Context) ([]byte, error)
}

// FindImage probes the store for a claim image in the fixed extension
// priority order. A nil byte slice with nil error means no image exists.
func FindImage(ctx context.Context, store ObjectStore, claimID string) ([]byte, string, error) {
	for _, ext := range imageExtensions {
		name := "image" + ext
		data, err := store.Get(ctx, claimID, name)
		if err == nil {
			return data, name, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", fmt.Errorf("probe %s: %w", name, err)
		}
	}
	return nil, "", nil
}

// ImageObjectName normalizes an uploaded filename onto the store's
// image naming convention, preserving the extension
func ImageObjectName(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return "image" + ext
		}
	}
	return "image.webp"
}

// MemoryStore is an in-process ObjectStore used by tests and local runs
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	policy  []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// SetPolicy seeds the policy document
func (s *MemoryStore) SetPolicy(policy []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
}

// Put stores an object under <claimID>/<name>
func (s *MemoryStore) Put(_ context.Context, claimID, name string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[claimID+"/"+name] = copied
	return nil
}

// Get retrieves an object, or ErrNotFound
func (s *MemoryStore) Get(_ context.Context, claimID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[claimID+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// List returns the object names stored for a claim
func (s *MemoryStore) List(_ context.Context, claimID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := claimID + "/"
	var names []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetPolicy returns the seeded policy document
func (s *MemoryStore) GetPolicy(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.policy == nil {
		return nil, ErrNotFound
	}
	return s.policy, nil
}
