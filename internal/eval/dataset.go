// Package eval replays a labeled claim dataset against the claim
// submission contract and scores the outcomes.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// answerFileName holds the expected outcome for a dataset case
const answerFileName = "answer.json"

// imageGlobs is the fixed probe priority for a case's supporting image
var imageGlobs = []string{"*.png", "*.jpg", "*.jpeg", "*.webp", "*.bmp", "*.tiff"}

// Answer is the labeled expectation for one case. A case may carry an
// acceptable_decision marking a second tolerable outcome.
type Answer struct {
	Decision           string `json:"decision"`
	Explanation        string `json:"explanation,omitempty"`
	AcceptableDecision string `json:"acceptable_decision,omitempty"`
}

// CaseRef points at one dataset case directory
type CaseRef struct {
	Num int
	Dir string
}

// Case is a fully loaded dataset case
type Case struct {
	Num          int
	ClaimText    string
	MetadataText string
	Image        []byte
	ImageName    string
	Expected     Answer
}

// DiscoverCases finds `claim N` directories under the dataset root,
// ordered by case number. Gaps in the numbering are skipped.
func DiscoverCases(datasetDir string) ([]CaseRef, error) {
	entries, err := os.ReadDir(datasetDir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	var refs []CaseRef
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		numText, ok := strings.CutPrefix(name, "claim ")
		if !ok {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(numText))
		if err != nil {
			continue
		}
		refs = append(refs, CaseRef{Num: num, Dir: filepath.Join(datasetDir, name)})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs, nil
}

// Submission is the claim material found in a directory: the claim
// description, metadata documents, and at most one supporting image.
type Submission struct {
	ClaimText    string
	MetadataText string
	Image        []byte
	ImageName    string
}

// LoadSubmission reads claim material from a directory: description.txt
// is required, metadata documents are concatenated under per-file
// headers, and the first image found in probe priority order is used.
func LoadSubmission(dir string) (*Submission, error) {
	description, err := os.ReadFile(filepath.Join(dir, "description.txt"))
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}

	metadata, err := collectMetadata(dir)
	if err != nil {
		return nil, err
	}

	image, imageName, err := probeImage(dir)
	if err != nil {
		return nil, err
	}

	return &Submission{
		ClaimText:    string(description),
		MetadataText: metadata,
		Image:        image,
		ImageName:    imageName,
	}, nil
}

// LoadCase reads one case directory: the claim material plus the
// answer file with the labeled expectation.
func LoadCase(ref CaseRef) (*Case, error) {
	submission, err := LoadSubmission(ref.Dir)
	if err != nil {
		return nil, err
	}

	answerData, err := os.ReadFile(filepath.Join(ref.Dir, answerFileName))
	if err != nil {
		return nil, fmt.Errorf("read answer file: %w", err)
	}
	var answer Answer
	if err := json.Unmarshal(answerData, &answer); err != nil {
		return nil, fmt.Errorf("parse answer file: %w", err)
	}
	if answer.Decision == "" {
		return nil, fmt.Errorf("answer file has no decision")
	}

	return &Case{
		Num:          ref.Num,
		ClaimText:    submission.ClaimText,
		MetadataText: submission.MetadataText,
		Image:        submission.Image,
		ImageName:    submission.ImageName,
		Expected:     answer,
	}, nil
}

func collectMetadata(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return "", fmt.Errorf("glob metadata: %w", err)
	}
	sort.Strings(files)

	var builder strings.Builder
	for _, file := range files {
		name := filepath.Base(file)
		if name == answerFileName {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read metadata %s: %w", name, err)
		}
		builder.WriteString("\n\n### ")
		builder.WriteString(name)
		builder.WriteString("\n\n")
		builder.Write(content)
	}
	return builder.String(), nil
}

func probeImage(dir string) ([]byte, string, error) {
	for _, glob := range imageGlobs {
		matches, err := filepath.Glob(filepath.Join(dir, glob))
		if err != nil {
			return nil, "", fmt.Errorf("glob image: %w", err)
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		data, err := os.ReadFile(matches[0])
		if err != nil {
			return nil, "", fmt.Errorf("read image: %w", err)
		}
		return data, filepath.Base(matches[0]), nil
	}
	return nil, "", nil
}
