package eval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverCases_OrderAndFiltering(t *testing.T) {
	dataset := t.TempDir()
	for _, name := range []string{"claim 10", "claim 2", "claim 1", "results", "claimX"} {
		if err := os.Mkdir(filepath.Join(dataset, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// a stray file should never look like a case
	if err := os.WriteFile(filepath.Join(dataset, "claim 5"), []byte("file"), 0644); err != nil {
		t.Fatal(err)
	}

	refs, err := DiscoverCases(dataset)
	if err != nil {
		t.Fatalf("DiscoverCases: %v", err)
	}

	var nums []int
	for _, ref := range refs {
		nums = append(nums, ref.Num)
	}
	want := []int{1, 2, 10}
	if len(nums) != len(want) {
		t.Fatalf("got cases %v, want %v", nums, want)
	}
	for i := range want {
		if nums[i] != want[i] {
			t.Errorf("case order %v, want %v", nums, want)
			break
		}
	}
}

func TestLoadCase_MetadataHeadersAndImageProbe(t *testing.T) {
	dataset := t.TempDir()
	writeCase(t, dataset, 1, "water damage in kitchen",
		`{"decision": "APPROVE", "explanation": "covered peril"}`,
		map[string][]byte{
			"policy_notes.md": []byte("policy body"),
			"adjuster.md":     []byte("adjuster body"),
			"photo.webp":      []byte("webp-bytes"),
			"scan.png":        []byte("png-bytes"),
		})

	refs, err := DiscoverCases(dataset)
	if err != nil || len(refs) != 1 {
		t.Fatalf("DiscoverCases: %v (%d refs)", err, len(refs))
	}

	loaded, err := LoadCase(refs[0])
	if err != nil {
		t.Fatalf("LoadCase: %v", err)
	}

	if loaded.ClaimText != "water damage in kitchen" {
		t.Errorf("claim text = %q", loaded.ClaimText)
	}
	if !strings.Contains(loaded.MetadataText, "### adjuster.md") ||
		!strings.Contains(loaded.MetadataText, "### policy_notes.md") {
		t.Errorf("metadata missing per-file headers: %q", loaded.MetadataText)
	}
	if strings.Index(loaded.MetadataText, "adjuster.md") > strings.Index(loaded.MetadataText, "policy_notes.md") {
		t.Error("metadata files not concatenated in sorted order")
	}
	// png outranks webp in the probe order
	if loaded.ImageName != "scan.png" || string(loaded.Image) != "png-bytes" {
		t.Errorf("image probe picked %q, want scan.png", loaded.ImageName)
	}
	if loaded.Expected.Decision != "APPROVE" {
		t.Errorf("expected decision = %q", loaded.Expected.Decision)
	}
}

func TestLoadCase_MissingPieces(t *testing.T) {
	dataset := t.TempDir()

	noAnswer := filepath.Join(dataset, "claim 1")
	if err := os.Mkdir(noAnswer, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(noAnswer, "description.txt"), []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCase(CaseRef{Num: 1, Dir: noAnswer}); err == nil {
		t.Error("case without answer.json should fail to load")
	}

	writeCase(t, dataset, 2, "text", `{"explanation": "no decision field"}`, nil)
	if _, err := LoadCase(CaseRef{Num: 2, Dir: filepath.Join(dataset, "claim 2")}); err == nil {
		t.Error("answer without a decision should fail to load")
	}

	// no image and no metadata is a valid case
	writeCase(t, dataset, 3, "text", `{"decision": "DENY"}`, nil)
	loaded, err := LoadCase(CaseRef{Num: 3, Dir: filepath.Join(dataset, "claim 3")})
	if err != nil {
		t.Fatalf("bare case should load: %v", err)
	}
	if loaded.Image != nil || loaded.MetadataText != "" {
		t.Errorf("bare case loaded extras: %+v", loaded)
	}
}
