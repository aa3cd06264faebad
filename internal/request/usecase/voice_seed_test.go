package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestParseVoiceCatalog(t *testing.T) {
	data := []byte(`
voices:
  - name: Assistant
    label: Assistant
    description: Polite check-in
    color: blue
    sort_order: 1
  - name: friendly
    description: Warm and light
    examples: Hope all is well!
    sort_order: 2
    no_escalation: true
`)
	voices, err := ParseVoiceCatalog(data)
	if err != nil {
		t.Fatalf("ParseVoiceCatalog failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "assistant" || voices[0].Color != "blue" || voices[0].SortOrder != 1 {
		t.Fatalf("unexpected first voice %+v", voices[0])
	}
	if !voices[1].NoEscalation || voices[1].Label != "friendly" || voices[1].Examples == nil {
		t.Fatalf("unexpected second voice %+v", voices[1])
	}
}

func TestParseVoiceCatalogRejectsIncompleteEntries(t *testing.T) {
	for _, data := range []string{
		"voices:\n  - description: no name\n",
		"voices:\n  - name: silent\n",
		"voices: [",
	} {
		if _, err := ParseVoiceCatalog([]byte(data)); err == nil {
			t.Fatalf("expected an error for %q", data)
		}
	}
}

func TestSeedVoicesFromShippedCatalog(t *testing.T) {
	path := filepath.Join("..", "..", "..", "config", "voices.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("catalog not found: %v", err)
	}
	voices, err := LoadVoiceCatalog(path)
	if err != nil {
		t.Fatalf("LoadVoiceCatalog failed: %v", err)
	}

	repo := &fakeVoices{}
	if err := SeedVoices(context.Background(), repo, voices, zap.NewNop()); err != nil {
		t.Fatalf("SeedVoices failed: %v", err)
	}
	for _, name := range []string{"assistant", "accountant", "attorney", "asshole"} {
		if repo.byName[name] == nil {
			t.Fatalf("expected %q to be seeded", name)
		}
	}
	if v := repo.byName["friendly"]; v == nil || !v.NoEscalation {
		t.Fatalf("expected friendly to be a no-escalation voice, got %+v", v)
	}
}
