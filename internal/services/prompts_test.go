package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
)

func TestPromptStoreDefaults(t *testing.T) {
	t.Setenv("PROMPTS_DIR", "")
	store := NewPromptStore(testutil.Logger(t))

	for _, persona := range types.AllPersonaTypes() {
		tpl, err := store.Get(persona)
		if err != nil {
			t.Fatalf("%s: %v", persona, err)
		}
		if !strings.Contains(tpl, "Persona: "+persona) {
			t.Fatalf("%s: template missing persona block", persona)
		}
		if !strings.Contains(tpl, "recommendations") {
			t.Fatalf("%s: template missing output contract", persona)
		}
	}

	// Suffixed assignments resolve to their base persona template.
	tpl, err := store.Get("savings_builder_30d")
	if err != nil {
		t.Fatalf("suffixed persona: %v", err)
	}
	if !strings.Contains(tpl, "Persona: savings_builder") {
		t.Fatalf("suffixed persona resolved wrong template")
	}

	if _, err := store.Get("day_trader"); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
	if _, err := store.Get(""); !fault.IsCode(err, fault.CodeValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestPromptStoreOverride(t *testing.T) {
	dir := t.TempDir()
	override := "Custom high utilization prompt.\n"
	if err := os.WriteFile(filepath.Join(dir, "high_utilization.txt"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	t.Setenv("PROMPTS_DIR", dir)

	store := NewPromptStore(testutil.Logger(t))

	got, err := store.Get(types.PersonaHighUtilization)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != override {
		t.Fatalf("template=%q", got)
	}

	// Personas without a file fall back to the compiled-in default.
	fallback, err := store.Get(types.PersonaSavingsBuilder)
	if err != nil {
		t.Fatalf("get fallback: %v", err)
	}
	if !strings.Contains(fallback, "Persona: savings_builder") {
		t.Fatalf("fallback template wrong")
	}

	// First read wins; later file edits are not re-read.
	if err := os.WriteFile(filepath.Join(dir, "high_utilization.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewrite override: %v", err)
	}
	again, err := store.Get(types.PersonaHighUtilization)
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if again != override {
		t.Fatalf("cache miss, template=%q", again)
	}
}
