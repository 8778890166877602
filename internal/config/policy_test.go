package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.Windows.Default != 30 || p.Windows.Max != 365 {
		t.Fatalf("unexpected window defaults: %+v", p.Windows)
	}
	if p.Subscriptions.MinOccurrences != 3 {
		t.Fatalf("expected 3 min occurrences, got %d", p.Subscriptions.MinOccurrences)
	}
	if p.Matching.TopN != 3 || p.Matching.ScoreThreshold != 0.5 {
		t.Fatalf("unexpected matching defaults: %+v", p.Matching)
	}
	if len(p.Guardrails.ForbiddenPhrases) == 0 || len(p.Guardrails.EmpoweringKeywords) == 0 {
		t.Fatal("guardrail vocabularies must not be empty by default")
	}
	if p.Personas.FallbackConfidenceNoMatch != 0.2 || p.Personas.FallbackConfidenceNoFeatures != 0.1 {
		t.Fatalf("unexpected fallback confidence tiers: %+v", p.Personas)
	}
}

func TestLoadPolicyPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := `
credit:
  utilization_flag_50: 0.55
matching:
  top_n: 5
guardrails:
  forbidden_phrases:
    - "never say this"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.Credit.UtilizationFlag50 != 0.55 {
		t.Fatalf("override not applied: %v", p.Credit.UtilizationFlag50)
	}
	if p.Matching.TopN != 5 {
		t.Fatalf("override not applied: %v", p.Matching.TopN)
	}
	// Untouched fields keep their defaults.
	if p.Credit.UtilizationFlag30 != 0.30 {
		t.Fatalf("default clobbered: %v", p.Credit.UtilizationFlag30)
	}
	if p.Windows.Default != 30 {
		t.Fatalf("default clobbered: %v", p.Windows.Default)
	}
	// List overrides replace wholesale.
	if len(p.Guardrails.ForbiddenPhrases) != 1 || p.Guardrails.ForbiddenPhrases[0] != "never say this" {
		t.Fatalf("list override should replace, got %v", p.Guardrails.ForbiddenPhrases)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv("POLICY_CONFIG_PATH", "")
	p, err := PolicyFromEnv()
	if err != nil {
		t.Fatalf("PolicyFromEnv: %v", err)
	}
	if p.Windows.Default != 30 {
		t.Fatalf("expected defaults when unset, got %+v", p.Windows)
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("windows:\n  default: 90\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("POLICY_CONFIG_PATH", path)
	p, err = PolicyFromEnv()
	if err != nil {
		t.Fatalf("PolicyFromEnv with path: %v", err)
	}
	if p.Windows.Default != 90 {
		t.Fatalf("expected file override, got %d", p.Windows.Default)
	}
}
