package persona

import (
	"path/filepath"
	"testing"
)

func sample() Persona {
	return Persona{
		Handle:     "TestBot",
		Mission:    "Test mission",
		Beliefs:    []string{"b1"},
		Doctrine:   []string{"D"},
		ToneRules:  map[string]string{"people": "ok"},
		ContentMix: map[string]float64{"proposals": 1.0},
		Guardrails: []string{"g"},
		Templates:  map[string]string{"tweet": "T"},
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	a := sample()
	b := Persona{
		Handle:     "TestBot",
		Mission:    "Test mission",
		Beliefs:    []string{"b1"},
		Doctrine:   []string{"D"},
		ToneRules:  map[string]string{"people": "ok"},
		ContentMix: map[string]float64{"proposals": 1.0},
		Guardrails: []string{"g"},
		Templates:  map[string]string{"tweet": "T"},
	}
	ha, hb := CanonicalHash(a), CanonicalHash(b)
	if ha != hb {
		t.Fatalf("hashes differ: %s vs %s", ha, hb)
	}
	if len(ha) != 16 {
		t.Fatalf("hash length = %d, want 16", len(ha))
	}
}

func TestValidateContentMixLaw(t *testing.T) {
	p := sample()
	p.ContentMix = map[string]float64{"proposals": 0.5, "replies": 0.2}
	if err := Validate(p); err == nil {
		t.Fatal("expected content_mix sum error")
	}
	p.ContentMix = map[string]float64{"proposals": 0.6, "replies": 0.41}
	if err := Validate(p); err != nil {
		t.Fatalf("expected sum within tolerance to pass, got %v", err)
	}
}

func TestValidateHandleAndBeliefs(t *testing.T) {
	p := sample()
	p.Handle = "this-handle-is-way-too-long-for-a-persona"
	if err := Validate(p); err == nil {
		t.Fatal("expected handle length error")
	}
	p = sample()
	p.Beliefs = []string{""}
	if err := Validate(p); err == nil {
		t.Fatal("expected empty belief error")
	}
}

func TestUpdateVersionMonotonic(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "persona.json"), sample())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if v, _ := s.Current(); v.Version != 1 {
		t.Fatalf("seed version = %d, want 1", v.Version)
	}
	next := sample()
	next.Mission = "Updated mission"
	v2, err := s.Update(next, "tester")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("version = %d, want 2", v2)
	}
	v3, err := s.Rollback(1, "tester")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if v3 != 3 {
		t.Fatalf("rollback version = %d, want 3", v3)
	}
	cur, _ := s.Current()
	if cur.Mission != "Test mission" {
		t.Fatalf("rollback content = %q, want original mission", cur.Mission)
	}
}
