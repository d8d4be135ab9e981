package classifier

import (
	"testing"
)

func TestDefaultDefinitionsAllRegisterDistinctIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range DefaultDefinitions() {
		if seen[d.ID] {
			t.Fatalf("duplicate definition ID %q", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestNewRegistryMarksUniquePortsAcrossDefinitions(t *testing.T) {
	defs := []Definition{
		{ID: "a", Pattern: Port{P: tcp(9999)}},
		{ID: "b", Pattern: Port{P: tcp(9999)}},
		{ID: "c", Pattern: Port{P: tcp(7777)}},
	}
	r := NewRegistry(defs)

	a, _ := r.Find("a")
	if a.Pattern.(Port).uniqueAcrossRegistry {
		t.Error("port shared by two definitions should not be marked unique")
	}

	c, _ := r.Find("c")
	if !c.Pattern.(Port).uniqueAcrossRegistry {
		t.Error("port used by only one definition should be marked unique")
	}
}

func TestNewRegistryMarksUniquePortsInsideComposedPatterns(t *testing.T) {
	defs := []Definition{
		{ID: "a", Pattern: AllOf{Patterns: []Pattern{Port{P: tcp(3389)}, Port{P: tcp(445)}}}},
		{ID: "b", Pattern: Port{P: tcp(445)}},
	}
	r := NewRegistry(defs)

	a, _ := r.Find("a")
	allOf := a.Pattern.(AllOf)
	rdp := allOf.Patterns[0].(Port)
	samba := allOf.Patterns[1].(Port)
	if !rdp.uniqueAcrossRegistry {
		t.Error("rdp port only declared once, should be unique")
	}
	if samba.uniqueAcrossRegistry {
		t.Error("samba port declared by two definitions, should not be unique")
	}
}

func TestFindMissingDefinition(t *testing.T) {
	r := NewRegistry(DefaultDefinitions())
	if _, ok := r.Find("does-not-exist"); ok {
		t.Error("expected lookup of unknown ID to fail")
	}
}
