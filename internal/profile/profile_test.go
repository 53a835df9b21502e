package profile

import "testing"

func TestLoad_AllBuiltins(t *testing.T) {
	for _, name := range Names() {
		p, err := Load(name)
		if err != nil {
			t.Errorf("Load(%q) error: %v", name, err)
			continue
		}
		if p.Name != name {
			t.Errorf("Load(%q).Name = %q, want %q", name, p.Name, name)
		}
		if p.SystemPromptAddendum == "" {
			t.Errorf("Load(%q).SystemPromptAddendum is empty", name)
		}
		if p.Audience == "" || p.ComplianceScope == "" {
			t.Errorf("Load(%q) has empty audience or compliance scope", name)
		}
	}
}

func TestLoad_EmptyIsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if p.Name != Default {
		t.Errorf("Load(\"\").Name = %q, want %q", p.Name, Default)
	}
	if p.ComplianceScope != "Indian SMEs" {
		t.Errorf("default compliance scope = %q, want Indian SMEs", p.ComplianceScope)
	}
}

func TestLoad_CaseInsensitive(t *testing.T) {
	if _, err := Load("SME"); err != nil {
		t.Errorf("Load(\"SME\") error: %v", err)
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("nonexistent")
	if err == nil {
		t.Fatal("Load(\"nonexistent\") expected error, got nil")
	}
}
