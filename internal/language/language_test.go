package language

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"HI", "hi"},
		{"kan", "kn"},
		{"bengali", "bn"},
		{"Oriya", "or"},
		{"hi-IN", "hi"},
		{"kn_IN", "kn"},
		{"ta-Taml-IN", "ta"},
		{"", "en"},
		{"fr", "en"},
		{"not a tag!", "en"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.input); got != tt.expected {
			t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported("mr") || !Supported("mr-IN") || !Supported("marathi") {
		t.Fatal("expected Marathi forms to be supported")
	}
	if Supported("de") || Supported("") {
		t.Fatal("expected German and empty input to be unsupported")
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		input   string
		display string
		iso3    string
	}{
		{"gu", "Gujarati", "guj"},
		{"ml-IN", "Malayalam", "mal"},
		{"xx", "XX", "und"},
		{"", "Unknown", "und"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.display {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.display)
		}
		if got := ToISO3(tt.input); got != tt.iso3 {
			t.Errorf("ToISO3(%q) = %q, want %q", tt.input, got, tt.iso3)
		}
	}
	if NativeName("kn") != "ಕನ್ನಡ" {
		t.Errorf("unexpected native name %q", NativeName("kn"))
	}
	if len(Codes()) != 9 || Codes()[0] != Default {
		t.Errorf("unexpected codes %v", Codes())
	}
}
