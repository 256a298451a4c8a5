package alias

import "testing"

func TestPropose(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		existing  []string
		want      string
	}{
		{"unique", "SLES", nil, "SLES"},
		{"first collision", "SLES", []string{"SLES"}, "SLES_1"},
		{"second collision", "SLES", []string{"SLES", "SLES_1"}, "SLES_2"},
		{"gap is reused", "SLES", []string{"SLES", "SLES_2"}, "SLES_1"},
		{"spaces", "Main Repository (OSS)", nil, "Main_Repository_OSS"},
		{"shell chars", "a/b$c*d?e", nil, "abcde"},
		{"empty", "", nil, Fallback},
		{"only junk", "$$//", []string{Fallback}, Fallback + "_1"},
		{"trimmed", "  oss  ", nil, "oss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Propose(tt.preferred, tt.existing); got != tt.want {
				t.Errorf("Propose(%q, %v) = %q, want %q", tt.preferred, tt.existing, got, tt.want)
			}
		})
	}
}

func TestProposeDeterministic(t *testing.T) {
	existing := []string{"oss", "oss_1", "oss_3"}
	first := Propose("oss", existing)
	for i := 0; i < 10; i++ {
		if got := Propose("oss", existing); got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
	if first != "oss_2" {
		t.Fatalf("got %q, want oss_2", first)
	}
}
