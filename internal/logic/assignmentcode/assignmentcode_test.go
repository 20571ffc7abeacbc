package assignmentcode

import "testing"

func TestGenerateIsURLSafeAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if code == "" {
			t.Fatalf("Generate() returned empty code")
		}
		for _, r := range code {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("Generate() returned non-URL-safe code: %q", code)
			}
		}
		if seen[code] {
			t.Fatalf("Generate() produced a duplicate: %q", code)
		}
		seen[code] = true
	}
}
