package keyformat

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"abcd1234efgh5678":    "ABCD1234EFGH5678",
		"ABCD-1234-EFGH-5678": "ABCD1234EFGH5678",
		"abcd 1234 efgh 5678": "ABCD1234EFGH5678",
		"a-b_c.d":             "ABCD",
		"ÀÀÀÀÀÀÀÀÀÀÀÀ":        "",
		"Àabcd1234ÉFGH":       "ABCD1234FGH",
		"":                    "",
	}

	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"abcd-1234", "ABCD1234EFGH5678", "x", "", "a1!b2@c3#"}
	for _, input := range inputs {
		once := Normalize(input)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"abcd1234efgh5678":    "ABCD-1234-EFGH-5678",
		"ABCD-1234-EFGH-5678": "ABCD-1234-EFGH-5678",
		"abcd1234ef":          "ABCD-1234-EF",
		"abc":                 "ABC",
		"":                    "",
	}

	for input, want := range cases {
		if got := Format(input); got != want {
			t.Errorf("Format(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	input := "abcd1234efgh5678ij"
	formatted := Format(input)

	// Every block except possibly the last is exactly 4 characters
	blocks := strings.Split(formatted, Separator)
	for i, block := range blocks {
		if i < len(blocks)-1 && len(block) != BlockSize {
			t.Errorf("block %d of %q has length %d, want %d", i, formatted, len(block), BlockSize)
		}
	}

	// Stripping separators reproduces the normalized input
	if got := strings.ReplaceAll(formatted, Separator, ""); got != Normalize(input) {
		t.Errorf("stripped %q = %q, want %q", formatted, got, Normalize(input))
	}
}

func TestFormatASCIIOnly(t *testing.T) {
	// Multi-byte letters must never reach Format; byte-wise chunking would
	// split them across block boundaries otherwise.
	inputs := []string{"ÀÀÀÀÀÀÀÀÀÀÀÀ", "Àabc1234defÉ9876"}
	for _, input := range inputs {
		formatted := Format(input)
		for _, r := range formatted {
			if r == '-' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				continue
			}
			t.Errorf("Format(%q) = %q contains non-canonical rune %q", input, formatted, r)
		}
	}
	if got := Format("ÀÀÀÀÀÀÀÀÀÀÀÀ"); got != "" {
		t.Errorf("Format of all non-ASCII input = %q, want empty", got)
	}
}

func TestIsWellFormed(t *testing.T) {
	valid := []string{
		"ABCD1234EFGH5678",
		"abcd-1234-efgh-5678",
		"abcd1234efgh", // exactly 12
	}
	for _, input := range valid {
		if !IsWellFormed(input) {
			t.Errorf("IsWellFormed(%q) = false, want true", input)
		}
	}

	if got := strings.Repeat("A", MinLength-1); IsWellFormed(got) {
		t.Errorf("IsWellFormed(%q) = true, want false below MinLength", got)
	}
	if got := strings.Repeat("A", MinLength); !IsWellFormed(got) {
		t.Errorf("IsWellFormed(%q) = false, want true at MinLength", got)
	}

	invalid := []string{
		"short",
		"",
		"abcd1234efg", // 11 chars
		"!!!!----",
		"ÀÀÀÀÀÀÀÀÀÀÀÀ", // non-ASCII letters do not count
	}
	for _, input := range invalid {
		if IsWellFormed(input) {
			t.Errorf("IsWellFormed(%q) = true, want false", input)
		}
	}
}
