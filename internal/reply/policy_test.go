package reply

import (
	"strings"
	"testing"
)

var (
	imageFile = File{Name: "cat.png", Type: "image/png"}
	pdfFile   = File{Name: "report.pdf", Type: "application/pdf"}
	zipFile   = File{Name: "bundle.zip", Type: "application/zip"}
)

func TestGreetingRule(t *testing.T) {
	first := Generate("hello", nil)
	second := Generate("Hi there", nil)

	if first != second {
		t.Errorf("expected identical greeting replies, got %q vs %q", first, second)
	}
	if !strings.Contains(first, "Hello!") {
		t.Errorf("expected fixed greeting, got %q", first)
	}
}

func TestKeywordRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"well-being", "So, how are you doing?", "I'm doing great"},
		{"help", "I need assistance, please HELP", "I'm here to help!"},
		{"url", "visit https://example.com now", "shared a URL"},
		{"fallback echoes content", "quantum entanglement", `"quantum entanglement"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.content, nil)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Generate(%q) = %q, want substring %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestGreetingMatchesInsideWords(t *testing.T) {
	// "hi" is a plain substring test, so it also fires inside words
	// like "this" and takes precedence over later rules.
	got := Generate("can you help with this", nil)
	if !strings.Contains(got, "Hello!") {
		t.Errorf("expected the greeting rule to win via 'hi' in 'this', got %q", got)
	}
}

func TestURLBeatsFallback(t *testing.T) {
	got := Generate("visit https://example.com now", nil)
	if strings.Contains(got, "Thank you for your message") {
		t.Errorf("URL rule should win over fallback, got %q", got)
	}
}

func TestFilesRuleOverridesText(t *testing.T) {
	// "hello" would normally match the greeting rule.
	got := Generate("hello", []File{imageFile})
	if !strings.Contains(got, "image") {
		t.Errorf("expected files acknowledgment, got %q", got)
	}
	if strings.Contains(got, "Hello!") {
		t.Errorf("file rule must override greeting, got %q", got)
	}
}

func TestFilesWithoutContentOmitsEcho(t *testing.T) {
	got := Generate("", []File{imageFile})
	if !strings.Contains(got, "image") {
		t.Errorf("expected 'image' classification, got %q", got)
	}
	if strings.Contains(got, "Regarding your message") {
		t.Errorf("empty content must not produce an echo clause, got %q", got)
	}
}

func TestFilesDistinctKindsFirstSeenOrder(t *testing.T) {
	got := Generate("check this out", []File{pdfFile, imageFile, pdfFile})

	if !strings.Contains(got, "PDF and image") {
		t.Errorf("expected kinds in first-seen order without duplicates, got %q", got)
	}
	if strings.Count(got, "PDF") != 1 {
		t.Errorf("expected 'PDF' exactly once, got %q", got)
	}
	if !strings.Contains(got, `"check this out"`) {
		t.Errorf("expected quoted echo of the message, got %q", got)
	}
}

func TestEchoIsVerbatim(t *testing.T) {
	// Quote characters in the content must pass through unescaped.
	content := `tell me about "tardigrades" please`

	got := Generate(content, nil)
	if !strings.Contains(got, `"tell me about "tardigrades" please"`) {
		t.Errorf("fallback must echo content verbatim inside quotes, got %q", got)
	}

	got = Generate(content, []File{pdfFile})
	if !strings.Contains(got, `Regarding your message: "tell me about "tardigrades" please" - `) {
		t.Errorf("files echo must be verbatim inside quotes, got %q", got)
	}
}

func TestFilesGenericKind(t *testing.T) {
	got := Generate("", []File{zipFile})
	if !strings.Contains(got, "file file(s)") {
		t.Errorf("expected generic 'file' classification, got %q", got)
	}
}

func TestDeterministic(t *testing.T) {
	files := []File{imageFile, pdfFile}
	a := Generate("check this out", files)
	b := Generate("check this out", files)
	if a != b {
		t.Errorf("expected deterministic output, got %q vs %q", a, b)
	}
}
