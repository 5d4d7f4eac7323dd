package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - media\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "media" {
		t.Errorf("tags = %v, want [go media]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestParse_CommaSeparatedTags(t *testing.T) {
	r, _ := Parse([]byte("---\ntags: trip, beach\n---\ntext #beach #sun\n"))
	want := []string{"trip", "beach", "sun"}
	if strings.Join(r.Tags, ",") != strings.Join(want, ",") {
		t.Errorf("tags = %v, want %v", r.Tags, want)
	}
}

func TestParse_SummarizesInlineMedia(t *testing.T) {
	data := "# Trip ![beach](data:image/png;base64," + strings.Repeat("A", 200) + ")\n" +
		"see <audio controls><source src=\"data:audio/mpeg;base64,SUQz\" type=\"audio/mpeg\"></audio> #travel\n"
	r, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Contains(r.Summary, "base64") {
		t.Errorf("summary still holds payload: %q", r.Summary)
	}
	if !strings.Contains(r.Summary, "[image: beach]") {
		t.Errorf("summary = %q, want image marker", r.Summary)
	}
	if r.Title != "Trip [image: beach]" {
		t.Errorf("title = %q", r.Title)
	}
	if len(r.Media) != 2 {
		t.Fatalf("media = %+v, want 2 entries", r.Media)
	}
	if r.Media[0].Tag != "image" || r.Media[0].Label != "beach" || r.Media[0].Key != "" {
		t.Errorf("media[0] = %+v", r.Media[0])
	}
	if r.Media[1].Tag != "file" {
		t.Errorf("media[1] = %+v, want file tag", r.Media[1])
	}
	if len(r.Tags) != 1 || r.Tags[0] != "travel" {
		t.Errorf("tags = %v", r.Tags)
	}
}

func TestParse_CollapsedReferences(t *testing.T) {
	data := `before <image data-id="K1" data-display="...abcde">cat</image> after <file data-id="K2" data-display="...xyz">song.mp3</file>`
	r, _ := Parse([]byte(data))
	if len(r.Media) != 2 {
		t.Fatalf("media = %+v", r.Media)
	}
	if r.Media[0].Key != "K1" || r.Media[1].Key != "K2" {
		t.Errorf("keys = %q %q", r.Media[0].Key, r.Media[1].Key)
	}
	if r.Summary != "before [image: cat] after [file: song.mp3]" {
		t.Errorf("summary = %q", r.Summary)
	}
}
