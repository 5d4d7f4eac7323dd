// Package parser extracts frontmatter, tags and media references from
// Markdown documents in either collapsed or expanded form.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/mediafold/internal/mediaref"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

var summarizer = mediaref.NewSummarizer()

// Media is one media occurrence in a document. Key is empty for inline
// payloads.
type Media struct {
	Tag   string `json:"tag"`
	Key   string `json:"key,omitempty"`
	Label string `json:"label,omitempty"`
}

// Result holds the output of parsing a Markdown document.
type Result struct {
	Frontmatter map[string]interface{}
	// Body is the document without frontmatter, media untouched.
	Body string
	// Summary is Body with every media occurrence replaced by a short marker.
	Summary string
	Media   []Media
	Tags    []string
	Title   string
}

// Parse splits frontmatter from data and summarizes the media in the body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	summary := summarizer.Summarize(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Summary:     summary,
		Media:       extractMedia(body),
		Tags:        extractTags(summary, fm),
		Title:       deriveTitle(fm, summary),
	}, nil
}

// splitFrontmatter separates a leading YAML block delimited by --- lines.
// Without a closing delimiter, or with invalid YAML, everything is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func extractMedia(body string) []Media {
	refs := summarizer.Refs(body)
	if len(refs) == 0 {
		return nil
	}
	out := make([]Media, 0, len(refs))
	for _, r := range refs {
		out = append(out, Media{Tag: string(r.Kind), Key: r.Key, Label: r.Label})
	}
	return out
}

// extractTags collects frontmatter tags, then inline #tags, without duplicates.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title, else the first H1, else "".
func deriveTitle(fm map[string]interface{}, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
