package mediaref

import (
	"github.com/starford/mediafold/internal/models"
)

// Summarizer replaces every media occurrence, collapsed or inline, with a
// short "[kind: label]" marker so indexes never see encoded payloads.
type Summarizer struct {
	collapsed *Scanner
	expanded  *Scanner
}

// NewSummarizer returns a summarizer that recognizes inline literals of any size.
func NewSummarizer() *Summarizer {
	return &Summarizer{
		collapsed: CollapsedScanner(),
		expanded:  ExpandedScanner(ExpandedOptions{}),
	}
}

// Summarize rewrites text.
func (s *Summarizer) Summarize(text string) string {
	text = s.collapsed.Rewrite(text, func(m Match, _ string) (string, bool) {
		return marker(string(m.Ref.Kind), m.Ref.Label), true
	})
	return s.expanded.Rewrite(text, func(m Match, _ string) (string, bool) {
		return marker(string(m.Payload.Kind), m.Ref.Label), true
	})
}

// Keys returns the blob keys referenced by collapsed tags in text.
func (s *Summarizer) Keys(text string) []string {
	var keys []string
	for _, m := range s.collapsed.Scan(text) {
		if m.Ref.Key != "" {
			keys = append(keys, m.Ref.Key)
		}
	}
	return keys
}

// Refs lists the media occurrences of text: collapsed references first, then
// inline literals.
func (s *Summarizer) Refs(text string) []models.Reference {
	var refs []models.Reference
	for _, m := range s.collapsed.Scan(text) {
		refs = append(refs, m.Ref)
	}
	for _, m := range s.expanded.Scan(text) {
		refs = append(refs, models.Reference{
			Kind:  models.TagKindFor(m.Payload.Kind),
			Label: m.Ref.Label,
		})
	}
	return refs
}

func marker(kind, label string) string {
	if label == "" {
		return "[" + kind + "]"
	}
	return "[" + kind + ": " + markdownLabel(label) + "]"
}
