package mediaref

import (
	"strings"

	"github.com/starford/mediafold/internal/models"
)

// Scanner finds references in a document with a fixed, priority-ordered list
// of grammars. Matches are leftmost-first and never overlap: at every
// candidate offset the grammars are tried in order and the first one that
// parses wins; scanning resumes right after its span.
type Scanner struct {
	grammars []grammar
	leads    string
}

func newScanner(gs ...grammar) *Scanner {
	var leads []byte
	for _, g := range gs {
		if strings.IndexByte(string(leads), g.lead) < 0 {
			leads = append(leads, g.lead)
		}
	}
	return &Scanner{grammars: gs, leads: string(leads)}
}

// CollapsedScanner recognizes collapsed references, current shapes before
// legacy ones.
func CollapsedScanner() *Scanner {
	return newScanner(
		refTag("draw", FormatDrawTag, models.TagDraw),
		refTag("image", FormatImageTag, models.TagImage),
		imgTag(),
		refTag("file", FormatFileTag, models.TagFile),
		legacyURLTag(),
		legacyCommentTag(),
		legacyFullData(),
	)
}

// ExpandedScanner recognizes inline media literals.
func ExpandedScanner(opts ExpandedOptions) *Scanner {
	return newScanner(
		markdownImageGrammar(opts),
		mediaElement("audio", FormatAudio, models.KindAudio),
		mediaElement("video", FormatVideo, models.KindVideo),
		embedGrammar(),
		iframeGrammar(),
	)
}

// Next returns the first match starting at or after offset from.
func (sc *Scanner) Next(s string, from int) (Match, bool) {
	return sc.next(newFinder(s), from)
}

func (sc *Scanner) next(f *finder, from int) (Match, bool) {
	s := f.s
	for i := from; i < len(s); {
		k := strings.IndexAny(s[i:], sc.leads)
		if k < 0 {
			return Match{}, false
		}
		i += k
		for _, g := range sc.grammars {
			if g.lead != s[i] {
				continue
			}
			if m, ok := g.parse(f, i); ok {
				return m, true
			}
		}
		i++
	}
	return Match{}, false
}

// Scan returns every match in s in document order.
func (sc *Scanner) Scan(s string) []Match {
	var out []Match
	f := newFinder(s)
	for i := 0; ; {
		m, ok := sc.next(f, i)
		if !ok {
			return out
		}
		out = append(out, m)
		i = m.Span.End
	}
}

// At returns the first match, in document order, whose span contains p.
// Both span boundaries count as inside.
func (sc *Scanner) At(s string, p int) (Match, bool) {
	if p < 0 || p > len(s) {
		return Match{}, false
	}
	f := newFinder(s)
	for i := 0; ; {
		m, ok := sc.next(f, i)
		if !ok || m.Span.Start > p {
			return Match{}, false
		}
		if m.Span.Contains(p) {
			return m, true
		}
		i = m.Span.End
	}
}

// Exact parses s as one whole reference and nothing else.
func (sc *Scanner) Exact(s string) (Match, bool) {
	m, ok := sc.Next(s, 0)
	if !ok || m.Span.Start != 0 || m.Span.End != len(s) {
		return Match{}, false
	}
	return m, true
}

// Rewrite replays the scan of s and substitutes each match for which fn
// returns ok. Text outside replaced spans is copied unchanged.
func (sc *Scanner) Rewrite(s string, fn func(m Match, literal string) (string, bool)) string {
	var b strings.Builder
	last := 0
	changed := false
	f := newFinder(s)
	for i := 0; ; {
		m, ok := sc.next(f, i)
		if !ok {
			break
		}
		i = m.Span.End
		repl, ok := fn(m, s[m.Span.Start:m.Span.End])
		if !ok {
			continue
		}
		if !changed {
			b.Grow(len(s))
			changed = true
		}
		b.WriteString(s[last:m.Span.Start])
		b.WriteString(repl)
		last = m.Span.End
	}
	if !changed {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
