package mediaref

import (
	"html"
	"strings"
)

// Low-level lexing of the small HTML subset the reference grammars use.
// Every helper works on byte offsets into the full document and never
// allocates copies of payload data.

type attr struct {
	name  string
	value string
}

type openTag struct {
	name        string
	attrs       []attr
	end         int // offset just past the closing '>'
	selfClosing bool
}

func (t openTag) get(name string) (string, bool) {
	for _, a := range t.attrs {
		if a.name == name {
			return a.value, true
		}
	}
	return "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isTagNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9', c == '-':
		return !first
	}
	return false
}

func isAttrNameByte(c byte) bool {
	if isSpace(c) {
		return false
	}
	switch c {
	case '"', '\'', '>', '/', '=', '<':
		return false
	}
	return true
}

// parseOpenTag reads `<name attr="v" bare ...>` or the self-closing form at s[i].
func parseOpenTag(s string, i int) (openTag, bool) {
	if i >= len(s) || s[i] != '<' {
		return openTag{}, false
	}
	j := i + 1
	start := j
	for j < len(s) && isTagNameByte(s[j], j == start) {
		j++
	}
	if j == start {
		return openTag{}, false
	}
	t := openTag{name: s[start:j]}
	if j < len(s) && !isSpace(s[j]) && s[j] != '>' && s[j] != '/' {
		return openTag{}, false
	}

	for {
		j = skipSpace(s, j)
		if j >= len(s) {
			return openTag{}, false
		}
		if s[j] == '>' {
			t.end = j + 1
			return t, true
		}
		if s[j] == '/' && j+1 < len(s) && s[j+1] == '>' {
			t.end = j + 2
			t.selfClosing = true
			return t, true
		}

		ns := j
		for j < len(s) && isAttrNameByte(s[j]) {
			j++
		}
		if j == ns {
			return openTag{}, false
		}
		a := attr{name: s[ns:j]}

		k := skipSpace(s, j)
		if k < len(s) && s[k] == '=' {
			k = skipSpace(s, k+1)
			if k >= len(s) {
				return openTag{}, false
			}
			switch q := s[k]; q {
			case '"', '\'':
				e := strings.IndexByte(s[k+1:], q)
				if e < 0 {
					return openTag{}, false
				}
				a.value = html.UnescapeString(s[k+1 : k+1+e])
				j = k + 1 + e + 1
			default:
				vs := k
				for k < len(s) && !isSpace(s[k]) && s[k] != '>' {
					k++
				}
				a.value = html.UnescapeString(s[vs:k])
				j = k
			}
		}
		t.attrs = append(t.attrs, a)
	}
}

// closeTagAfter finds `</name>` at or after offset i and returns its start
// and end offsets.
func closeTagAfter(f *finder, i int, name string) (int, int, bool) {
	closing := "</" + name + ">"
	at := f.index(i, closing)
	if at < 0 {
		return 0, 0, false
	}
	return at, at + len(closing), true
}

// textElement parses `<name ...>text</name>` where text holds no '<'.
func textElement(s string, i int, name string) (openTag, string, int, bool) {
	t, ok := parseOpenTag(s, i)
	if !ok || t.name != name || t.selfClosing {
		return openTag{}, "", 0, false
	}
	lt := strings.IndexByte(s[t.end:], '<')
	if lt < 0 {
		return openTag{}, "", 0, false
	}
	innerEnd := t.end + lt
	closing := "</" + name + ">"
	if !strings.HasPrefix(s[innerEnd:], closing) {
		return openTag{}, "", 0, false
	}
	return t, s[t.end:innerEnd], innerEnd + len(closing), true
}

// markdownImage parses `![label](url)` at f.s[i]. Neither part may span a
// line; the label may not contain ']' and the url may not contain ')'.
func markdownImage(f *finder, i int) (label, url string, end int, ok bool) {
	s := f.s
	if !strings.HasPrefix(s[i:], "![") {
		return "", "", 0, false
	}
	j := f.indexAny(i+2, "]\n")
	if j < 0 || j+1 >= len(s) || s[j] != ']' || s[j+1] != '(' {
		return "", "", 0, false
	}
	label = s[i+2 : j]
	us := j + 2
	rp := f.indexAny(us, ")\n")
	if rp < 0 || s[rp] != ')' {
		return "", "", 0, false
	}
	return label, s[us:rp], rp + 1, true
}

// mimeOf extracts the media type from a data URL, or "" when s is not one.
func mimeOf(dataURL string) string {
	if !strings.HasPrefix(dataURL, "data:") {
		return ""
	}
	rest := dataURL[len("data:"):]
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// finder answers forward searches over one document. A scan only moves
// forward, so an answer stays valid until the scan passes it and unclosed
// openers never rescan the rest of the document.
type finder struct {
	s    string
	memo map[string]hit
}

// hit records that the first occurrence at or after from is at, or -1.
type hit struct {
	from, at int
}

func newFinder(s string) *finder {
	return &finder{s: s, memo: make(map[string]hit)}
}

func (f *finder) find(i int, key string, search func(string) int) int {
	if h, ok := f.memo[key]; ok && h.from <= i && (h.at < 0 || i <= h.at) {
		return h.at
	}
	at := search(f.s[i:])
	if at >= 0 {
		at += i
	}
	f.memo[key] = hit{from: i, at: at}
	return at
}

// index is strings.Index over f.s[i:], returning an offset into f.s.
func (f *finder) index(i int, needle string) int {
	return f.find(i, needle, func(r string) int { return strings.Index(r, needle) })
}

// indexAny is strings.IndexAny over f.s[i:], returning an offset into f.s.
func (f *finder) indexAny(i int, chars string) int {
	return f.find(i, "\x00"+chars, func(r string) int { return strings.IndexAny(r, chars) })
}
