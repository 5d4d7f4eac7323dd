package mediaref

import (
	"html"
	"strings"

	"github.com/starford/mediafold/internal/models"
)

// TagFormat enumerates every textual shape the scanner recognizes. The
// collapsed formats are listed in decode priority order: current shapes
// first, then the legacy shapes older documents may still contain.
type TagFormat int

const (
	FormatUnknown TagFormat = iota

	// Collapsed, current.
	FormatDrawTag  // <draw data-id="K" data-display="...">label</draw>
	FormatImageTag // <image data-id="K" data-display="...">label</image>
	FormatImgTag   // <img data-id="K" data-display="..." alt="label" />
	FormatFileTag  // <file data-id="K" data-display="...">name</file>

	// Collapsed, legacy. These carry the payload inline.
	FormatLegacyURLTag     // <draw data-url="D"></draw>, <image data-url="D">label</image>
	FormatLegacyCommentTag // <draw><!-- IMAGE_DATA_1:D --></draw>
	FormatLegacyFullData   // ![label](...)<!-- FULL_DATA: D -->

	// Expanded.
	FormatMarkdownImage // ![label](data:image/...)
	FormatAudio         // <audio controls><source src="D" type="M">...</audio>
	FormatVideo         // <video controls><source src="D" type="M">...</video>
	FormatEmbed         // <embed src="D" type="application/pdf" ... />
	FormatIframe        // <iframe src="D" ...></iframe>
)

var formatNames = map[TagFormat]string{
	FormatDrawTag:          "draw",
	FormatImageTag:         "image",
	FormatImgTag:           "img",
	FormatFileTag:          "file",
	FormatLegacyURLTag:     "legacy-url",
	FormatLegacyCommentTag: "legacy-comment",
	FormatLegacyFullData:   "legacy-full-data",
	FormatMarkdownImage:    "markdown-image",
	FormatAudio:            "audio",
	FormatVideo:            "video",
	FormatEmbed:            "embed",
	FormatIframe:           "iframe",
}

func (f TagFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// Collapsed reports whether f is a collapsed (tag) shape.
func (f TagFormat) Collapsed() bool {
	return f >= FormatDrawTag && f <= FormatLegacyFullData
}

// Legacy reports whether f is a shape only older documents contain.
func (f TagFormat) Legacy() bool {
	return f >= FormatLegacyURLTag && f <= FormatLegacyFullData
}

// Match is one recognized occurrence in a document. Collapsed formats fill
// Ref; expanded formats fill Payload (DisplayName left empty, the caller
// decides the label).
type Match struct {
	Format  TagFormat
	Span    models.Span
	Ref     models.Reference
	Payload models.MediaPayload
}

// ExpandedOptions tunes the expanded grammars.
type ExpandedOptions struct {
	// MinPayload is the minimum number of characters after ";base64," for a
	// markdown image to match. Zero accepts any non-empty data URL.
	MinPayload int
	// RequireBase64 restricts markdown images to base64 data URLs.
	RequireBase64 bool
}

type grammar struct {
	format TagFormat
	lead   byte
	parse  func(f *finder, i int) (Match, bool)
}

func trimDisplay(v string) string {
	return strings.TrimPrefix(v, "...")
}

func refTag(name string, format TagFormat, kind models.TagKind) grammar {
	return grammar{format: format, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, inner, end, ok := textElement(s, i, name)
		if !ok {
			return Match{}, false
		}
		key, ok := t.get("data-id")
		if !ok || key == "" {
			return Match{}, false
		}
		display, _ := t.get("data-display")
		inline, _ := t.get("data-url")
		return Match{
			Format: format,
			Span:   models.Span{Start: i, End: end},
			Ref: models.Reference{
				Kind:        kind,
				Key:         key,
				DisplayHint: trimDisplay(display),
				Label:       html.UnescapeString(inner),
				Inline:      inline,
			},
		}, true
	}}
}

func imgTag() grammar {
	return grammar{format: FormatImgTag, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, ok := parseOpenTag(s, i)
		if !ok || t.name != "img" {
			return Match{}, false
		}
		key, ok := t.get("data-id")
		if !ok || key == "" {
			return Match{}, false
		}
		alt, ok := t.get("alt")
		if !ok {
			return Match{}, false
		}
		display, _ := t.get("data-display")
		return Match{
			Format: FormatImgTag,
			Span:   models.Span{Start: i, End: t.end},
			Ref: models.Reference{
				Kind:        models.TagImage,
				Key:         key,
				DisplayHint: trimDisplay(display),
				Label:       html.UnescapeString(alt),
			},
		}, true
	}}
}

func legacyURLTag() grammar {
	return grammar{format: FormatLegacyURLTag, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		for _, name := range []string{"draw", "image"} {
			t, inner, end, ok := textElement(s, i, name)
			if !ok {
				continue
			}
			data, ok := t.get("data-url")
			if !ok || data == "" {
				return Match{}, false
			}
			return Match{
				Format: FormatLegacyURLTag,
				Span:   models.Span{Start: i, End: end},
				Ref: models.Reference{
					Kind:   models.TagKind(name),
					Label:  html.UnescapeString(inner),
					Inline: data,
				},
			}, true
		}
		return Match{}, false
	}}
}

const (
	imageDataOpen = "<!-- IMAGE_DATA_"
	fullDataOpen  = "<!-- FULL_DATA: "
	commentClose  = " -->"
)

func legacyCommentTag() grammar {
	return grammar{format: FormatLegacyCommentTag, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, ok := parseOpenTag(s, i)
		if !ok || t.selfClosing || (t.name != "draw" && t.name != "image") {
			return Match{}, false
		}
		cs, ce, ok := closeTagAfter(f, t.end, t.name)
		if !ok {
			return Match{}, false
		}
		inner := s[t.end:cs]
		co := strings.Index(inner, imageDataOpen)
		if co < 0 {
			return Match{}, false
		}
		rest := inner[co+len(imageDataOpen):]
		d := 0
		for d < len(rest) && rest[d] >= '0' && rest[d] <= '9' {
			d++
		}
		if d == 0 || d >= len(rest) || rest[d] != ':' {
			return Match{}, false
		}
		rest = rest[d+1:]
		cc := strings.Index(rest, commentClose)
		if cc < 0 {
			return Match{}, false
		}
		data := rest[:cc]
		outside := inner[:co] + rest[cc+len(commentClose):]
		if data == "" || strings.ContainsRune(outside, '<') {
			return Match{}, false
		}
		return Match{
			Format: FormatLegacyCommentTag,
			Span:   models.Span{Start: i, End: ce},
			Ref: models.Reference{
				Kind:   models.TagKind(t.name),
				Label:  strings.TrimSpace(html.UnescapeString(outside)),
				Inline: data,
			},
		}, true
	}}
}

func legacyFullData() grammar {
	return grammar{format: FormatLegacyFullData, lead: '!', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		label, _, end, ok := markdownImage(f, i)
		if !ok {
			return Match{}, false
		}
		j := end
		for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if !strings.HasPrefix(s[j:], fullDataOpen) {
			return Match{}, false
		}
		ds := j + len(fullDataOpen)
		cc := f.index(ds, commentClose) - ds
		if cc <= 0 {
			return Match{}, false
		}
		return Match{
			Format: FormatLegacyFullData,
			Span:   models.Span{Start: i, End: ds + cc + len(commentClose)},
			Ref: models.Reference{
				Kind:   models.TagImage,
				Label:  label,
				Inline: s[ds : ds+cc],
			},
		}, true
	}}
}

func markdownImageGrammar(opts ExpandedOptions) grammar {
	return grammar{format: FormatMarkdownImage, lead: '!', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		label, url, end, ok := markdownImage(f, i)
		if !ok || !strings.HasPrefix(url, "data:image/") {
			return Match{}, false
		}
		rest := url[len("data:image/"):]
		if opts.RequireBase64 {
			semi := strings.IndexByte(rest, ';')
			if semi <= 0 || !strings.HasPrefix(rest[semi:], ";base64,") {
				return Match{}, false
			}
			if len(rest[semi+len(";base64,"):]) < max(opts.MinPayload, 1) {
				return Match{}, false
			}
		} else if len(rest) < max(opts.MinPayload, 1) {
			return Match{}, false
		}
		// Reference attributes right after the literal mean it already went
		// through a collapse and leaked back as Markdown.
		if strings.HasPrefix(s[end:], " data-") {
			return Match{}, false
		}
		return Match{
			Format: FormatMarkdownImage,
			Span:   models.Span{Start: i, End: end},
			Ref:    models.Reference{Label: label},
			Payload: models.MediaPayload{
				Kind:     models.KindImage,
				MimeType: mimeOf(url),
				Data:     url,
			},
		}, true
	}}
}

// mediaElement matches <audio> and <video>. The source comes from the
// element's own src or its first <source> child and must be inline data.
func mediaElement(name string, format TagFormat, kind models.Kind) grammar {
	return grammar{format: format, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, ok := parseOpenTag(s, i)
		if !ok || t.name != name || t.selfClosing {
			return Match{}, false
		}
		cs, ce, ok := closeTagAfter(f, t.end, name)
		if !ok {
			return Match{}, false
		}
		src, _ := t.get("src")
		typ, _ := t.get("type")
		if src == "" {
			for k := t.end; k < cs; {
				lt := strings.Index(s[k:cs], "<source")
				if lt < 0 {
					break
				}
				st, ok := parseOpenTag(s, k+lt)
				if ok && st.name == "source" {
					src, _ = st.get("src")
					typ, _ = st.get("type")
					break
				}
				k += lt + 1
			}
		}
		if !strings.HasPrefix(src, "data:") {
			return Match{}, false
		}
		if typ == "" {
			typ = string(kind) + "/*"
		}
		return Match{
			Format:  format,
			Span:    models.Span{Start: i, End: ce},
			Payload: models.MediaPayload{Kind: kind, MimeType: typ, Data: src},
		}, true
	}}
}

func embedGrammar() grammar {
	return grammar{format: FormatEmbed, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, ok := parseOpenTag(s, i)
		if !ok || t.name != "embed" {
			return Match{}, false
		}
		src, _ := t.get("src")
		if !strings.HasPrefix(src, "data:") {
			return Match{}, false
		}
		return Match{
			Format:  FormatEmbed,
			Span:    models.Span{Start: i, End: t.end},
			Payload: models.MediaPayload{Kind: models.KindPDF, MimeType: "application/pdf", Data: src},
		}, true
	}}
}

func iframeGrammar() grammar {
	return grammar{format: FormatIframe, lead: '<', parse: func(f *finder, i int) (Match, bool) {
		s := f.s
		t, ok := parseOpenTag(s, i)
		if !ok || t.name != "iframe" || t.selfClosing {
			return Match{}, false
		}
		if !strings.HasPrefix(s[t.end:], "</iframe>") {
			return Match{}, false
		}
		src, _ := t.get("src")
		if !strings.HasPrefix(src, "data:") {
			return Match{}, false
		}
		p := models.MediaPayload{Kind: models.KindText, MimeType: "text/plain", Data: src}
		if strings.Contains(src, "data:text/html") {
			p.Kind, p.MimeType = models.KindHTML, "text/html"
		}
		return Match{
			Format:  FormatIframe,
			Span:    models.Span{Start: i, End: t.end + len("</iframe>")},
			Payload: p,
		}, true
	}}
}
