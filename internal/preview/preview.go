// Package preview renders expanded documents to sanitized HTML.
package preview

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns Markdown with inline media into HTML that is safe to embed.
// Only expanded documents render media: collapsed tags are not HTML the
// policy knows and are dropped.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a renderer with GitHub-flavored Markdown and a UGC policy
// widened to the media elements the expanded shapes use.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	p := bluemonday.UGCPolicy()
	p.AllowURLSchemeWithCustomPolicy("data", allowDataURL)
	p.AllowElements("audio", "video", "source", "embed", "iframe")
	p.AllowAttrs("controls").OnElements("audio", "video")
	p.AllowAttrs("src", "type").OnElements("source", "embed")
	p.AllowAttrs("src").OnElements("iframe", "audio", "video")
	p.AllowAttrs("width", "height").OnElements("embed", "iframe", "video")
	p.AllowAttrs("download").OnElements("a")

	return &Renderer{md: md, policy: p}
}

// allowDataURL accepts well-formed data URLs. Their bytes are the document's
// own attachments.
func allowDataURL(u *url.URL) bool {
	head, _, ok := strings.Cut(u.Opaque, ",")
	return ok && !strings.ContainsAny(head, "<>\"'")
}

// Render converts src to sanitized HTML.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("preview: render: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
