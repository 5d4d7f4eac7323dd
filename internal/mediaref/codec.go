// Package mediaref encodes media payloads as compact in-text references and
// recognizes both reference and inline media shapes in Markdown documents.
package mediaref

import (
	"context"
	"fmt"
	"html"

	"github.com/starford/mediafold/internal/models"
)

// Store is the part of a blob store the codec depends on.
type Store interface {
	Put(ctx context.Context, key string, p models.MediaPayload) error
	Get(ctx context.Context, key string) (models.MediaPayload, error)
}

// Codec builds collapsed tags from payloads and resolves them back.
type Codec struct {
	store     Store
	labels    Labels
	newKey    func() string
	collapsed *Scanner
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithKeyFunc overrides the key generator.
func WithKeyFunc(fn func() string) CodecOption {
	return func(c *Codec) { c.newKey = fn }
}

// NewCodec returns a codec storing payloads in store.
func NewCodec(store Store, labels Labels, opts ...CodecOption) *Codec {
	c := &Codec{
		store:     store,
		labels:    labels.WithDefaults(),
		newKey:    NewKey,
		collapsed: CollapsedScanner(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Labels returns the labels the codec writes.
func (c *Codec) Labels() Labels { return c.labels }

// Classify applies the drawing naming heuristic to an image payload. Other
// kinds pass through unchanged.
func (c *Codec) Classify(p models.MediaPayload) models.MediaPayload {
	if p.Kind == models.KindImage && c.labels.IsDrawing(p.DisplayName) {
		p.Kind = models.KindDrawing
	}
	return p
}

// Encode stores p under a fresh key and returns the reference to insert.
// When the store rejects the payload the error is returned as is and the
// reference must not be used. An image keeps an empty name so that it
// expands back to the label it was written with.
func (c *Codec) Encode(ctx context.Context, p models.MediaPayload) (models.Reference, error) {
	if !p.Kind.Valid() {
		return models.Reference{}, fmt.Errorf("mediaref: unknown media kind %q", p.Kind)
	}
	if p.DisplayName == "" && p.Kind != models.KindImage {
		p.DisplayName = c.labels.DefaultName(p.Kind)
	}
	key := c.newKey()
	if err := ValidateKey(key); err != nil {
		return models.Reference{}, err
	}
	if err := c.store.Put(ctx, key, p); err != nil {
		return models.Reference{}, err
	}

	ref := models.Reference{
		Kind:        models.TagKindFor(p.Kind),
		Key:         key,
		DisplayHint: p.DisplayHint(),
		Label:       p.DisplayName,
	}
	if ref.Kind == models.TagDraw {
		ref.Label = ""
	}
	return ref, nil
}

// TagText renders ref as a collapsed tag.
func (c *Codec) TagText(ref models.Reference) string {
	return fmt.Sprintf(`<%s data-id="%s" data-display="...%s">%s</%s>`,
		ref.Kind, html.EscapeString(ref.Key), html.EscapeString(ref.DisplayHint),
		html.EscapeString(ref.Label), ref.Kind)
}

// Decode parses a single collapsed tag, current or legacy.
func (c *Codec) Decode(tag string) (models.Reference, bool) {
	m, ok := c.collapsed.Exact(tag)
	if !ok {
		return models.Reference{}, false
	}
	return m.Ref, true
}

// Resolve returns the payload behind ref. Legacy references carry their
// payload inline and never touch the store; otherwise a missing key yields
// apperr.ErrNotFound from the store.
func (c *Codec) Resolve(ctx context.Context, ref models.Reference) (models.MediaPayload, error) {
	if ref.Key != "" {
		p, err := c.store.Get(ctx, ref.Key)
		if err == nil || ref.Inline == "" {
			return p, err
		}
	}
	if ref.Inline == "" {
		return models.MediaPayload{}, fmt.Errorf("mediaref: reference has neither key nor inline data")
	}
	return c.inlinePayload(ref), nil
}

func (c *Codec) inlinePayload(ref models.Reference) models.MediaPayload {
	p := models.MediaPayload{DisplayName: ref.Label, MimeType: mimeOf(ref.Inline), Data: ref.Inline}
	switch ref.Kind {
	case models.TagDraw:
		p.Kind = models.KindDrawing
	case models.TagImage:
		p.Kind = models.KindImage
	default:
		p.Kind = KindForFile(ref.Label, p.MimeType)
	}
	return p
}

// Expand renders the expanded form for ref backed by p. Draw tags always
// become drawings and image tags images, whatever the stored kind says;
// file tags follow the stored kind. An image tag's label is used verbatim,
// empty included; a file tag without one falls back to the stored name.
func (c *Codec) Expand(ref models.Reference, p models.MediaPayload) string {
	label := ref.Label
	switch ref.Kind {
	case models.TagDraw:
		p.Kind = models.KindDrawing
	case models.TagImage:
		p.Kind = models.KindImage
	default:
		if label == "" {
			label = p.DisplayName
		}
		if !p.Kind.Valid() {
			p.Kind = models.KindDownload
		}
	}
	return c.labels.Render(p, label)
}

// Payload rebuilds the payload an inline literal carries, naming it the way
// a fresh collapse would.
func (c *Codec) Payload(m Match) models.MediaPayload {
	p := m.Payload
	switch m.Format {
	case FormatMarkdownImage:
		p.DisplayName = m.Ref.Label
		return c.Classify(p)
	default:
		p.DisplayName = c.labels.DefaultName(p.Kind)
	}
	return p
}
