// Package engine moves media between compact references and inline literals:
// whole-document expansion and collapse, and the single-reference toggle.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/metrics"
	"github.com/starford/mediafold/internal/models"
)

// DefaultThreshold is the minimum base64 payload length a Markdown image
// needs before Collapse moves it into the store.
const DefaultThreshold = 100

// Engine is safe for concurrent use when its store is.
type Engine struct {
	codec     *mediaref.Codec
	collapsed *mediaref.Scanner
	expanded  *mediaref.Scanner // Collapse: thresholded
	located   *mediaref.Scanner // Locate: any inline literal
	threshold int
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(n int) Option {
	return func(e *Engine) { e.threshold = n }
}

// New returns an engine encoding through codec.
func New(codec *mediaref.Codec, opts ...Option) *Engine {
	e := &Engine{
		codec:     codec,
		threshold: DefaultThreshold,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.collapsed = mediaref.CollapsedScanner()
	e.expanded = mediaref.ExpandedScanner(mediaref.ExpandedOptions{MinPayload: e.threshold, RequireBase64: true})
	e.located = mediaref.ExpandedScanner(mediaref.ExpandedOptions{})
	return e
}

// Codec returns the codec the engine encodes with.
func (e *Engine) Codec() *mediaref.Codec { return e.codec }

// Expand replaces every collapsed reference whose payload resolves with its
// expanded form. References that do not resolve stay as they are.
func (e *Engine) Expand(ctx context.Context, text string) string {
	return e.collapsed.Rewrite(text, func(m mediaref.Match, _ string) (string, bool) {
		return e.expandOne(ctx, m)
	})
}

// Unresolved returns the keys of the collapsed references in text. Applied
// to the output of Expand these are the references whose payload could not
// be read.
func (e *Engine) Unresolved(text string) []string {
	var keys []string
	for _, m := range e.collapsed.Scan(text) {
		if m.Ref.Key != "" {
			keys = append(keys, m.Ref.Key)
		}
	}
	return keys
}

func (e *Engine) expandOne(ctx context.Context, m mediaref.Match) (string, bool) {
	p, err := e.codec.Resolve(ctx, m.Ref)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		e.log.Debug("reference unresolved", slog.String("key", m.Ref.Key))
		metrics.ObserveReference(metrics.OpExpand, metrics.OutcomeUnresolved)
		return "", false
	case err != nil:
		e.log.Warn("reference read failed",
			slog.String("key", m.Ref.Key),
			slog.String("error", err.Error()))
		metrics.ObserveReference(metrics.OpExpand, metrics.OutcomeError)
		return "", false
	}
	metrics.ObserveReference(metrics.OpExpand, metrics.OutcomeOK)
	metrics.ObservePayload(metrics.OpExpand, len(p.Data))
	e.log.Debug("reference expanded",
		slog.String("key", m.Ref.Key),
		slog.String("format", m.Format.String()))
	return e.codec.Expand(m.Ref, p), true
}

// Collapse moves every inline literal into the store and replaces it with a
// reference. A literal whose store write fails stays inline; the pass goes
// on and the failures are returned joined, so the text is always usable.
func (e *Engine) Collapse(ctx context.Context, text string) (string, error) {
	var errs []error
	out := e.expanded.Rewrite(text, func(m mediaref.Match, _ string) (string, bool) {
		repl, err := e.collapseOne(ctx, m, metrics.OpCollapse)
		if err != nil {
			errs = append(errs, err)
			return "", false
		}
		return repl, true
	})
	return out, errors.Join(errs...)
}

func (e *Engine) collapseOne(ctx context.Context, m mediaref.Match, op string) (string, error) {
	p := e.codec.Payload(m)
	ref, err := e.codec.Encode(ctx, p)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, apperr.ErrQuotaExceeded) {
			outcome = metrics.OutcomeQuota
		}
		metrics.ObserveReference(op, outcome)
		e.log.Warn("reference store failed",
			slog.String("format", m.Format.String()),
			slog.String("error", err.Error()))
		return "", err
	}
	metrics.ObserveReference(op, metrics.OutcomeOK)
	metrics.ObservePayload(op, len(p.Data))
	e.log.Debug("reference collapsed",
		slog.String("key", ref.Key),
		slog.String("format", m.Format.String()))
	return e.codec.TagText(ref), nil
}

// Locate finds the reference under byte offset p. Collapsed shapes are
// searched first; inline literals only when no collapsed shape contains p.
func (e *Engine) Locate(text string, p int) (mediaref.Match, bool) {
	if m, ok := e.collapsed.At(text, p); ok {
		return m, true
	}
	return e.located.At(text, p)
}

// Action names what a toggle did.
type Action string

const (
	ActionNone     Action = "none"
	ActionExpand   Action = "expand"
	ActionCollapse Action = "collapse"
)

// Result is the outcome of a toggle. Cursor is a byte offset into Text.
type Result struct {
	Text    string      `json:"text"`
	Cursor  int         `json:"cursor"`
	Action  Action      `json:"action"`
	Span    models.Span `json:"span"`
	Format  string      `json:"format,omitempty"`
	Changed bool        `json:"changed"`
}

// Toggle flips the reference under cursor. Only the matched span is
// replaced and the cursor moves to the start of the replacement. A cursor
// outside every reference, or a reference that does not resolve, is a no-op.
// A store write failure leaves the text unchanged and is returned.
func (e *Engine) Toggle(ctx context.Context, text string, cursor int) (Result, error) {
	noop := Result{Text: text, Cursor: cursor, Action: ActionNone}

	m, ok := e.Locate(text, cursor)
	if !ok {
		return noop, nil
	}
	noop.Span = m.Span
	noop.Format = m.Format.String()

	var (
		repl   string
		action Action
	)
	if m.Format.Collapsed() {
		r, ok := e.expandOne(ctx, m)
		if !ok {
			return noop, nil
		}
		repl, action = r, ActionExpand
	} else {
		r, err := e.collapseOne(ctx, m, metrics.OpToggle)
		if err != nil {
			return noop, err
		}
		repl, action = r, ActionCollapse
	}

	return Result{
		Text:    text[:m.Span.Start] + repl + text[m.Span.End:],
		Cursor:  m.Span.Start,
		Action:  action,
		Span:    models.Span{Start: m.Span.Start, End: m.Span.Start + len(repl)},
		Format:  m.Format.String(),
		Changed: true,
	}, nil
}
