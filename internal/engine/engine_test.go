package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mediafold/internal/apperr"
	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/models"
)

func zeros(n int) string { return strings.Repeat("0", n) }

func png(n int) string { return "data:image/png;base64," + zeros(n) }

func seqKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("K%d", n)
	}
}

func newEngine(t *testing.T, store mediaref.Store) *Engine {
	t.Helper()
	codec := mediaref.NewCodec(store, mediaref.DefaultLabels(), mediaref.WithKeyFunc(seqKeys()))
	return New(codec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// failingStore rejects every write with err.
type failingStore struct {
	*blobstore.Memory
	err error
}

func (f failingStore) Put(context.Context, string, models.MediaPayload) error { return f.err }

var ctx = context.Background()

func TestCollapseBelowThresholdIsNoop(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	for _, n := range []int{1, 50, 99} {
		in := "x ![a](" + png(n) + ") y"
		out, err := e.Collapse(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in, out, n)
	}
}

func TestCollapseExpandScenario(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	in := "A ![pic](" + png(120) + ") B"

	collapsed, err := e.Collapse(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, `A <image data-id="K1" data-display="...00000">pic</image> B`, collapsed)

	assert.Equal(t, in, e.Expand(ctx, collapsed))
}

func TestRoundTripLabels(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	tests := []struct {
		label, want string
	}{
		{"pic", "pic"},
		{"", ""},
		{"a[1", "a[1"},
		{"截图 2024", "截图 2024"},
		{"绘图", "绘图"},
		{"我的画板", "绘图"},
		{"流程绘图v2", "绘图"},
	}
	for _, tt := range tests {
		for _, n := range []int{100, 101, 4096} {
			in := "![" + tt.label + "](" + png(n) + ")"
			collapsed, err := e.Collapse(ctx, in)
			require.NoError(t, err)
			require.NotEqual(t, in, collapsed)
			assert.Equal(t, "!["+tt.want+"]("+png(n)+")", e.Expand(ctx, collapsed))
		}
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	doc := "# T\n\n![a](" + png(300) + ")\n\n<embed src=\"data:application/pdf;base64,JVBERi0\" type=\"application/pdf\" width=\"100%\" height=\"600px\" />\n"
	collapsed, err := e.Collapse(ctx, doc)
	require.NoError(t, err)

	once := e.Expand(ctx, collapsed)
	assert.Equal(t, once, e.Expand(ctx, once))
	assert.Equal(t, doc, once)

	plain := "no references at all ![x](https://example.com/a.png)"
	assert.Equal(t, plain, e.Expand(ctx, plain))
}

func TestExpandLeavesUnresolvedTag(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	in := `before <file data-id="missing">report.pdf</file> after`
	assert.Equal(t, in, e.Expand(ctx, in))
}

func TestExpandReadFailureLeavesTag(t *testing.T) {
	store := readFailStore{blobstore.NewMemory(0)}
	e := newEngine(t, store)
	in := `<image data-id="K9" data-display="...1">x</image>`
	assert.Equal(t, in, e.Expand(ctx, in))
}

type readFailStore struct{ *blobstore.Memory }

func (readFailStore) Get(context.Context, string) (models.MediaPayload, error) {
	return models.MediaPayload{}, errors.New("disk on fire")
}

func TestCollapseQuotaLeavesAttachmentInline(t *testing.T) {
	store := failingStore{blobstore.NewMemory(0), fmt.Errorf("full: %w", apperr.ErrQuotaExceeded)}
	e := newEngine(t, store)
	in := "intro\n<audio controls><source src=\"data:audio/mpeg;base64,SUQz\" type=\"audio/mpeg\">您的浏览器不支持音频播放。</audio>\noutro"

	out, err := e.Collapse(ctx, in)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, in, out)
}

func TestCollapseContinuesAfterFailure(t *testing.T) {
	// Room for the small drawing only.
	e := newEngine(t, blobstore.NewMemory(400))
	big := "![big](" + png(2000) + ")"
	small := "![绘图](" + png(150) + ")"
	in := big + "\n" + small

	out, err := e.Collapse(ctx, in)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.True(t, strings.HasPrefix(out, big+"\n"), "failed literal stays inline")
	assert.Contains(t, out, `<draw data-id="K2" data-display="...00000"></draw>`)
	assert.Equal(t, in, e.Expand(ctx, out))
}

func TestCollapseStoreWriteFailure(t *testing.T) {
	store := failingStore{blobstore.NewMemory(0), fmt.Errorf("io: %w", apperr.ErrStoreWrite)}
	e := newEngine(t, store)
	in := "![a](" + png(200) + ")"
	out, err := e.Collapse(ctx, in)
	require.ErrorIs(t, err, apperr.ErrStoreWrite)
	assert.NotErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, in, out)
}

func TestDownloadAnchorsAreNotCollapsed(t *testing.T) {
	store := blobstore.NewMemory(0)
	e := newEngine(t, store)
	require.NoError(t, store.Put(ctx, "Z", models.MediaPayload{
		Kind: models.KindDownload, DisplayName: "a.zip", MimeType: "application/zip", Data: "data:application/zip;base64,UEsDBA",
	}))

	expanded := e.Expand(ctx, `<file data-id="Z" data-display="...DBA">a.zip</file>`)
	assert.True(t, strings.HasPrefix(expanded, `<a href="data:application/zip;base64,UEsDBA" download="a.zip"`))

	again, err := e.Collapse(ctx, expanded)
	require.NoError(t, err)
	assert.Equal(t, expanded, again)
}

func TestExpandLegacyShapesWithoutStore(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	d := png(8)
	tests := []struct{ in, want string }{
		{`<draw data-url="` + d + `"></draw>`, "![绘图](" + d + ")"},
		{`<image data-url="` + d + `">cat</image>`, "![cat](" + d + ")"},
		{`<draw><!-- IMAGE_DATA_1:` + d + ` --></draw>`, "![绘图](" + d + ")"},
		{`<image>dog<!-- IMAGE_DATA_2:` + d + ` --></image>`, "![dog](" + d + ")"},
		{`![old](data:image/png;base64,...)<!-- FULL_DATA: ` + d + ` -->`, "![old](" + d + ")"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Expand(ctx, tt.in), tt.in)
	}
}

func TestExpandImgTagAndFileImage(t *testing.T) {
	store := blobstore.NewMemory(0)
	e := newEngine(t, store)
	d := png(20)
	require.NoError(t, store.Put(ctx, "I", models.MediaPayload{Kind: models.KindImage, DisplayName: "stored", Data: d}))

	assert.Equal(t, "![alt text]("+d+")", e.Expand(ctx, `<img data-id="I" data-display="...00000" alt="alt text" />`))
	assert.Equal(t, "![photo.png]("+d+")", e.Expand(ctx, `<file data-id="I" data-display="...00000">photo.png</file>`))
}

func TestLocate(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))
	tag := `<image data-id="A" data-display="...1">a</image>`
	lit := "![b](" + png(4) + ")"
	doc := tag + lit

	m, ok := e.Locate(doc, len(tag))
	require.True(t, ok)
	assert.True(t, m.Format.Collapsed(), "collapsed shapes win at a shared boundary")
	assert.Equal(t, models.Span{Start: 0, End: len(tag)}, m.Span)

	m, ok = e.Locate(doc, len(tag)+1)
	require.True(t, ok)
	assert.Equal(t, mediaref.FormatMarkdownImage, m.Format)
	assert.Equal(t, models.Span{Start: len(tag), End: len(doc)}, m.Span)

	for _, p := range []int{-1, len(doc) + 1} {
		_, ok := e.Locate(doc, p)
		assert.False(t, ok, p)
	}
	_, ok = e.Locate("just words", 2)
	assert.False(t, ok)
}

func TestToggleRoundTripIsByteIdentical(t *testing.T) {
	store := blobstore.NewMemory(0)
	e := newEngine(t, store)
	labels := mediaref.DefaultLabels()

	literals := []string{
		"![pic](" + png(120) + ")",
		"![](" + png(120) + ")",
		"![绘图](" + png(10) + ")",
		labels.Render(models.MediaPayload{Kind: models.KindAudio, MimeType: "audio/mpeg", Data: "data:audio/mpeg;base64,SUQz"}, ""),
		labels.Render(models.MediaPayload{Kind: models.KindVideo, MimeType: "video/mp4", Data: "data:video/mp4;base64,AAAA"}, ""),
		labels.Render(models.MediaPayload{Kind: models.KindPDF, Data: "data:application/pdf;base64,JVBE"}, ""),
		labels.Render(models.MediaPayload{Kind: models.KindHTML, Data: "data:text/html;base64,PGgxPg=="}, ""),
		labels.Render(models.MediaPayload{Kind: models.KindText, Data: "data:text/plain;base64,aGk="}, ""),
	}
	for _, lit := range literals {
		doc := "head\n" + lit + "\ntail"
		cursor := len("head\n") + 3

		collapsed, err := e.Toggle(ctx, doc, cursor)
		require.NoError(t, err)
		require.True(t, collapsed.Changed, lit)
		assert.Equal(t, ActionCollapse, collapsed.Action)
		assert.Equal(t, len("head\n"), collapsed.Cursor)
		assert.True(t, strings.HasPrefix(collapsed.Text, "head\n<"))
		assert.True(t, strings.HasSuffix(collapsed.Text, "\ntail"))

		expanded, err := e.Toggle(ctx, collapsed.Text, collapsed.Cursor)
		require.NoError(t, err)
		assert.Equal(t, ActionExpand, expanded.Action)
		assert.Equal(t, doc, expanded.Text, lit)
	}
}

func TestToggleNoops(t *testing.T) {
	e := newEngine(t, blobstore.NewMemory(0))

	doc := "plain text"
	res, err := e.Toggle(ctx, doc, 3)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, doc, res.Text)
	assert.Equal(t, 3, res.Cursor)

	missing := `<file data-id="missing">report.pdf</file>`
	res, err = e.Toggle(ctx, missing, 5)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, missing, res.Text)
}

func TestToggleQuotaLeavesText(t *testing.T) {
	store := failingStore{blobstore.NewMemory(0), fmt.Errorf("full: %w", apperr.ErrQuotaExceeded)}
	e := newEngine(t, store)
	doc := "![a](" + png(10) + ")"
	res, err := e.Toggle(ctx, doc, 1)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.False(t, res.Changed)
	assert.Equal(t, doc, res.Text)
}

func TestToggleTouchesOnlyTargetSpan(t *testing.T) {
	store := blobstore.NewMemory(0)
	e := newEngine(t, store)
	first := "![one](" + png(150) + ")"
	second := "![two](" + png(150) + ")"
	doc := first + " mid " + second

	res, err := e.Toggle(ctx, doc, len(first)+len(" mid ")+2)
	require.NoError(t, err)
	require.True(t, res.Changed)
	assert.True(t, strings.HasPrefix(res.Text, first+" mid <image "))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestUnresolvedListsKeysLeftAfterExpand(t *testing.T) {
	store := blobstore.NewMemory(0)
	e := newEngine(t, store)
	collapsed, err := e.Collapse(ctx, "![a]("+png(120)+") and ![b]("+png(130)+")")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "K2"))

	expanded := e.Expand(ctx, collapsed)
	assert.Equal(t, []string{"K2"}, e.Unresolved(expanded))
	assert.Empty(t, e.Unresolved(e.Expand(ctx, "![a]("+png(120)+")")))
	assert.Empty(t, e.Unresolved(`<image data-url="`+png(4)+`">legacy</image>`))
}
