package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKeepsInlineMedia(t *testing.T) {
	r := New()
	src := "# Title\n\n" +
		"![pic](data:image/png;base64,iVBORw0KGgo=)\n\n" +
		"<audio controls><source src=\"data:audio/mpeg;base64,SUQz\" type=\"audio/mpeg\">fallback</audio>\n\n" +
		"<embed src=\"data:application/pdf;base64,JVBE\" type=\"application/pdf\" width=\"100%\" height=\"600px\" />\n"

	out, err := r.Render(src)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.Contains(t, out, "<audio")
	assert.Contains(t, out, `src="data:audio/mpeg;base64,SUQz"`)
	assert.Contains(t, out, "<embed")
}

func TestRenderStripsScripts(t *testing.T) {
	r := New()
	out, err := r.Render("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}

func TestRenderKeepsDownloadAnchor(t *testing.T) {
	r := New()
	out, err := r.Render(`<a href="data:application/zip;base64,UEsDBA" download="a.zip">a.zip</a>`)
	require.NoError(t, err)
	assert.Contains(t, out, `href="data:application/zip;base64,UEsDBA"`)
	assert.Contains(t, out, `download="a.zip"`)
}
