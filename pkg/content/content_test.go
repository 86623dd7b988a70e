package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	assert.ElementsMatch(t, []string{"about", "resources"}, Pages())

	r := NewRenderer()
	for _, name := range Pages() {
		html, err := r.Page(name)
		require.NoError(t, err, name)
		assert.Contains(t, string(html), "<h1>", name)
	}
}

func TestPageNotFound(t *testing.T) {
	r := NewRenderer()
	for _, name := range []string{"", "missing", "../content", "about.md"} {
		_, err := r.Page(name)
		assert.ErrorIs(t, err, ErrPageNotFound, name)
	}
}

func TestRenderSanitizes(t *testing.T) {
	r := NewRenderer()

	html, err := r.Render("**bold** <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestRenderLinks(t *testing.T) {
	r := NewRenderer()

	html, err := r.Render("[ASHA](https://www.asha.org/)")
	require.NoError(t, err)
	assert.Contains(t, string(html), `href="https://www.asha.org/"`)
	assert.Contains(t, string(html), "nofollow")
}
