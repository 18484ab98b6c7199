package forums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSanitizes(t *testing.T) {
	r := NewRenderer()

	out := r.Render("# Zomi\n\n<script>alert(1)</script>\n\n[link](javascript:alert(1))")
	assert.Contains(t, out, "<h1>Zomi</h1>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")

	out = r.Render("see https://example.com")
	assert.Contains(t, out, `rel="nofollow"`)

	assert.Empty(t, r.Render("   "))
}
