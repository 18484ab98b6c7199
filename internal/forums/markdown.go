package forums

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
)

const markdownExtensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_TABLES |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_STRIKETHROUGH |
	blackfriday.EXTENSION_HARD_LINE_BREAK

// Renderer turns member-authored markdown into sanitized HTML.
type Renderer struct {
	html   blackfriday.Renderer
	policy *bluemonday.Policy
}

// NewRenderer builds a Renderer with the user generated content policy.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return &Renderer{
		html:   blackfriday.HtmlRenderer(blackfriday.HTML_SAFELINK|blackfriday.HTML_NOFOLLOW_LINKS, "", ""),
		policy: policy,
	}
}

// Render converts markdown to HTML. Raw HTML in the source is sanitized
// after rendering, never trusted.
func (r *Renderer) Render(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	out := blackfriday.Markdown([]byte(markdown), r.html, markdownExtensions)
	return string(r.policy.SanitizeBytes(out))
}
