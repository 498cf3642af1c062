// Package sanitize scrubs chapter story bodies before they are persisted.
// Bodies arrive as author-supplied HTML and are rendered verbatim by the
// portal, so everything outside the allow-list is stripped here, once, at
// write time.
package sanitize

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// StoryPolicy sanitizes chapter bodies with an allow-list policy.
type StoryPolicy struct {
	policy *bluemonday.Policy
}

// NewStoryPolicy builds the chapter-body policy:
//   - formatting tags: p, br, hr, headings, lists, blockquote, pre, code,
//     strong, em, b, i, s, u
//   - links keep href only, open in a new tab with noreferrer
//   - images allow https sources only
//
// script, iframe, style and all on* attributes fall outside the allow-list
// and are removed.
func NewStoryPolicy() *StoryPolicy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "s", "u",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool {
		return true
	})

	return &StoryPolicy{policy: p}
}

// Sanitize returns the safe subset of rawHTML. Empty input yields empty
// output; the function is idempotent.
func (s *StoryPolicy) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
