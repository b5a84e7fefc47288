package sanitize

import (
	"github.com/microcosm-cc/bluemonday"

	"rehearsalplanner/internal/domain"
)

type htmlSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer returns a sanitizer with the fixed allow-list used
// for rehearsal descriptions: basic formatting, lists, and links.
func NewDescriptionSanitizer() domain.DescriptionSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ul", "ol", "li")
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	return &htmlSanitizer{policy: p}
}

func (s *htmlSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
