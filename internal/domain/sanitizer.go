package domain

// DescriptionSanitizer strips unsafe markup from free-form rich-text
// descriptions before persistence. Invoked once per create/update with a
// fixed allow-list of tags and attributes.
type DescriptionSanitizer interface {
	Sanitize(html string) string
}
