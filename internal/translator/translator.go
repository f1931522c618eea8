// package translator defines the translation provider interface and its
// OpenAI-compatible implementation.
package translator

import (
	"context"
	"regexp"
)

// Item is one leaf to translate, identified by its dotted path.
type Item struct {
	Path string
	Text string
}

// Request is a batch of leaves sharing one language pair and optional
// free-text context.
type Request struct {
	SourceLang string
	TargetLang string
	Context    string
	Items      []Item
}

// Translator translates a batch of items, returning one translation per item
// in the same order.
type Translator interface {
	Translate(ctx context.Context, req Request) ([]string, error)
	Name() string
}

var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\{[^}]*\}\}`), // {{name}}
	regexp.MustCompile(`\{[^{}]*\}`),    // {name}, {0}
	regexp.MustCompile(`%[sdvf%]`),      // %s, %d, %v, %f, %%
	regexp.MustCompile(`%\d+\$[sd]`),    // %1$s
	regexp.MustCompile(`<[^<>]+>`),      // HTML tags
	regexp.MustCompile(`\s+`),
}

// PlaceholderOnly reports whether text consists entirely of interpolation
// placeholders, markup, and whitespace. Such leaves are copied to the result
// unchanged instead of being sent to the provider.
func PlaceholderOnly(text string) bool {
	if text == "" {
		return true
	}
	stripped := text
	for _, p := range placeholderPatterns {
		stripped = p.ReplaceAllString(stripped, "")
	}
	return stripped == ""
}
