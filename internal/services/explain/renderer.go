package explain

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"EventEdge/internal/domain/models"
)

var supported = []language.Tag{language.English, language.Vietnamese}

// Renderer turns note codes into localized text. Safe for concurrent use.
type Renderer struct {
	cat     *catalog.Builder
	matcher language.Matcher
}

// NewRenderer builds the message catalog for all supported languages.
func NewRenderer() (*Renderer, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for code, m := range messages {
		if err := b.SetString(language.English, string(code), m.en); err != nil {
			return nil, fmt.Errorf("catalog en %s: %w", code, err)
		}
		if err := b.SetString(language.Vietnamese, string(code), m.vi); err != nil {
			return nil, fmt.Errorf("catalog vi %s: %w", code, err)
		}
	}
	return &Renderer{cat: b, matcher: language.NewMatcher(supported)}, nil
}

// MatchLanguage picks the best supported language from query values or
// Accept-Language headers. Unknown or empty input yields English.
func (r *Renderer) MatchLanguage(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return language.English
	}
	_, idx, conf := r.matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Render formats notes in order. Unknown codes, or notes missing a
// parameter, render as the raw code.
func (r *Renderer) Render(notes []models.Note, lang string) []string {
	p := message.NewPrinter(r.MatchLanguage(lang), message.Catalog(r.cat))
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, r.render(p, n))
	}
	return out
}

func (r *Renderer) render(p *message.Printer, n models.Note) string {
	m, ok := messages[n.Code]
	if !ok {
		return string(n.Code)
	}
	args := make([]any, 0, len(m.params))
	for _, k := range m.params {
		v, ok := n.Params[k]
		if !ok {
			return string(n.Code)
		}
		args = append(args, v)
	}
	return p.Sprintf(string(n.Code), args...)
}
