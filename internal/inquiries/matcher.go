package inquiries

import (
	"regexp"
	"strings"
	"unicode"

	"ngo-inquiry-tracker/internal/dip"
)

// DefaultKeywords select inquiries that concern NGOs and civil society.
var DefaultKeywords = []string{
	"NGO",
	"Nichtregierungsorganisation",
	"Zivilgesellschaft",
	"zivilgesellschaftlich",
	"gemeinnützig",
	"Gemeinnützigkeit",
	"Stiftung",
	"Verein",
	"Demokratie leben",
}

// Matcher decides whether a proceeding is NGO related.
type Matcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewMatcher compiles keywords. All-caps acronyms such as "NGO" match as
// whole words (plural "s" allowed); everything else matches as a
// case-insensitive substring, which catches German compounds.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		expr := `(?i)` + regexp.QuoteMeta(k)
		if isAcronym(k) {
			expr = `\b` + regexp.QuoteMeta(k) + `s?\b`
		}
		m.keywords = append(m.keywords, k)
		m.patterns = append(m.patterns, regexp.MustCompile(expr))
	}
	return m
}

// Match returns the keywords found in the proceeding's title, abstract,
// subject areas and descriptors.
func (m *Matcher) Match(v dip.Vorgang) []string {
	fields := make([]string, 0, 2+len(v.Sachgebiet)+len(v.Deskriptor))
	fields = append(fields, v.Titel, v.Abstract)
	fields = append(fields, v.Sachgebiet...)
	for _, d := range v.Deskriptor {
		fields = append(fields, d.Name)
	}
	text := strings.Join(fields, "\n")

	var found []string
	for i, p := range m.patterns {
		if p.MatchString(text) {
			found = append(found, m.keywords[i])
		}
	}
	return found
}

func isAcronym(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
