package community

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

func canonical(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: language %q: %v", httpx.ErrValidation, code, err)
	}
	return tag.String(), nil
}

// Matcher picks the best active language for an Accept-Language header.
type Matcher struct {
	codes    []string
	matcher  language.Matcher
	fallback string
}

// NewMatcher builds a matcher over the active languages. The default
// language is preferred when nothing matches.
func NewMatcher(langs []Language) *Matcher {
	var (
		fallback string
		codes    []string
	)
	for _, l := range langs {
		if !l.IsActive {
			continue
		}
		if l.IsDefault {
			fallback = l.Code
		}
	}
	if fallback != "" {
		codes = append(codes, fallback)
	}
	for _, l := range langs {
		if l.IsActive && l.Code != fallback {
			codes = append(codes, l.Code)
		}
	}
	tags := make([]language.Tag, 0, len(codes))
	for _, c := range codes {
		tags = append(tags, language.Make(c))
	}
	if fallback == "" && len(codes) > 0 {
		fallback = codes[0]
	}
	return &Matcher{codes: codes, matcher: language.NewMatcher(tags), fallback: fallback}
}

// Match returns the code of the best supported language for header.
func (m *Matcher) Match(header string) string {
	if len(m.codes) == 0 {
		return ""
	}
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return m.fallback
	}
	_, index, confidence := m.matcher.Match(prefs...)
	if confidence == language.No {
		return m.fallback
	}
	return m.codes[index]
}
