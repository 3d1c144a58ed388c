// Package i18n resolves user-visible message keys to localized text.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

// Message keys shared with the error taxonomy in domain.ErrorKey.
const (
	KeyImageToAdd       = "image-to-add"
	KeyBadImage         = "bad-image"
	KeyAlreadyHas       = "already-has"
	KeySuccessToAdd     = "success-to-add"
	KeyTextOnly         = "text-only"
	KeyNonExist         = "non-exist"
	KeyDelSuccess       = "del-success"
	KeyHasNoImage       = "has-no-image"
	KeyFetchFailed      = "fetch-failed"
	KeyStoreUnavailable = "store-unavailable"
	KeyInvalidInput     = "invalid-input"
	KeyInternalError    = "internal-error"
	KeyImportRunning    = "import-running"
)

// Localizer picks a catalog from an Accept-Language header.
type Localizer struct {
	tags     []language.Tag
	catalogs []map[string]string
	matcher  language.Matcher
	fallback int
}

// New returns a Localizer for the bundled catalogs. defaultLocale is used
// when the request names no supported language; unknown values fall back
// to English.
func New(defaultLocale string) *Localizer {
	l := &Localizer{}
	for _, c := range bundled {
		l.tags = append(l.tags, c.tag)
		l.catalogs = append(l.catalogs, c.messages)
	}
	l.matcher = language.NewMatcher(l.tags)

	if tag, err := language.Parse(defaultLocale); err == nil {
		_, idx, conf := l.matcher.Match(tag)
		if conf != language.No {
			l.fallback = idx
		}
	}
	return l
}

// Locale returns the catalog tag selected for acceptLanguage.
func (l *Localizer) Locale(acceptLanguage string) language.Tag {
	return l.tags[l.index(acceptLanguage)]
}

func (l *Localizer) index(acceptLanguage string) int {
	if acceptLanguage == "" {
		return l.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.fallback
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return l.fallback
	}
	return idx
}

// Text returns the message for key, formatted with args. Missing keys fall
// back to the English catalog, then to the key itself.
func (l *Localizer) Text(acceptLanguage, key string, args ...interface{}) string {
	msg, ok := l.catalogs[l.index(acceptLanguage)][key]
	if !ok {
		msg, ok = l.catalogs[0][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
