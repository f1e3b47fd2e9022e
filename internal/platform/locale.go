package platform

import (
	"strings"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"
)

// Language settings
const (
	DefaultLanguage = "en"
	SystemLanguage  = "system"
)

// CurrentLanguage returns the two-letter code of the user's locale
func CurrentLanguage() string {
	tag, err := locale.GetLocale()
	if err != nil {
		return DefaultLanguage
	}
	return LanguageCode(tag)
}

// ResolveLanguage turns a configured language into a two-letter code.
// "system" and the empty string mean the user's locale.
func ResolveLanguage(setting string) string {
	setting = strings.TrimSpace(setting)
	if setting == "" || strings.EqualFold(setting, SystemLanguage) {
		return CurrentLanguage()
	}
	return LanguageCode(setting)
}

// LanguageCode extracts the base language of a locale name such as
// "de_DE.UTF-8" or "pt-BR"
func LanguageCode(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, ".@"); i >= 0 {
		tag = tag[:i]
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	if tag == "" {
		return DefaultLanguage
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return DefaultLanguage
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return DefaultLanguage
	}
	return base.String()
}
