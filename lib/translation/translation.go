// Package translation wraps gotext so notification texts can be localized
// without every caller touching the gettext state.
package translation

import (
	"github.com/leonelquinteros/gotext"
)

// Configure points gotext at the locales directory. Call once at startup;
// an empty language picks up the detected locale via GetLanguage, which
// itself falls back to English msgids.
func Configure(localesDir, lang string) {
	if lang == "" {
		lang = GetLanguage()
	}
	gotext.Configure(localesDir, lang, "default")
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
