package translator

import "sort"

// baseLocales is the normalized ISO 639-1 vocabulary shared by every
// provider. Providers whose own vocabulary differs override entries via
// their locale map; an absent override means the code passes through.
var baseLocales = []string{
	"ar", "bg", "cs", "da", "de", "el", "en", "es", "et", "fi",
	"fr", "he", "hi", "hu", "id", "it", "ja", "ko", "lt", "lv",
	"nl", "no", "pl", "pt", "ro", "ru", "sk", "sl", "sv", "th",
	"tr", "uk", "vi", "zh",
}

// languageLabels maps ISO 639-1 codes to English language names, used in
// prompts for the local model and in the languages listing endpoint.
var languageLabels = map[string]string{
	"ar": "Arabic",
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"et": "Estonian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// LanguageLabel returns the English name for a normalized locale, or the
// code itself when no label is known.
func LanguageLabel(locale string) string {
	if label, ok := languageLabels[locale]; ok {
		return label
	}
	return locale
}

// localeTable resolves a normalized code through a provider override map.
type localeTable struct {
	overrides map[string]string
	supported map[string]struct{}
}

func newLocaleTable(overrides map[string]string) localeTable {
	supported := make(map[string]struct{}, len(baseLocales))
	for _, code := range baseLocales {
		supported[code] = struct{}{}
	}
	return localeTable{overrides: overrides, supported: supported}
}

func (t localeTable) toProvider(locale string) (string, bool) {
	if _, ok := t.supported[locale]; !ok {
		return "", false
	}
	if mapped, ok := t.overrides[locale]; ok {
		return mapped, true
	}
	return locale, true
}

func (t localeTable) list() []string {
	out := make([]string, 0, len(t.supported))
	for code := range t.supported {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Microsoft's vocabulary diverges from bare ISO 639-1 for Chinese and
// Norwegian.
var microsoftLocaleOverrides = map[string]string{
	"zh": "zh-Hans",
	"no": "nb",
}

// Google accepts zh but translates into Simplified via zh-CN.
var googleLocaleOverrides = map[string]string{
	"zh": "zh-CN",
}

var yandexLocaleOverrides = map[string]string{}
