package wiki

import "sort"

// Language describes one Wikipedia language edition.
type Language struct {
	Code      string // subdomain, e.g. "en"
	Name      string // English name
	LocalName string // name in the language itself
}

// Table derived from the Wikimedia sitematrix. Not exhaustive; unknown
// codes are still accepted by Normalize and resolved by the API itself.
var languages = []Language{
	{"ar", "Arabic", "العربية"},
	{"bg", "Bulgarian", "български"},
	{"bn", "Bangla", "বাংলা"},
	{"ca", "Catalan", "català"},
	{"cs", "Czech", "čeština"},
	{"da", "Danish", "dansk"},
	{"de", "German", "Deutsch"},
	{"el", "Greek", "Ελληνικά"},
	{"en", "English", "English"},
	{"eo", "Esperanto", "Esperanto"},
	{"es", "Spanish", "español"},
	{"et", "Estonian", "eesti"},
	{"eu", "Basque", "euskara"},
	{"fa", "Persian", "فارسی"},
	{"fi", "Finnish", "suomi"},
	{"fr", "French", "français"},
	{"he", "Hebrew", "עברית"},
	{"hi", "Hindi", "हिन्दी"},
	{"hr", "Croatian", "hrvatski"},
	{"hu", "Hungarian", "magyar"},
	{"hy", "Armenian", "հայերեն"},
	{"id", "Indonesian", "Bahasa Indonesia"},
	{"it", "Italian", "italiano"},
	{"ja", "Japanese", "日本語"},
	{"ka", "Georgian", "ქართული"},
	{"ko", "Korean", "한국어"},
	{"lt", "Lithuanian", "lietuvių"},
	{"lv", "Latvian", "latviešu"},
	{"ms", "Malay", "Bahasa Melayu"},
	{"nl", "Dutch", "Nederlands"},
	{"nn", "Norwegian Nynorsk", "norsk nynorsk"},
	{"no", "Norwegian", "norsk"},
	{"pl", "Polish", "polski"},
	{"pt", "Portuguese", "português"},
	{"ro", "Romanian", "română"},
	{"ru", "Russian", "русский"},
	{"sk", "Slovak", "slovenčina"},
	{"sl", "Slovenian", "slovenščina"},
	{"sr", "Serbian", "српски"},
	{"sv", "Swedish", "svenska"},
	{"th", "Thai", "ไทย"},
	{"tr", "Turkish", "Türkçe"},
	{"uk", "Ukrainian", "українська"},
	{"vi", "Vietnamese", "Tiếng Việt"},
	{"zh", "Chinese", "中文"},
}

var languageByCode = func() map[string]Language {
	m := make(map[string]Language, len(languages))
	for _, l := range languages {
		m[l.Code] = l
	}
	return m
}()

// Languages returns all known language editions sorted by code.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LookupLanguage returns the language edition for a code.
func LookupLanguage(code string) (Language, bool) {
	l, ok := languageByCode[code]
	return l, ok
}

// KnownLanguage reports whether code is in the table.
func KnownLanguage(code string) bool {
	_, ok := languageByCode[code]
	return ok
}
