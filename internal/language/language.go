package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Default is the language used when a request carries none or an unsupported one.
const Default = "en"

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2
	display string   // English display name
	native  string   // Endonym shown in the app
	words   []string // Full word forms (e.g. "kannada")
}

var languages = []entry{
	{"en", "eng", "English", "English", []string{"english"}},
	{"kn", "kan", "Kannada", "ಕನ್ನಡ", []string{"kannada"}},
	{"hi", "hin", "Hindi", "हिंदी", []string{"hindi"}},
	{"gu", "guj", "Gujarati", "ગુજરાતી", []string{"gujarati"}},
	{"ta", "tam", "Tamil", "தமிழ்", []string{"tamil"}},
	{"bn", "ben", "Bangla", "বাংলা", []string{"bangla", "bengali"}},
	{"ml", "mal", "Malayalam", "മലയാളം", []string{"malayalam"}},
	{"or", "ori", "Odia", "ଓଡ଼ିଆ", []string{"odia", "oriya"}},
	{"mr", "mar", "Marathi", "मराठी", []string{"marathi"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
	matcher xlanguage.Matcher
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	tags := make([]xlanguage.Tag, 0, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		for _, w := range e.words {
			byWord[w] = e
		}
		tags = append(tags, xlanguage.Make(e.code2))
	}
	matcher = xlanguage.NewMatcher(tags)
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Canonical returns the supported two-letter code closest to code. Regional
// tags such as "hi-IN" or "kn_IN" resolve to their base language; anything
// unrecognized resolves to Default.
func Canonical(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return Default
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return Default
	}
	_, index, confidence := matcher.Match(tag)
	if confidence < xlanguage.High {
		return Default
	}
	return languages[index].code2
}

// Supported reports whether code names one of the app's languages.
func Supported(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if lookup(code) != nil {
		return true
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return false
	}
	_, _, confidence := matcher.Match(tag)
	return confidence >= xlanguage.High
}

// ToISO3 converts a recognized code to ISO 639-2. Returns "und" otherwise.
func ToISO3(code string) string {
	if e := lookup(Canonical(code)); e != nil && Supported(code) {
		return e.code3
	}
	return "und"
}

// DisplayName returns the English name for code, "Unknown" for empty input,
// or the uppercased input when unrecognized.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if !Supported(code) {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	return lookup(Canonical(code)).display
}

// NativeName returns the endonym for a supported code.
func NativeName(code string) string {
	if !Supported(code) {
		return ""
	}
	return lookup(Canonical(code)).native
}

// Codes returns every supported two-letter code in display order.
func Codes() []string {
	out := make([]string, 0, len(languages))
	for _, e := range languages {
		out = append(out, e.code2)
	}
	return out
}
