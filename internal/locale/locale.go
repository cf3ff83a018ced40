// Package locale maps provider locale tags to the languages farmline
// speaks.
//
// Telephony providers report the recognition locale as a BCP-47 tag
// ("hi-IN", "en-US"). Prompts and sessions use the display name
// ("Hindi"), while speech synthesis selects voices by ISO-639-1 code.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported conversation language.
type Language struct {
	Code string // ISO-639-1, e.g. "hi"
	Name string // English display name, e.g. "Hindi"
}

// English is the fallback language.
var English = Language{Code: "en", Name: "English"}

var supported = []Language{
	English,
	{Code: "hi", Name: "Hindi"},
	{Code: "bn", Name: "Bengali"},
	{Code: "te", Name: "Telugu"},
	{Code: "mr", Name: "Marathi"},
	{Code: "ta", Name: "Tamil"},
	{Code: "gu", Name: "Gujarati"},
	{Code: "kn", Name: "Kannada"},
	{Code: "ml", Name: "Malayalam"},
	{Code: "pa", Name: "Punjabi"},
	{Code: "or", Name: "Odia"},
	{Code: "ur", Name: "Urdu"},
	{Code: "as", Name: "Assamese"},
}

var (
	byCode = make(map[string]Language, len(supported))
	byName = make(map[string]Language, len(supported))
)

func init() {
	for _, l := range supported {
		byCode[l.Code] = l
		byName[strings.ToLower(l.Name)] = l
	}
}

// Resolve extracts the primary language subtag from tag and returns the
// matching supported language. It returns false if tag is empty,
// unparseable, or names an unsupported language.
func Resolve(tag string) (Language, bool) {
	code := primarySubtag(tag)
	if code == "" {
		return Language{}, false
	}
	l, ok := byCode[code]
	return l, ok
}

// ResolveOr is Resolve with a fallback display name. The fallback is looked
// up by name; an unknown fallback name is returned as-is with no code.
func ResolveOr(tag, fallback string) Language {
	if l, ok := Resolve(tag); ok {
		return l
	}
	if l, ok := ByName(fallback); ok {
		return l
	}
	if fallback == "" {
		return English
	}
	return Language{Name: fallback}
}

// ByName looks up a supported language by display name, case-insensitively.
func ByName(name string) (Language, bool) {
	l, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// CodeOf returns the ISO-639-1 code for a display name, or "en".
func CodeOf(name string) string {
	if l, ok := ByName(name); ok {
		return l.Code
	}
	return English.Code
}

func primarySubtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	// Base infers a language from the region when the primary subtag is
	// "und"; only an explicit subtag counts.
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf == language.Exact {
			return base.String()
		}
	}
	// Providers occasionally send non-canonical tags such as "hi_in".
	primary, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
	return strings.ToLower(primary)
}
