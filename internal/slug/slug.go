// Package slug holds the pure string transforms used to turn registry labels
// into identifiers and display strings.
package slug

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SmileysCategory replaces any registry group whose name mentions smileys.
const SmileysCategory = "Emoji & People"

var (
	versionPrefix = regexp.MustCompile(`(?i)^e\d+(\.\d+)?[-\s]*`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^a-z0-9-]+`)
)

// StripVersionPrefix removes a leading emoji version marker such as "E1.0 "
// or "e13-" from a title.
func StripVersionPrefix(title string) string {
	return versionPrefix.ReplaceAllString(title, "")
}

// TitleToSlug maps a title to the URL-safe identifier used by the detail
// pages, e.g. "E1.0 Grinning Face" -> "grinning-face".
func TitleToSlug(title string) string {
	s := strings.ToLower(StripVersionPrefix(title))
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = disallowed.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}

// CategoryFor maps a registry group label to its display category
func CategoryFor(group string) string {
	if strings.Contains(strings.ToLower(group), "smileys") {
		return SmileysCategory
	}
	return group
}

// FormatSubCategory turns "face-smiling" into "Face Smiling". Only the first
// rune of each hyphen-delimited word is changed.
func FormatSubCategory(subgroup string) string {
	words := strings.Split(subgroup, "-")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
