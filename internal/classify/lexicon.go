package classify

import "strings"

// The lexicons below are small, hardcoded and English-only. They are exported
// variables so embedders can extend them; matching is exact (whole word or
// whole phrase, case-insensitive) to avoid suppressing legitimate text that
// merely contains one of these words.

// GenericAltTerms are alt values that describe nothing about the image.
var GenericAltTerms = []string{
	"image", "photo", "picture", "icon", "img", "graphic", "logo", "photograph",
}

// VaguePhrases are link phrases that give no indication of destination.
var VaguePhrases = []string{
	"click here", "here", "read more", "learn more", "more", "link", "this",
	"click", "go", "continue", "details", "more info", "info",
}

// NonLabelableInputTypes are input kinds excluded from form-field
// remediation: they either have intrinsic labels or are invisible.
var NonLabelableInputTypes = []string{
	"hidden", "submit", "button", "reset", "image",
}

// IsGenericAlt reports whether alt text exactly matches a generic term.
func IsGenericAlt(alt string) bool {
	alt = strings.ToLower(strings.TrimSpace(alt))
	for _, term := range GenericAltTerms {
		if alt == term {
			return true
		}
	}
	return false
}

// IsVagueLinkText applies the vagueness heuristic: short text (at most three
// words) containing a vague phrase, or very short text (at most eight
// characters) containing no descriptive term.
func IsVagueLinkText(text string) bool {
	norm := normalizeLinkText(text)
	if norm == "" {
		return false
	}
	words := strings.Fields(norm)
	if len(words) <= 3 && containsVaguePhrase(norm) {
		return true
	}
	if len(norm) <= 8 && !hasDescriptiveTerm(words) {
		return true
	}
	return false
}

func isNonLabelable(inputType string) bool {
	inputType = strings.ToLower(strings.TrimSpace(inputType))
	for _, t := range NonLabelableInputTypes {
		if inputType == t {
			return true
		}
	}
	return false
}

// normalizeLinkText lowercases and strips punctuation so "Read more…" and
// "read more" match the same phrases.
func normalizeLinkText(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsVaguePhrase(norm string) bool {
	padded := " " + norm + " "
	for _, phrase := range VaguePhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func hasDescriptiveTerm(words []string) bool {
	for _, w := range words {
		if len(w) < 5 {
			continue
		}
		vague := false
		for _, phrase := range VaguePhrases {
			if w == phrase {
				vague = true
				break
			}
		}
		if !vague {
			return true
		}
	}
	return false
}
