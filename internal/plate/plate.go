// Package plate normalizes and validates raw OCR output into canonical
// plate identifiers.
package plate

// Length bounds for a usable plate identifier.
const (
	MinNormalizedLength = 3
	MinValidLength      = 2
	MaxValidLength      = 15
)

// Normalize strips everything outside the uppercase alphanumeric set and
// returns the canonical plate text. Results shorter than
// MinNormalizedLength are unusable and collapse to the empty string.
//
// OCR confusion pairs (O/0, I/1, S/5, B/8) are left as read: substituting
// them is lossy without knowing the expected character position, so no
// correction table is applied.
func Normalize(raw string) string {
	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			buf = append(buf, c)
		case c >= 'a' && c <= 'z':
			buf = append(buf, c-'a'+'A')
		}
	}
	if len(buf) < MinNormalizedLength {
		return ""
	}
	return string(buf)
}

// IsValid reports whether text is eligible for session logic: non-empty,
// length within [MinValidLength, MaxValidLength], and containing at least
// one alphanumeric character.
func IsValid(text string) bool {
	if len(text) < MinValidLength || len(text) > MaxValidLength {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}
