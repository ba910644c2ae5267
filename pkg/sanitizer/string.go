package sanitizer

import (
	"strings"
	"unicode"

	"bureau/pkg/model"
)

// TrimAndNormalize trims s and collapses inner whitespace runs to one space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}
	return result.String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Contact returns a normalized copy of c. phoneOK is false when a phone was
// supplied but could not be parsed; the original phone is kept so the
// validator can report it.
func Contact(c model.ClientContact, region string) (out model.ClientContact, phoneOK bool) {
	out = model.ClientContact{
		Name:  TrimAndNormalize(c.Name),
		Email: NormalizeEmail(c.Email),
		Notes: strings.TrimSpace(c.Notes),
	}
	phone, ok := NormalizePhone(c.Phone, region)
	if !ok {
		out.Phone = strings.TrimSpace(c.Phone)
		return out, false
	}
	out.Phone = phone
	return out, true
}
