package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const DefaultRegion = "US"

// NormalizePhone formats phone as E.164. Numbers without a country prefix
// are parsed against region. ok is false for non-empty input that is not a
// possible number.
func NormalizePhone(phone, region string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", true
	}
	if region == "" {
		region = DefaultRegion
	}

	parsed, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsPossibleNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}
