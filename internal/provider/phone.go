package provider

import (
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to national numbers written with a leading 0.
const DefaultCountryCode = "84"

var (
	phoneSeparators = regexp.MustCompile(`[\s\-().]+`)
	e164Pattern     = regexp.MustCompile(`^\+\d{8,15}$`)
	bareDigits      = regexp.MustCompile(`^\d{8,15}$`)
)

// NormalizePhone converts common local and international spellings to
// E.164. It returns ok=false when the result would not be a valid number.
//
//	"+84 912-345-678" -> "+84912345678"
//	"0084912345678"   -> "+84912345678"
//	"0912345678"      -> "+84912345678"
//	"14155550100"     -> "+14155550100"
func NormalizePhone(raw string) (string, bool) {
	p := phoneSeparators.ReplaceAllString(strings.TrimSpace(raw), "")
	if p == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(p, "+"):
	case strings.HasPrefix(p, "00"):
		p = "+" + p[2:]
	case strings.HasPrefix(p, "0"):
		p = "+" + DefaultCountryCode + p[1:]
	case bareDigits.MatchString(p):
		p = "+" + p
	default:
		return "", false
	}

	if !e164Pattern.MatchString(p) {
		return "", false
	}
	return p, true
}
