package helper

import (
	"strings"
	"unicode"
)

// MaxPhoneDigits caps how many digits FormatPhone keeps.
const MaxPhoneDigits = 15

// FormatPhone renders the digits of raw as the user types them:
// "(XXX) XXX-XXXX" for domestic numbers or "+X (XXX) XXX-XXXX" when raw
// starts with a plus sign. Digits past MaxPhoneDigits are dropped.
func FormatPhone(raw string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var b strings.Builder
	for _, r := range raw {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > MaxPhoneDigits {
		digits = digits[:MaxPhoneDigits]
	}

	if hasPlus {
		switch {
		case len(digits) <= 1:
			return "+" + digits
		case len(digits) <= 4:
			return "+" + digits[:1] + " (" + digits[1:]
		case len(digits) <= 7:
			return "+" + digits[:1] + " (" + digits[1:4] + ") " + digits[4:]
		default:
			return "+" + digits[:1] + " (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:]
		}
	}

	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return "(" + digits[:3] + ") " + digits[3:]
	default:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	}
}
