package service

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultPhoneRegion = "SE"

// hasDigitRun reports whether s contains at least n consecutive copies
// of the same digit.
func hasDigitRun(s string, n int) bool {
	run := 0
	var prev byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			run = 0
			continue
		}
		if c == prev && run > 0 {
			run++
		} else {
			run = 1
		}
		prev = c
		if run >= n {
			return true
		}
	}
	return false
}

var (
	phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
	phoneStripper         = strings.NewReplacer("(", "", ")", "", " ", "", ".", "", "-", "", " ", "")
)

// ExtractPhoneCandidates returns raw phone-like substrings found in text.
func ExtractPhoneCandidates(text string) []string {
	return phoneCandidatePattern.FindAllString(text, -1)
}

// NormalizePhone cleans a candidate and returns its E.164 form.
// Numbers written in national format get the Swedish country code; anything
// that does not validate as a Swedish number is rejected.
func NormalizePhone(raw string) (string, bool) {
	cleaned := phoneStripper.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "+46" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		return "", false
	}

	number, err := phonenumbers.Parse(cleaned, defaultPhoneRegion)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", false
	}
	if phonenumbers.GetRegionCodeForNumber(number) != defaultPhoneRegion {
		return "", false
	}

	formatted := phonenumbers.Format(number, phonenumbers.E164)
	if len(formatted) < 9 || len(formatted) > 15 {
		return "", false
	}
	// Rejects filler numbers like +4600000000.
	if hasDigitRun(formatted, 7) {
		return "", false
	}
	return formatted, true
}

// NormalizePhones validates candidates and deduplicates the E.164 output,
// preserving first-seen order.
func NormalizePhones(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	valid := make([]string, 0, len(candidates))

	for _, raw := range candidates {
		normalized, ok := NormalizePhone(raw)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		valid = append(valid, normalized)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}
