package crawler

import "strings"

// Challenge-page markers checked case-insensitively against the body.
var captchaPatterns = []string{
	"recaptcha",
	"g-recaptcha",
	"grecaptcha",
	"hcaptcha",
	"cloudflare",
	"cf-browser-verification",
	"challenge-platform",
	"just a moment",
	"attention required",
}

// CaptchaError reports a challenge page. It unwraps to ErrCaptcha so the
// pipeline can classify it while the message keeps the vendor visible.
type CaptchaError struct {
	Vendor string
}

func (e *CaptchaError) Error() string {
	return "Captcha detected (" + e.Vendor + ")"
}

func (e *CaptchaError) Unwrap() error {
	return ErrCaptcha
}

// DetectCaptcha scans HTML for bot-challenge markers and names the
// vendor when one is found.
func DetectCaptcha(html string) (string, bool) {
	lowered := strings.ToLower(html)

	matched := false
	for _, pattern := range captchaPatterns {
		if strings.Contains(lowered, pattern) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	switch {
	case strings.Contains(lowered, "recaptcha"):
		return "recaptcha", true
	case strings.Contains(lowered, "hcaptcha"):
		return "hcaptcha", true
	default:
		return "cloudflare", true
	}
}
