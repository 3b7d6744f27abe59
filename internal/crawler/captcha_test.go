package crawler

import (
	"errors"
	"testing"
)

func TestDetectCaptchaVendorOrder(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{"recaptcha", `<div class="g-recaptcha" data-sitekey="x"></div>`, "recaptcha"},
		{"hcaptcha", `<div class="h-captcha"><script src="https://hcaptcha.com/1/api.js"></script></div>`, "hcaptcha"},
		{"cloudflare challenge", `<title>Just a moment...</title><script src="/cdn-cgi/challenge-platform/x.js"></script>`, "cloudflare"},
		{"attention required", `<title>Attention Required! | Cloudflare</title>`, "cloudflare"},
		{"recaptcha beats cloudflare", `cloudflare grecaptcha`, "recaptcha"},
	}

	for _, tc := range cases {
		vendor, found := DetectCaptcha(tc.html)
		if !found {
			t.Fatalf("%s: expected detection", tc.name)
		}
		if vendor != tc.want {
			t.Fatalf("%s: got vendor %s, want %s", tc.name, vendor, tc.want)
		}
	}
}

func TestDetectCaptchaIgnoresCleanPages(t *testing.T) {
	html := `<html><body><h1>Välkommen till Acme</h1><a href="mailto:info@acme.se">info@acme.se</a></body></html>`
	if vendor, found := DetectCaptcha(html); found {
		t.Fatalf("unexpected detection: %s", vendor)
	}
}

func TestCaptchaErrorMessageAndUnwrap(t *testing.T) {
	err := &CaptchaError{Vendor: "recaptcha"}

	if err.Error() != "Captcha detected (recaptcha)" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrCaptcha) {
		t.Fatal("expected CaptchaError to unwrap to ErrCaptcha")
	}
}
