package crawler

import "errors"

// Failure kinds surfaced by the crawl pipeline. Per-URL failures are
// swallowed into a nil page result and recorded on the site's error
// list; none of them aborts a site crawl.
var (
	ErrUnsafeURL      = errors.New("url blocked by ssrf filter")
	ErrRobotsDisallow = errors.New("disallowed by robots.txt")
	ErrBlocked        = errors.New("request blocked by server")
	ErrNotFound       = errors.New("page not found")
	ErrTimeout        = errors.New("request timed out")
	ErrNonHTML        = errors.New("response is not html")
	ErrCaptcha        = errors.New("captcha challenge detected")
	ErrFetch          = errors.New("fetch failed")
)
