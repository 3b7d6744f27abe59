package crawler

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/service"
)

// Evidence confidence per extraction branch.
const (
	confidenceJSONLD      = 0.95
	confidenceMailto      = 0.85
	confidenceFooter      = 0.60
	confidenceInlineKey   = 0.70
	confidenceInlinePlain = 0.50
)

// Discovery path labels.
const (
	sourceJSONLD = "json-ld"
	sourceMailto = "mailto"
	sourceFooter = "footer"
	sourceInline = "inline"
)

const maxContactLinks = 5

var (
	inlineEmailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,24}`)
	keyPagePattern     = regexp.MustCompile(`(?i)kontakt|kontakta|about|om|team|medarbetare|personal|ledning|contact`)
)

// JSON-LD @type values treated as a business entity.
var jsonLDOrgTypes = map[string]struct{}{
	"Organization":        {},
	"LocalBusiness":       {},
	"Corporation":         {},
	"Store":               {},
	"ProfessionalService": {},
}

// Extraction is the raw evidence pulled from one parsed page before any
// cleaning or validation.
type Extraction struct {
	Emails          []entity.EmailEvidence
	PhoneCandidates []string
	Socials         entity.Socials
	ContactLinks    []string
}

// Extract runs the four email sub-extractors plus phone and social
// discovery over a page. Parse failures yield an empty extraction.
func Extract(pageURL, html string) Extraction {
	var out Extraction

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}

	extractJSONLD(doc, &out)
	extractMailto(doc, &out)
	extractInline(doc, pageURL, &out)
	extractPhones(doc, &out)
	out.ContactLinks = extractContactLinks(doc, pageURL)

	return out
}

// jsonLDEntity mirrors the subset of schema.org fields the crawler reads.
// @type, email, telephone and sameAs appear both as scalars and arrays
// in the wild, so they decode through json.RawMessage.
type jsonLDEntity struct {
	Type         json.RawMessage `json:"@type"`
	Email        json.RawMessage `json:"email"`
	Telephone    json.RawMessage `json:"telephone"`
	SameAs       json.RawMessage `json:"sameAs"`
	ContactPoint json.RawMessage `json:"contactPoint"`
}

func extractJSONLD(doc *goquery.Document, out *Extraction) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		// Top level may be a single entity or an array of them.
		var entities []jsonLDEntity
		var single jsonLDEntity
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			entities = append(entities, single)
		} else if err := json.Unmarshal([]byte(raw), &entities); err != nil {
			return
		}

		for _, e := range entities {
			if !isOrgEntity(e.Type) {
				continue
			}
			collectJSONLDEntity(e, out)
		}
	})
}

func collectJSONLDEntity(e jsonLDEntity, out *Extraction) {
	for _, email := range stringValues(e.Email) {
		out.Emails = append(out.Emails, entity.EmailEvidence{
			Email:      email,
			Source:     sourceJSONLD,
			Confidence: confidenceJSONLD,
		})
	}
	out.PhoneCandidates = append(out.PhoneCandidates, stringValues(e.Telephone)...)

	for _, link := range stringValues(e.SameAs) {
		routeSocial(link, &out.Socials)
	}

	if len(e.ContactPoint) > 0 {
		var points []jsonLDEntity
		var point jsonLDEntity
		if err := json.Unmarshal(e.ContactPoint, &point); err == nil {
			points = append(points, point)
		} else if err := json.Unmarshal(e.ContactPoint, &points); err != nil {
			return
		}
		for _, p := range points {
			for _, email := range stringValues(p.Email) {
				out.Emails = append(out.Emails, entity.EmailEvidence{
					Email:      email,
					Source:     sourceJSONLD,
					Confidence: confidenceJSONLD,
				})
			}
			out.PhoneCandidates = append(out.PhoneCandidates, stringValues(p.Telephone)...)
		}
	}
}

func isOrgEntity(rawType json.RawMessage) bool {
	for _, t := range stringValues(rawType) {
		if _, ok := jsonLDOrgTypes[t]; ok {
			return true
		}
	}
	return false
}

// stringValues decodes a JSON value that may be a string or an array of
// strings; anything else yields nothing.
func stringValues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	values := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func routeSocial(link string, socials *entity.Socials) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "linkedin"):
		if socials.LinkedIn == "" {
			socials.LinkedIn = link
		}
	case strings.Contains(host, "facebook"):
		if socials.Facebook == "" {
			socials.Facebook = link
		}
	case strings.Contains(host, "twitter") || host == "x.com" || strings.HasSuffix(host, ".x.com"):
		if socials.X == "" {
			socials.X = link
		}
	}
}

func extractMailto(doc *goquery.Document, out *Extraction) {
	collect := func(scope *goquery.Selection, source string, confidence float64) {
		scope.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			email := strings.TrimPrefix(href, "mailto:")
			if i := strings.Index(email, "?"); i >= 0 {
				email = email[:i]
			}
			if email == "" {
				return
			}
			out.Emails = append(out.Emails, entity.EmailEvidence{
				Email:      email,
				Source:     source,
				Confidence: confidence,
			})
		})
	}

	collect(doc.Selection, sourceMailto, confidenceMailto)
	collect(doc.Find("footer"), sourceFooter, confidenceFooter)
}

func extractInline(doc *goquery.Document, pageURL string, out *Extraction) {
	confidence := confidenceInlinePlain
	if isContactLikePage(pageURL) {
		confidence = confidenceInlineKey
	}

	text := doc.Find("body").Text()
	for _, match := range inlineEmailPattern.FindAllString(text, -1) {
		out.Emails = append(out.Emails, entity.EmailEvidence{
			Email:      match,
			Source:     sourceInline,
			Confidence: confidence,
		})
	}
}

func extractPhones(doc *goquery.Document, out *Extraction) {
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		phone := strings.TrimPrefix(href, "tel:")
		if phone != "" {
			out.PhoneCandidates = append(out.PhoneCandidates, phone)
		}
	})

	text := doc.Find("body").Text()
	out.PhoneCandidates = append(out.PhoneCandidates, service.ExtractPhoneCandidates(text)...)
}

// extractContactLinks collects same-host anchors pointing at likely
// contact pages, deduplicated and capped.
func extractContactLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if !strings.EqualFold(resolved.Hostname(), base.Hostname()) {
			return true
		}
		if !keyPagePattern.MatchString(resolved.Path) && !keyPagePattern.MatchString(s.Text()) {
			return true
		}

		resolved.Fragment = ""
		link := resolved.String()
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < maxContactLinks
	})

	return links
}

func isContactLikePage(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return keyPagePattern.MatchString(u.Path)
}
