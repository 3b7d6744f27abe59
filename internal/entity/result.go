package entity

// EmailEvidence is a single sighting of an address on one page.
type EmailEvidence struct {
	Email      string  `json:"email"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// PageResult is the cacheable outcome of crawling a single URL.
// It is a pure value with no ownership links.
type PageResult struct {
	Emails  []EmailEvidence `json:"emails"`
	Phones  []string        `json:"phones"`
	Socials Socials         `json:"socials"`
}

// EmailInfo carries the per-site aggregate for one unique address.
// Classification and score are computed once, on first sighting.
type EmailInfo struct {
	EmailType     string   `json:"email_type"`
	Confidence    float64  `json:"confidence"`
	Sources       []string `json:"sources"`
	DiscoveryPath string   `json:"discovery_path"`
}

// SiteError records a per-page or site-level failure reason.
type SiteError struct {
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason"`
}

// SiteResult aggregates everything discovered while crawling one site.
// It exists only for the duration of that site's crawl.
type SiteResult struct {
	CompanyName string                `json:"company_name"`
	Website     string                `json:"website"`
	Domain      string                `json:"domain"`
	Emails      map[string]*EmailInfo `json:"emails"`
	Phones      []string              `json:"phones"`
	Socials     Socials               `json:"socials"`
	SourcePages []string              `json:"source_pages"`
	Errors      []SiteError           `json:"errors"`
}

// NewSiteResult prepares an empty aggregate for the given site.
func NewSiteResult(site Site) *SiteResult {
	return &SiteResult{
		CompanyName: site.CompanyName,
		Website:     site.RootURL,
		Domain:      site.Host,
		Emails:      make(map[string]*EmailInfo),
	}
}

// AddError appends a failure entry without interrupting the crawl.
func (r *SiteResult) AddError(url, reason string) {
	r.Errors = append(r.Errors, SiteError{URL: url, Reason: reason})
}

// AddPhone stores an E.164 phone unless it is already known.
// First-seen order is preserved so downstream record building is deterministic.
func (r *SiteResult) AddPhone(e164 string) {
	for _, known := range r.Phones {
		if known == e164 {
			return
		}
	}
	r.Phones = append(r.Phones, e164)
}
