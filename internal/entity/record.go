package entity

import "time"

// Email classification buckets.
const (
	EmailTypeRole     = "role"
	EmailTypePersonal = "personal"
	EmailTypeGeneric  = "generic"
	EmailTypeUnknown  = "unknown"
)

// ContactRecord is one validated, scored contact emitted for a site.
type ContactRecord struct {
	SourceURL     string     `json:"source_url"`
	Domain        string     `json:"domain"`
	Email         string     `json:"email"`
	EmailType     string     `json:"email_type"`
	Confidence    float64    `json:"confidence"`
	DiscoveryPath string     `json:"discovery_path"`
	Phone         *string    `json:"phone,omitempty"`
	ContactPage   *string    `json:"contact_page,omitempty"`
	Social        *Socials   `json:"social,omitempty"`
	RawEvidence   *string    `json:"raw_evidence,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}
