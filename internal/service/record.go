package service

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/octobees/contact-crawler/internal/entity"
)

var contactPagePattern = regexp.MustCompile(`(?i)kontakt|contact`)

// BuildRecords turns a site's aggregated result into contact records,
// one per surviving email. Emails are emitted in lexical order so a
// given aggregate always produces the same output.
func BuildRecords(result *entity.SiteResult) []entity.ContactRecord {
	if result == nil || len(result.Emails) == 0 {
		return nil
	}

	var phone *string
	if len(result.Phones) > 0 {
		p := result.Phones[0]
		phone = &p
	}

	var contactPage *string
	for _, page := range result.SourcePages {
		if contactPagePattern.MatchString(page) {
			p := page
			contactPage = &p
			break
		}
	}

	var social *entity.Socials
	if !result.Socials.Empty() {
		s := result.Socials
		social = &s
	}

	emails := make([]string, 0, len(result.Emails))
	for email := range result.Emails {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	now := time.Now().UTC()
	records := make([]entity.ContactRecord, 0, len(emails))
	for _, email := range emails {
		info := result.Emails[email]
		evidence := "sources: " + strings.Join(info.Sources, ", ")
		ts := now

		records = append(records, entity.ContactRecord{
			SourceURL:     result.Website,
			Domain:        result.Domain,
			Email:         email,
			EmailType:     info.EmailType,
			Confidence:    info.Confidence,
			DiscoveryPath: info.DiscoveryPath,
			Phone:         phone,
			ContactPage:   contactPage,
			Social:        social,
			RawEvidence:   &evidence,
			Timestamp:     &ts,
		})
	}
	return records
}
