package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/octobees/contact-crawler/internal/entity"
)

// Column keywords matched case-insensitively as substrings against the
// header row. The mix of Swedish and English mirrors the CSV exports the
// crawl usually starts from.
var (
	websiteColumns = []string{"website", "webb", "hemsida", "url", "site", "domän", "domain", "www", "web", "link"}
	companyColumns = []string{"företag", "company", "bolag", "organisation", "org", "brand", "name", "namn", "title", "företagsnamn"}
)

// Directory and platform hosts that are never crawled; their listings
// are not the company's own site.
var blockedDirectories = []string{
	"facebook",
	"instagram",
	"linkedin",
	"bokadirekt",
	"reco",
	"hitta",
	"eniro",
	"allabolag",
	"yelp",
	"maps.google",
}

// CSVValidationError reports a structural problem with the uploaded file,
// as opposed to individual rejected rows.
type CSVValidationError struct {
	Reason string
}

func (e *CSVValidationError) Error() string {
	return "invalid csv: " + e.Reason
}

// RejectedRow is one input row the parser refused, with its 1-based row
// number so the uploader can find it.
type RejectedRow struct {
	Row     int    `json:"row"`
	Website string `json:"website"`
	Reason  string `json:"reason"`
}

// ParseSites reads a CSV export and returns the normalized crawl targets
// plus every rejected row. Duplicate hosts collapse to the first
// occurrence. Only a missing header or website column is a hard error.
func ParseSites(r io.Reader) ([]entity.Site, []RejectedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, &CSVValidationError{Reason: "empty file"}
	}
	if err != nil {
		return nil, nil, &CSVValidationError{Reason: fmt.Sprintf("unreadable header: %v", err)}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	websiteIdx := findColumn(header, websiteColumns)
	if websiteIdx < 0 {
		return nil, nil, &CSVValidationError{Reason: "no website column found"}
	}
	companyIdx := findColumn(header, companyColumns)

	var sites []entity.Site
	var rejected []RejectedRow
	seen := make(map[string]struct{})

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rejected = append(rejected, RejectedRow{Row: row, Reason: fmt.Sprintf("unreadable row: %v", err)})
			continue
		}
		if websiteIdx >= len(record) {
			rejected = append(rejected, RejectedRow{Row: row, Reason: "missing website cell"})
			continue
		}

		website := strings.TrimSpace(record[websiteIdx])
		if website == "" {
			rejected = append(rejected, RejectedRow{Row: row, Reason: "empty website"})
			continue
		}

		site, reason := NormalizeSite(website)
		if reason != "" {
			rejected = append(rejected, RejectedRow{Row: row, Website: website, Reason: reason})
			continue
		}
		if companyIdx >= 0 && companyIdx < len(record) {
			site.CompanyName = strings.TrimSpace(record[companyIdx])
		}

		if _, dup := seen[site.Host]; dup {
			continue
		}
		seen[site.Host] = struct{}{}
		sites = append(sites, site)
	}

	return sites, rejected, nil
}

// findColumn returns the index of the first header cell containing any
// of the keywords, or -1.
func findColumn(header []string, keywords []string) int {
	for i, cell := range header {
		lowered := strings.ToLower(strings.TrimSpace(cell))
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				return i
			}
		}
	}
	return -1
}

// NormalizeSite turns a raw website value into a crawl target. It
// returns a rejection reason instead of a site when the URL does not
// parse or points at a directory platform. JSON job submissions go
// through the same rules as CSV rows.
func NormalizeSite(website string) (entity.Site, string) {
	raw := website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return entity.Site{}, "unparsable URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return entity.Site{}, "unsupported scheme"
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return entity.Site{}, "unparsable URL"
	}
	for _, directory := range blockedDirectories {
		if strings.Contains(host, directory) {
			return entity.Site{}, "blocked directory: " + directory
		}
	}

	u.Fragment = ""
	return entity.Site{RootURL: u.String(), Host: host}, ""
}
