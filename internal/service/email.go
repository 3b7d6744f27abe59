package service

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/octobees/contact-crawler/internal/entity"
)

var (
	emailPattern        = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	roleLocalpartRe     = regexp.MustCompile(`^(info|kontakt|support|sales|kundtjanst|office|hej|hello|contact|admin|webmaster|inquiry|service)$`)
	personalDomainRe    = regexp.MustCompile(`(gmail|hotmail|outlook|yahoo|live|icloud|protonmail|me\.com|aol|gmx|mail\.com)`)
	genericLocalpartRe  = regexp.MustCompile(`^([a-z]{1,2}|no-?reply.*)$`)
	noReplyRe           = regexp.MustCompile(`noreply|no-reply|donotreply`)
	placeholderEmailRe  = regexp.MustCompile(`test|example|placeholder`)
	junkEmailRe         = regexp.MustCompile(`example\.com|user@domain\.com|noreply|donotreply|no-reply|test@|placeholder|u003e`)
	idnaProfile         = idna.Lookup
)

// TLDs contact records are allowed to carry. The crawl is aimed at the
// Swedish market, so the list is short on purpose.
var allowedTLDs = map[string]struct{}{
	"se":   {},
	"com":  {},
	"info": {},
	"nu":   {},
	"org":  {},
	"net":  {},
}

// Classification is the outcome of classifying and scoring one address.
type Classification struct {
	EmailType  string
	Score      int
	Confidence float64
	MXValid    bool
}

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// EmailClassifier assigns a type and an integer score to cleaned addresses.
type EmailClassifier struct {
	mxCheck     bool
	dnsResolver DNSResolver
}

// EmailClassifierOption configures optional dependencies.
type EmailClassifierOption func(*EmailClassifier)

// WithDNSResolver overrides the default DNS resolver.
func WithDNSResolver(resolver DNSResolver) EmailClassifierOption {
	return func(c *EmailClassifier) {
		if resolver != nil {
			c.dnsResolver = resolver
		}
	}
}

// NewEmailClassifier builds a classifier. MX validation runs only when
// mxCheck is set and never affects the classification itself.
func NewEmailClassifier(mxCheck bool, opts ...EmailClassifierOption) *EmailClassifier {
	c := &EmailClassifier{
		mxCheck:     mxCheck,
		dnsResolver: systemDNSResolver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify determines the email type and score relative to the site host.
func (c *EmailClassifier) Classify(ctx context.Context, email, siteHost string) Classification {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, found := strings.Cut(email, "@")
	if !found {
		return Classification{EmailType: entity.EmailTypeUnknown, Score: 0}
	}

	emailType := classifyEmail(local, domain, siteHost)
	score := scoreEmail(local, domain, siteHost, emailType)

	result := Classification{
		EmailType:  emailType,
		Score:      score,
		Confidence: float64(score) / 100,
	}
	if c.mxCheck {
		result.MXValid = c.hasMXRecord(ctx, domain)
	}
	return result
}

func classifyEmail(local, domain, siteHost string) string {
	if roleLocalpartRe.MatchString(local) {
		return entity.EmailTypeRole
	}
	if personalDomainRe.MatchString(domain) {
		return entity.EmailTypePersonal
	}
	if isCompanyDomain(domain, siteHost) {
		if genericLocalpartRe.MatchString(local) {
			return entity.EmailTypeGeneric
		}
		return entity.EmailTypeRole
	}
	return entity.EmailTypeUnknown
}

func scoreEmail(local, domain, siteHost, emailType string) int {
	score := 50

	if isCompanyDomain(domain, siteHost) {
		score += 30
	}
	switch emailType {
	case entity.EmailTypeRole:
		// A shared-mailbox localpart earns the smaller bonus; the full
		// role bonus is reserved for named mailboxes on the company domain.
		if roleLocalpartRe.MatchString(local) {
			score += 10
		} else {
			score += 20
		}
	case entity.EmailTypePersonal:
		score -= 10
	case entity.EmailTypeGeneric:
		score -= 20
	}
	// Penalties target the mailbox itself; a legitimate company domain
	// containing "example" must not be punished.
	if noReplyRe.MatchString(local) {
		score -= 50
	}
	if placeholderEmailRe.MatchString(local) {
		score -= 50
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func isCompanyDomain(domain, siteHost string) bool {
	siteHost = strings.ToLower(strings.TrimSpace(siteHost))
	if domain == "" || siteHost == "" {
		return false
	}
	return strings.HasSuffix(siteHost, domain) || strings.HasSuffix(domain, siteHost)
}

// ValidEmailFormat applies the strict format check used by the cleaning
// pipeline. The input must already be lowercased.
func ValidEmailFormat(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	_, domain, _ := strings.Cut(email, "@")
	if !isDomainValid(domain) {
		return false
	}
	ascii, err := idnaProfile.ToASCII(domain)
	return err == nil && ascii != ""
}

// CleanEmails runs the cleaning pipeline over one page's extracted
// evidence: lowercase and trim, drop junk and invalid addresses, require
// an allowlisted TLD, and deduplicate within the page.
func CleanEmails(evidence []entity.EmailEvidence) []entity.EmailEvidence {
	if len(evidence) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(evidence))
	cleaned := make([]entity.EmailEvidence, 0, len(evidence))

	for _, item := range evidence {
		email := strings.ToLower(strings.TrimSpace(item.Email))
		if email == "" || junkEmailRe.MatchString(email) {
			continue
		}
		if !ValidEmailFormat(email) {
			continue
		}
		_, domain, _ := strings.Cut(email, "@")
		tld := domain[strings.LastIndex(domain, ".")+1:]
		if _, ok := allowedTLDs[tld]; !ok {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		item.Email = email
		cleaned = append(cleaned, item)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

func (c *EmailClassifier) hasMXRecord(ctx context.Context, domain string) bool {
	if c.dnsResolver == nil {
		return false
	}
	ascii, err := idnaProfile.ToASCII(domain)
	if err != nil || ascii == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	records, err := c.dnsResolver.LookupMX(ctx, ascii)
	return err == nil && len(records) > 0
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
