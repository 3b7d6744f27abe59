package service

import (
	"strings"
	"sync"
)

// DNCList is the runtime-mutable set of domains the operator commits
// never to crawl. A host matches when it equals a listed domain or is a
// subdomain of one; the match is a strict dot-suffix, never a substring.
type DNCList struct {
	mu      sync.RWMutex
	domains map[string]struct{}
}

// NewDNCList builds an empty do-not-contact list.
func NewDNCList(seed ...string) *DNCList {
	l := &DNCList{domains: make(map[string]struct{}, len(seed))}
	for _, domain := range seed {
		l.Add(domain)
	}
	return l
}

// Add registers a domain; input is lowercased and trimmed.
func (l *DNCList) Add(domain string) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return
	}
	l.mu.Lock()
	l.domains[domain] = struct{}{}
	l.mu.Unlock()
}

// Remove deletes a domain from the list.
func (l *DNCList) Remove(domain string) {
	domain = normalizeDomain(domain)
	l.mu.Lock()
	delete(l.domains, domain)
	l.mu.Unlock()
}

// Has reports whether the host is covered by the list.
func (l *DNCList) Has(host string) bool {
	host = normalizeDomain(host)
	if host == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for domain := range l.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// TOSList maps platform domains to the reason crawling them violates
// their terms of service. Unlike DNC, a hit is advisory: the site crawl
// proceeds and the reason is recorded as a warning. Matching is by
// substring so hosted-platform URLs are flagged wherever they appear.
type TOSList struct {
	mu      sync.RWMutex
	reasons map[string]string
}

// NewTOSList builds an empty terms-of-service list.
func NewTOSList() *TOSList {
	return &TOSList{reasons: make(map[string]string)}
}

// DefaultTOSList returns the list seeded with the platforms whose terms
// prohibit automated contact scraping.
func DefaultTOSList() *TOSList {
	l := NewTOSList()
	l.Add("linkedin.com", "LinkedIn terms of service prohibit automated scraping")
	l.Add("facebook.com", "Facebook terms of service prohibit automated scraping")
	l.Add("instagram.com", "Instagram terms of service prohibit automated scraping")
	l.Add("twitter.com", "Twitter terms of service prohibit automated scraping")
	l.Add("x.com", "X terms of service prohibit automated scraping")
	return l
}

// Add registers a domain with its warning reason.
func (l *TOSList) Add(domain, reason string) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return
	}
	l.mu.Lock()
	l.reasons[domain] = reason
	l.mu.Unlock()
}

// Remove deletes a domain from the list.
func (l *TOSList) Remove(domain string) {
	domain = normalizeDomain(domain)
	l.mu.Lock()
	delete(l.reasons, domain)
	l.mu.Unlock()
}

// Match returns the recorded reason when the host contains a listed domain.
func (l *TOSList) Match(host string) (string, bool) {
	host = normalizeDomain(host)
	if host == "" {
		return "", false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for domain, reason := range l.reasons {
		if strings.Contains(host, domain) {
			return reason, true
		}
	}
	return "", false
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
