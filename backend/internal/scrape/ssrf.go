package scrape

import (
	"net"
	"net/url"
	"strings"

	apperrors "knowledge-base/backend/pkg/errors"
)

// Policy decides which outbound URLs and addresses the scraper may reach
type Policy interface {
	// Validate checks raw and returns it parsed
	Validate(raw string) (*url.URL, error)
	// AllowIP is consulted for every address the scraper connects to
	AllowIP(ip net.IP) bool
}

var internalSuffixes = []string{
	".internal",
	".local",
	".lan",
	".intranet",
	".corp",
	".localdomain",
}

// Validator rejects non-http schemes, private and loopback addresses,
// internal host names and hosts outside the allowlist.
type Validator struct {
	allowed []string
}

var _ Policy = (*Validator)(nil)

// NewValidator creates a validator accepting allowedDomains and their subdomains
func NewValidator(allowedDomains []string) *Validator {
	allowed := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed = append(allowed, strings.TrimPrefix(d, "."))
		}
	}
	return &Validator{allowed: allowed}
}

// Validate checks raw against the outbound request policy
func (v *Validator) Validate(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperrors.NewURLRejected(raw, "malformed url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.NewURLRejected(raw, "only http and https are allowed")
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return nil, apperrors.NewURLRejected(raw, "missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, apperrors.NewURLRejected(raw, "internal address")
	}
	if ip := net.ParseIP(host); ip != nil && !v.AllowIP(ip) {
		return nil, apperrors.NewURLRejected(raw, "internal address")
	}
	for _, suffix := range internalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return nil, apperrors.NewURLRejected(raw, "internal network")
		}
	}
	if !v.domainAllowed(host) {
		return nil, apperrors.NewURLRejected(raw, "domain "+host+" is not allowed")
	}
	return u, nil
}

// AllowIP rejects loopback, private, link-local and unspecified addresses
func (v *Validator) AllowIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsUnspecified())
}

func (v *Validator) domainAllowed(host string) bool {
	for _, d := range v.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
