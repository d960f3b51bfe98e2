package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Checker decides whether a sender bypasses phishing scoring. A listed
// registrable domain (example.com) also covers its subdomains; a listed
// subdomain only matches itself.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := make(map[string]struct{}, len(domains))
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d == "" {
			continue
		}
		if _, ok := set[d]; !ok {
			set[d] = struct{}{}
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: set,
		logger:  logger,
	}
}

// IsWhitelisted checks the domain of a From value such as
// "Alice <alice@example.com>" or "alice@example.com"
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := senderDomain(from)
	if domain == "" {
		return false
	}

	if _, ok := c.domains[domain]; ok {
		c.logger.Debug("Domain is whitelisted", zap.String("domain", domain), zap.String("email", from))
		return true
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil || registrable == domain {
		return false
	}
	if _, ok := c.domains[registrable]; ok {
		c.logger.Debug("Registrable domain is whitelisted",
			zap.String("domain", domain),
			zap.String("registrable", registrable),
			zap.String("email", from))
		return true
	}
	return false
}

func senderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}

	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(address[at+1:]), ".")
}
