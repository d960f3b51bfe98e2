package urlfeatures

import (
	"errors"
	"net/netip"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

var (
	errUnbalancedBrackets = errors.New("invalid IPv6 URL: unbalanced brackets")
	errBracketedHost      = errors.New("invalid bracketed host")
)

var ipvFuture = regexp2.MustCompile(`\Av[a-fA-F0-9]+\..+\z`, regexp2.Singleline)

// urlParts holds the components the features need. Splitting never validates
// escapes, ports or paths; only the authority brackets can make it fail.
type urlParts struct {
	netloc string
	query  string
}

// splitURL splits rawURL into authority and query the way a lenient
// generic-syntax splitter does: scheme, then "//authority" up to the first
// '/', '?' or '#', then the fragment, then the query.
func splitURL(rawURL string) (urlParts, error) {
	s := strings.TrimLeft(rawURL, "\x00\x01\x02\x03\x04\x05\x06\x07\x08\t\n\x0b\x0c\r\x0e\x0f"+
		"\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f ")
	s = strings.NewReplacer("\t", "", "\r", "", "\n", "").Replace(s)

	if i := strings.IndexByte(s, ':'); i > 0 && isSchemeStart(s[0]) && isScheme(s[:i]) {
		s = s[i+1:]
	}

	var parts urlParts
	if strings.HasPrefix(s, "//") {
		rest := s[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		parts.netloc, s = rest[:end], rest[end:]
		if err := checkNetloc(parts.netloc); err != nil {
			return urlParts{}, err
		}
	}

	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		parts.query = s[i+1:]
	}
	return parts, nil
}

func isSchemeStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isSchemeStart(c) && !(c >= '0' && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func checkNetloc(netloc string) error {
	open, closed := strings.Contains(netloc, "["), strings.Contains(netloc, "]")
	if open != closed {
		return errUnbalancedBrackets
	}
	if !open {
		return nil
	}
	_, after, _ := strings.Cut(netloc, "[")
	bracketed, _, _ := strings.Cut(after, "]")
	if strings.HasPrefix(bracketed, "v") {
		if ok, _ := ipvFuture.MatchString(bracketed); !ok {
			return errBracketedHost
		}
		return nil
	}
	addr, err := netip.ParseAddr(bracketed)
	if err != nil || !addr.Is6() {
		return errBracketedHost
	}
	return nil
}

// hostname drops userinfo and port. Bracketed hosts keep what is inside the
// brackets.
func (p urlParts) hostname() string {
	hostinfo := p.netloc
	if i := strings.LastIndexByte(hostinfo, '@'); i >= 0 {
		hostinfo = hostinfo[i+1:]
	}
	var host string
	if _, bracketed, ok := strings.Cut(hostinfo, "["); ok {
		host, _, _ = strings.Cut(bracketed, "]")
	} else {
		host, _, _ = strings.Cut(hostinfo, ":")
	}
	return strings.ToLower(host)
}

// queryKeys returns the distinct decoded keys that carry a non-empty raw
// value. Pairs split on '&' only; pairs without '=' or with a blank value are
// dropped. malformed reports how many escapes were kept literally.
func queryKeys(query string) (keys map[string]struct{}, malformed int) {
	keys = make(map[string]struct{})
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		decoded, bad := unescapeLenient(strings.ReplaceAll(name, "+", " "))
		malformed += bad
		keys[decoded] = struct{}{}
	}
	return keys, malformed
}

// unescapeLenient decodes %XX escapes and keeps invalid ones as written.
// Invalid UTF-8 in the result becomes U+FFFD.
func unescapeLenient(s string) (string, int) {
	if !strings.Contains(s, "%") {
		return s, 0
	}
	var b strings.Builder
	b.Grow(len(s))
	bad := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			if i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
				b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
				i += 2
				continue
			}
			bad++
		}
		b.WriteByte(s[i])
	}
	return toValidUTF8(b.String()), bad
}

func toValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
