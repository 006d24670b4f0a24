package utils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// lookupProfile maps internationalized names to their ASCII form the way a
// resolver would, but tolerates the underscore labels used by SRV and TXT owners.
var lookupProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(true),
	idna.StrictDomainName(false),
)

// CanonicalDNSName returns a DNS name in canonical query form:
// - Trimmed of surrounding whitespace
// - Lowercased, with internationalized labels converted to punycode
// - Fully qualified (trailing dot)
//
// Empty input yields an empty name and no error; callers decide whether that is valid.
func CanonicalDNSName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if name == "." {
		return ".", nil
	}

	if isASCII(name) {
		name = strings.ToLower(name)
	} else {
		ascii, err := lookupProfile.ToASCII(name)
		if err != nil {
			return "", fmt.Errorf("invalid internationalized name %q: %w", name, err)
		}
		name = ascii
	}

	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("invalid name %q: contains whitespace", name)
	}

	name = dns.Fqdn(name)
	if _, ok := dns.IsDomainName(name); !ok {
		return "", fmt.Errorf("invalid name %q", name)
	}
	return name, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
