package domain

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// RRType represents a DNS resource record type (e.g. A, AAAA, MX).
// Values share the IANA code space used by github.com/miekg/dns.
type RRType uint16

// Record types a caller may place in a logical query.
const (
	RRTypeA      RRType = RRType(dns.TypeA)
	RRTypeNS     RRType = RRType(dns.TypeNS)
	RRTypeCNAME  RRType = RRType(dns.TypeCNAME)
	RRTypeSOA    RRType = RRType(dns.TypeSOA)
	RRTypePTR    RRType = RRType(dns.TypePTR)
	RRTypeMX     RRType = RRType(dns.TypeMX)
	RRTypeTXT    RRType = RRType(dns.TypeTXT)
	RRTypeAAAA   RRType = RRType(dns.TypeAAAA)
	RRTypeSRV    RRType = RRType(dns.TypeSRV)
	RRTypeNAPTR  RRType = RRType(dns.TypeNAPTR)
	RRTypeDS     RRType = RRType(dns.TypeDS)
	RRTypeRRSIG  RRType = RRType(dns.TypeRRSIG)
	RRTypeNSEC   RRType = RRType(dns.TypeNSEC)
	RRTypeDNSKEY RRType = RRType(dns.TypeDNSKEY)
	RRTypeNSEC3  RRType = RRType(dns.TypeNSEC3)
	RRTypeTLSA   RRType = RRType(dns.TypeTLSA)
	RRTypeSVCB   RRType = RRType(dns.TypeSVCB)
	RRTypeHTTPS  RRType = RRType(dns.TypeHTTPS)
	RRTypeAXFR   RRType = RRType(dns.TypeAXFR)
	RRTypeANY    RRType = RRType(dns.TypeANY)
	RRTypeCAA    RRType = RRType(dns.TypeCAA)
)

// IsValid reports whether t may appear in the question section of a query.
// OPT is a pseudo-record and never a valid question type.
func (t RRType) IsValid() bool {
	if t == 0 || t == RRType(dns.TypeOPT) {
		return false
	}
	_, known := dns.TypeToString[uint16(t)]
	return known
}

// IsDNSSEC reports whether t is one of the DNSSEC record types.
func (t RRType) IsDNSSEC() bool {
	switch t {
	case RRTypeDS, RRTypeRRSIG, RRTypeNSEC, RRTypeDNSKEY, RRTypeNSEC3:
		return true
	default:
		return false
	}
}

// String returns the mnemonic for t, or "UNKNOWN(<value>)".
func (t RRType) String() string {
	if s, ok := dns.TypeToString[uint16(t)]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
}

// RRTypeFromString converts a mnemonic such as "aaaa" or "TYPE65" to an RRType.
// Unknown input yields 0.
func RRTypeFromString(s string) RRType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if v, ok := dns.StringToType[s]; ok {
		return RRType(v)
	}
	var n uint16
	if _, err := fmt.Sscanf(s, "TYPE%d", &n); err == nil {
		return RRType(n)
	}
	return 0
}
