package domain

import (
	"strings"

	"github.com/miekg/dns"
)

// RRClass represents a DNS class (usually IN for Internet).
type RRClass uint16

const (
	RRClassIN   RRClass = RRClass(dns.ClassINET)
	RRClassCH   RRClass = RRClass(dns.ClassCHAOS)
	RRClassHS   RRClass = RRClass(dns.ClassHESIOD)
	RRClassNONE RRClass = RRClass(dns.ClassNONE)
	RRClassANY  RRClass = RRClass(dns.ClassANY)
)

// IsValid returns true if the RRClass is one of the supported classes.
func (c RRClass) IsValid() bool {
	switch c {
	case RRClassIN, RRClassCH, RRClassHS, RRClassNONE, RRClassANY:
		return true
	default:
		return false
	}
}

func (c RRClass) String() string {
	if s, ok := dns.ClassToString[uint16(c)]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseRRClass converts a class mnemonic to an RRClass value; unknown input yields 0.
func ParseRRClass(s string) RRClass {
	if v, ok := dns.StringToClass[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return RRClass(v)
	}
	return 0
}
