package domain

import (
	"fmt"

	"github.com/miekg/dns"
)

// RCode is a DNS response code, including the EDNS extended range.
type RCode uint16

// IsValid reports whether r is a code registered with IANA.
func (r RCode) IsValid() bool {
	_, ok := dns.RcodeToString[int(r)]
	return ok
}

// IsSuccess reports whether the server answered without error.
func (r RCode) IsSuccess() bool {
	return r == RCode(dns.RcodeSuccess)
}

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	if s, ok := dns.RcodeToString[int(r)]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(r))
}

// ParseRCode converts a string name to an RCode value. Unknown names map to NOERROR.
func ParseRCode(s string) RCode {
	if v, ok := dns.StringToRcode[s]; ok {
		return RCode(v)
	}
	return 0
}
