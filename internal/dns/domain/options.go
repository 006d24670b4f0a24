package domain

// Options travel alongside an outbound message to the transport driver
// without becoming part of the message itself.
type Options struct {
	// RequestDNSSEC asks the server for DNSSEC records by setting the DO bit.
	RequestDNSSEC bool

	// ExpectsMultipleResponses marks requests, such as zone transfers, whose
	// answer spans several messages. It is carried for drivers that stream
	// and is not interpreted by the dispatch layer.
	ExpectsMultipleResponses bool
}
