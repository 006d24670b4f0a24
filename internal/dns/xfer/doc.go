// Package xfer correlates logical DNS queries with their eventual responses.
//
// A caller hands a [Request] to a [Handle] and receives a [*Pending] that
// resolves exactly once: with a [*Response], with a typed failure from the
// domain package, or with a cancellation when the producing side goes away.
//
// [BasicHandle] is the default Handle. It pairs every request with a
// completion slot and appends the resulting [Envelope] to an unbounded
// [Queue] drained by a single transport driver (see gateways/exchange).
// Wrapping handles ([LoggingHandle], [SecureHandle]) hold another Handle and
// forward or augment both Send and IsVerifyingDNSSEC.
//
// [Lookup] builds a complete EDNS query message from a logical query and
// dispatches it through any Handle. Message identifiers set here are
// provisional: drivers may rewrite them on the wire.
package xfer
