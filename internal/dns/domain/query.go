package domain

import (
	"fmt"

	"github.com/haukened/dnsxfer/internal/dns/common/utils"
)

// Query is the logical question a caller wants resolved: a name, a record
// type and a class. It carries no message identifier; identifiers belong to
// the outbound message built around it.
type Query struct {
	Name  string
	Type  RRType
	Class RRClass
}

// NewQuery constructs a Query, normalizing the name to its canonical,
// fully-qualified ASCII form and validating every field.
func NewQuery(name string, rrtype RRType, class RRClass) (Query, error) {
	canonical, err := utils.CanonicalDNSName(name)
	if err != nil {
		return Query{}, err
	}
	q := Query{
		Name:  canonical,
		Type:  rrtype,
		Class: class,
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks whether the Query fields are structurally and semantically valid.
func (q Query) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	if !q.Type.IsValid() {
		return fmt.Errorf("unsupported RRType: %d", q.Type)
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", q.Class)
	}
	return nil
}

// String renders the query in presentation order, e.g. "example.com. IN A".
func (q Query) String() string {
	return q.Name + " " + q.Class.String() + " " + q.Type.String()
}
