package types

import (
	"fmt"
	"net/url"
)

// Identity selects which kind of caller a fetch should impersonate.
type Identity string

const (
	// IdentityCrawler presents the request as an automated
	// search-engine crawler.
	IdentityCrawler Identity = "crawler"

	// IdentityVisitor presents the request as an ordinary browser
	// user.
	IdentityVisitor Identity = "visitor"
)

// Valid reports whether i is one of the known identities.
func (i Identity) Valid() bool {
	return i == IdentityCrawler || i == IdentityVisitor
}

// Options tune a single acquisition.
type Options struct {
	// SkipGateway disables the trusted crawler-gateway strategy for
	// this request.
	SkipGateway bool

	// PreferCloakedProvenance restricts the cascade to strategies
	// whose traffic origin servers trust as genuine crawler traffic.
	PreferCloakedProvenance bool

	// NoCache bypasses the response cache for this request. The
	// result is still written back on success.
	NoCache bool
}

// Request is one acquisition request: a target URL fetched under an
// identity.
type Request struct {
	URL      *url.URL
	Identity Identity
	Options  Options
}

// NewRequest validates rawURL and builds a Request. The URL must be
// absolute with an http or https scheme.
func NewRequest(rawURL string, identity Identity) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, rawURL)
	}
	if !identity.Valid() {
		return nil, fmt.Errorf("unknown identity %q", identity)
	}

	return &Request{
		URL:      u,
		Identity: identity,
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
