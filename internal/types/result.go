package types

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// RawResult is the outcome of a single strategy attempt. Exactly one
// of the two shapes is populated: OK with HTML/StatusCode, or !OK with
// Err. Strategies never let an error escape; failures are folded into
// this shape by the engine.
type RawResult struct {
	// OK reports whether the attempt produced a response at all.
	// The block detector still decides whether it is acceptable.
	OK bool

	// HTML is the response body. Present only when OK.
	HTML string

	// StatusCode is the HTTP status, 0 when the strategy cannot
	// observe one (some rendering services swallow it).
	StatusCode int

	// FinalURL is the URL after redirects, empty if unchanged.
	FinalURL string

	// Elapsed is how long the attempt took.
	Elapsed time.Duration

	// Err is the strategy-specific failure message. Present only
	// when !OK.
	Err string
}

// SuccessResult builds an OK RawResult.
func SuccessResult(html string, statusCode int, finalURL string, elapsed time.Duration) *RawResult {
	return &RawResult{
		OK:         true,
		HTML:       html,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		Elapsed:    elapsed,
	}
}

// FailureResult folds an error into the uniform failure shape.
func FailureResult(err error, elapsed time.Duration) *RawResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &RawResult{
		OK:      false,
		Elapsed: elapsed,
		Err:     msg,
	}
}

// Outcome is the engine's final answer for one acquisition.
type Outcome struct {
	// Success reports whether any strategy produced accepted
	// content. HTML is non-empty iff Success.
	Success bool

	// HTML is the accepted document.
	HTML string

	// StatusCode is the HTTP status of the accepted attempt.
	StatusCode int

	// FinalURL is the URL after redirects.
	FinalURL string

	// Strategy names the adapter that produced the content, or
	// "cache" for a cache hit.
	Strategy string

	// CloakedProvenance is true when the content came through a
	// channel origin servers trust as genuine crawler traffic.
	CloakedProvenance bool

	// Cached is true when the content came from the response cache.
	Cached bool

	// Elapsed covers the whole acquisition, cache lookup included.
	Elapsed time.Duration

	// Err classifies the failure when !Success.
	Err error

	doc *goquery.Document
}

// Document returns a parsed goquery document for the outcome HTML,
// lazily initializing it.
func (o *Outcome) Document() (*goquery.Document, error) {
	if o.doc != nil {
		return o.doc, nil
	}
	if o.HTML == "" {
		return nil, ErrEmptyResponse
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(o.HTML))
	if err != nil {
		return nil, err
	}
	o.doc = doc
	return doc, nil
}
