package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// newHTTPClient builds the http.Client shared by the API-style
// strategies (gateway, translate, render, solver). Compression is
// handled manually so brotli responses work too.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// setBrowserHeaders applies a regular-browser header set to a request.
func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
}

// readBody reads a response body with decompression and a size limit.
func readBody(resp *http.Response, maxBytes int64) (string, error) {
	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(reader, maxBytes)
	}

	reader, err := decompressReader(resp, reader)
	if err != nil {
		return "", err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
