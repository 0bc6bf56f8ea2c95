package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// maxRedirects bounds redirect chains when forwarding to the origin.
const maxRedirects = 10

// redirectTransport follows 3xx redirects from the origin so the browser
// never sees the upstream's own addresses for page content.
type redirectTransport struct {
	inner http.RoundTripper
}

func (rt *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	current := req
	for hops := 0; ; hops++ {
		resp, err := rt.inner.RoundTrip(current)
		if err != nil {
			return nil, err
		}
		if !isRedirect(resp.StatusCode) {
			return resp, nil
		}

		// An unfollowable redirect must never reach the client: its Location
		// names the origin's own addresses.
		loc := resp.Header.Get("Location")
		next, perr := resolveLocation(current.URL, loc)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if hops >= maxRedirects {
			return nil, fmt.Errorf("redirect chain exceeded %d hops", maxRedirects)
		}
		if loc == "" {
			return nil, fmt.Errorf("origin redirect %d without Location", resp.StatusCode)
		}
		if perr != nil {
			return nil, fmt.Errorf("origin redirect location: %w", perr)
		}

		nextReq := current.Clone(current.Context())
		nextReq.URL = next
		nextReq.Host = next.Host
		if resp.StatusCode == http.StatusSeeOther && nextReq.Method != http.MethodGet && nextReq.Method != http.MethodHead {
			nextReq.Method = http.MethodGet
			nextReq.Body = nil
			nextReq.ContentLength = 0
			nextReq.GetBody = nil
		} else if nextReq.GetBody != nil {
			body, err := nextReq.GetBody()
			if err != nil {
				return nil, err
			}
			nextReq.Body = body
		}
		current = nextReq
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base *url.URL, loc string) (*url.URL, error) {
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

// rewindableBody lets a buffered body be replayed across redirect hops.
func rewindableBody(data []byte) (io.ReadCloser, func() (io.ReadCloser, error)) {
	if data == nil {
		return nil, nil
	}
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	body, _ := getBody()
	return body, getBody
}
