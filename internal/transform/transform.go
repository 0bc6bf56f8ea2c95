// Package transform derives the upstream forwarding target from a validated
// incoming request.
package transform

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/eventhub/edge-gateway/internal/errors"
	"github.com/eventhub/edge-gateway/internal/routes"
)

// methodPrefix is the conventional prefix carried by RPC method names; it is
// stripped when deriving the action identifier.
const methodPrefix = "api_"

// rpcEndpoint is the single generic dispatch endpoint under the API prefix.
const rpcEndpoint = "rpc"

// maxBodyBytes bounds how much of a request body is read into memory.
const maxBodyBytes = 4 << 20

// Target is the fully resolved upstream request. Immutable once built.
type Target struct {
	URL    string
	Method string
	// Header is a read-only view of the incoming headers; the forwarder
	// copies only its whitelisted subset upstream.
	Header http.Header
	Body   []byte
	// JSONBody marks canonicalized API bodies, forwarded as application/json.
	JSONBody bool
}

// Transformer builds forward targets against a fixed upstream base URL.
type Transformer struct {
	table        *routes.Table
	base         *url.URL
	legacyPrefix string
}

// New creates a Transformer. base is the upstream base URL; legacyPrefix is
// the optional top-level namespace stripped from legacy proxy paths.
func New(table *routes.Table, base *url.URL, legacyPrefix string) *Transformer {
	return &Transformer{
		table:        table,
		base:         base,
		legacyPrefix: strings.TrimSuffix(legacyPrefix, "/"),
	}
}

// Build derives the Target for a valid, classified request. It never builds a
// target for an invalid verdict. Structured API requests have their bodies
// canonicalized; a whitelist miss or malformed body is returned as a
// *errors.GatewayError with zero upstream calls made.
func (t *Transformer) Build(r *http.Request, v routes.Verdict) (*Target, error) {
	if !v.Valid {
		return nil, fmt.Errorf("transform called with invalid verdict (%s)", v.Reason)
	}

	if isStructuredAPI(r.URL.Path) {
		return t.buildAPITarget(r)
	}

	if t.legacyPrefix != "" && underPrefix(r.URL.Path, t.legacyPrefix) {
		return t.buildLegacyTarget(r)
	}

	return t.buildPageTarget(r, v)
}

// buildPageTarget strips a recognized prefix (brand or page alias) from the
// path and injects a page parameter derived from the first segment when the
// query did not already carry one.
func (t *Transformer) buildPageTarget(r *http.Request, v routes.Verdict) (*Target, error) {
	segs := splitPath(r.URL.Path)
	q := r.URL.Query()

	residual := segs
	if len(segs) > 0 {
		first := segs[0]
		if t.table.IsBrand(first) {
			if q.Get(routes.ParamBrand) == "" {
				q.Set(routes.ParamBrand, first)
			}
			residual = segs[1:]
		}
		if len(residual) > 0 {
			if _, known := t.table.Segment(residual[0]); known {
				residual = residual[1:]
			}
		}
	}

	if q.Get(routes.ParamPage) == "" && v.Page != "" {
		q.Set(routes.ParamPage, v.Page)
	}

	target := t.joinUpstream(strings.Join(residual, "/"), q.Encode())

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	return &Target{
		URL:    target,
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	}, nil
}

// buildLegacyTarget strips the single known top-level prefix and appends the
// residual path plus the original query string verbatim, preserving
// positional path info for the backend.
func (t *Transformer) buildLegacyTarget(r *http.Request) (*Target, error) {
	residual := strings.TrimPrefix(r.URL.Path, t.legacyPrefix)
	residual = strings.TrimPrefix(residual, "/")

	target := t.joinUpstream(residual, r.URL.RawQuery)

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	return &Target{
		URL:    target,
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	}, nil
}

// buildAPITarget normalizes both structured API shapes into the canonical
// {action: <name>, ...payload} POST body.
func (t *Transformer) buildAPITarget(r *http.Request) (*Target, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	segs := splitPath(strings.TrimPrefix(r.URL.Path, routes.APIPrefix))

	var action, payload string
	switch {
	case len(segs) == 1 && segs[0] == rpcEndpoint:
		// Shape (a): the body names a method and carries a payload object.
		if len(body) == 0 || !gjson.ValidBytes(body) {
			return nil, errors.BadInput("request body must be a JSON object")
		}
		parsed := gjson.ParseBytes(body)
		method := parsed.Get("method")
		if !method.Exists() || method.Type != gjson.String || method.String() == "" {
			return nil, errors.BadInput("missing method field")
		}
		action = strings.TrimPrefix(method.String(), methodPrefix)
		payload = "{}"
		if p := parsed.Get("payload"); p.Exists() {
			if !p.IsObject() {
				return nil, errors.BadInput("payload must be an object")
			}
			payload = p.Raw
		}
	case len(segs) >= 1:
		// Shape (b): the trailing path segment names the action, the body is
		// the raw payload.
		action = strings.TrimPrefix(segs[len(segs)-1], methodPrefix)
		payload = "{}"
		if len(body) > 0 {
			if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
				return nil, errors.BadInput("request body must be a JSON object")
			}
			payload = string(body)
		}
	default:
		return nil, errors.InvalidRoute("missing API action path")
	}

	if !t.table.IsAction(action) {
		return nil, errors.InvalidRoute("unknown action " + action)
	}

	canonical, err := canonicalBody(action, payload)
	if err != nil {
		return nil, errors.BadInput("cannot canonicalize request body")
	}

	q := url.Values{}
	q.Set(routes.ParamAction, action)

	return &Target{
		URL:      t.joinUpstream("", q.Encode()),
		Method:   http.MethodPost,
		Header:   r.Header,
		Body:     canonical,
		JSONBody: true,
	}, nil
}

// canonicalBody builds {"action": name, ...payload}, action key first.
func canonicalBody(action, payload string) ([]byte, error) {
	out, err := sjson.Set("{}", routes.ParamAction, action)
	if err != nil {
		return nil, err
	}
	var ferr error
	gjson.Parse(payload).ForEach(func(key, value gjson.Result) bool {
		if key.String() == routes.ParamAction {
			return true // the derived action wins over a payload field
		}
		out, ferr = sjson.SetRaw(out, escapeKey(key.String()), value.Raw)
		return ferr == nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return []byte(out), nil
}

// escapeKey makes a literal JSON key safe to use as a path: dots, wildcards
// and the other path metacharacters must not split or match, they are part
// of the key.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', ':', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t *Transformer) joinUpstream(residual, rawQuery string) string {
	u := *t.base
	if residual != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + residual
	}
	u.RawQuery = rawQuery
	return u.String()
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}

func isStructuredAPI(path string) bool {
	return path == routes.APIPrefix || strings.HasPrefix(path, routes.APIPrefix+"/")
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
