// Package gateway wires the request pipeline: validate, transform, forward,
// finish, with the degradation layer short-circuiting at the first failure.
package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventhub/edge-gateway/internal/config"
	"github.com/eventhub/edge-gateway/internal/degrade"
	gwerrors "github.com/eventhub/edge-gateway/internal/errors"
	"github.com/eventhub/edge-gateway/internal/metrics"
	"github.com/eventhub/edge-gateway/internal/middleware/cors"
	"github.com/eventhub/edge-gateway/internal/proxy"
	"github.com/eventhub/edge-gateway/internal/routes"
	"github.com/eventhub/edge-gateway/internal/templates"
	"github.com/eventhub/edge-gateway/internal/transform"
)

// proxyIdentity is the value of the identity header stamped on every response.
const proxyIdentity = "edge-gateway"

// Gateway is the edge proxy handler. All of its state is immutable after
// construction; requests share nothing else.
type Gateway struct {
	cfg         *config.Config
	table       *routes.Table
	transformer *transform.Transformer
	forwarder   *proxy.Forwarder
	renderer    *degrade.Renderer
	collector   *metrics.Collector
	sink        *degrade.Sink
	version     string
}

// New builds a Gateway from validated configuration.
func New(cfg *config.Config, version string) (*Gateway, error) {
	table := routes.DefaultTable()
	if cfg.Routes.File != "" {
		var err error
		table, err = routes.LoadTable(cfg.Routes.File)
		if err != nil {
			return nil, fmt.Errorf("route table: %w", err)
		}
	}

	base, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream base URL: %w", err)
	}

	store, err := templates.New(cfg.Templates.Dir, cfg.Templates.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("template store: %w", err)
	}

	sink := degrade.NewSink(cfg.LogSink.URL, cfg.LogSink.Timeout)

	return &Gateway{
		cfg:         cfg,
		table:       table,
		transformer: transform.New(table, base, cfg.Upstream.LegacyPrefix),
		forwarder:   proxy.New(proxy.Config{Timeout: cfg.Upstream.Timeout}),
		renderer:    degrade.NewRenderer(table, store, sink),
		collector:   metrics.NewCollector(),
		sink:        sink,
		version:     version,
	}, nil
}

// Table returns the frozen route table (read-only, for the admin surface).
func (g *Gateway) Table() *routes.Table { return g.table }

// Metrics returns the gateway's metrics collector.
func (g *Gateway) Metrics() *metrics.Collector { return g.collector }

// Close releases background resources (the log sink worker).
func (g *Gateway) Close() { g.sink.Close() }

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	h := w.Header()
	h.Set("X-Proxied-By", proxyIdentity)
	h.Set("X-Proxy-Version", g.version)
	tw := &timedWriter{ResponseWriter: w, started: started}
	w = tw

	// Preflights are answered locally, never forwarded.
	if cors.IsPreflight(r) {
		g.collector.RecordPreflight()
		cors.HandlePreflight(w)
		return
	}

	// Static assets are the one case where the origin's own host may reach
	// the browser: redirect instead of proxying.
	if g.cfg.Upstream.AssetHost != "" {
		for _, prefix := range g.cfg.Upstream.AssetPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				http.Redirect(w, r, g.cfg.Upstream.AssetHost+r.URL.Path, http.StatusFound)
				g.collector.RecordRequest(false, r.Method, http.StatusFound)
				return
			}
		}
	}

	// The backend's client-side scripts post telemetry that validates the
	// posting origin; answer with a stub instead of forwarding.
	for _, path := range g.cfg.Upstream.TelemetryPaths {
		if r.URL.Path == path {
			h.Set("Content-Type", "application/json; charset=utf-8")
			w.Write([]byte(`{"ok":true}`))
			g.collector.RecordRequest(true, r.Method, http.StatusOK)
			return
		}
	}

	verdict := routes.Validate(r.URL, g.table)
	if p := g.cfg.Upstream.LegacyPrefix; p != "" && strings.HasPrefix(r.URL.Path, p+"/") {
		// Positional paths under the legacy prefix map straight onto the
		// backend and carry no page semantics.
		verdict = routes.Verdict{Valid: true, IsAPI: true, PageType: routes.PagePublic}
	}
	if !verdict.Valid {
		g.degrade(w, r, gwerrors.InvalidRoute(verdict.Reason), verdict, started)
		return
	}

	target, err := g.transformer.Build(r, verdict)
	if err != nil {
		g.degrade(w, r, gwerrors.Classify(err), verdict, started)
		return
	}

	upstreamStart := time.Now()
	resp, err := g.forwarder.Forward(r.Context(), target)
	g.collector.RecordUpstream(time.Since(upstreamStart))
	if err != nil {
		g.degrade(w, r, gwerrors.Classify(err), verdict, started)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		g.degrade(w, r, gwerrors.Upstream(resp.StatusCode), verdict, started)
		return
	}

	g.finish(w, resp, verdict)
	g.collector.RecordRequest(verdict.IsAPI, r.Method, resp.StatusCode)
}

// finish post-processes a successful upstream response: CORS and cache
// directives for API callers, transparent pass-through for pages.
func (g *Gateway) finish(w http.ResponseWriter, resp *http.Response, verdict routes.Verdict) {
	dst := w.Header()
	for k, vv := range resp.Header {
		// The proxy's own identity stamps always win over origin copies.
		switch http.CanonicalHeaderKey(k) {
		case "X-Proxied-By", "X-Proxy-Version":
			continue
		}
		dst[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(dst)

	if verdict.IsAPI {
		cors.Apply(w)
		if dst.Get("Cache-Control") == "" {
			dst.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
	}

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (g *Gateway) degrade(w http.ResponseWriter, r *http.Request, ge *gwerrors.GatewayError, verdict routes.Verdict, started time.Time) {
	g.collector.RecordError(ge.Kind.LogType())
	g.collector.RecordRequest(verdict.IsAPI, r.Method, ge.Kind.Status())
	g.renderer.Respond(w, r, ge, verdict, started)
}

// timedWriter stamps the elapsed-duration header when the response commits.
type timedWriter struct {
	http.ResponseWriter
	started     time.Time
	wroteHeader bool
}

func (w *timedWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Set("X-Response-Time", time.Since(w.started).Round(time.Microsecond).String())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	for _, h := range hopHeaders {
		header.Del(h)
	}
}
