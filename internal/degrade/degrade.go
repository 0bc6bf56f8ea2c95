// Package degrade synthesizes well-formed failure responses: structured JSON
// for API callers, branded HTML for page callers, both carrying a
// correlation ID. Failures are logged without ever blocking the response.
package degrade

import (
	"html/template"
	"net/http"
	"time"

	"github.com/eventhub/edge-gateway/internal/errors"
	"github.com/eventhub/edge-gateway/internal/routes"
	"github.com/eventhub/edge-gateway/internal/templates"
)

// retryAfterSeconds is the retry guidance attached to transient failures.
const retryAfterSeconds = "30"

// kioskRefreshSeconds is the auto-reload countdown on display surfaces.
const kioskRefreshSeconds = 20

// actionSampleSize bounds the whitelist sample included in 404 payloads.
const actionSampleSize = 5

// ErrorContext captures everything needed to render and log one failure.
// It is created on the failure path, logged asynchronously, rendered into a
// response, then discarded.
type ErrorContext struct {
	CorrID   string
	Kind     errors.Kind
	Detail   string
	IsAPI    bool
	PageType routes.PageType
}

// Renderer renders degraded responses against a fixed route table and
// template set.
type Renderer struct {
	table *routes.Table
	sink  *Sink
	pages map[string]*template.Template
}

// NewRenderer creates a Renderer. store may be nil; embedded themes are used
// for any key the store misses.
func NewRenderer(table *routes.Table, store *templates.Store, sink *Sink) *Renderer {
	return &Renderer{
		table: table,
		sink:  sink,
		pages: loadTemplates(store),
	}
}

// Respond converts a classified failure into the terminal client response and
// fires the log entry. started is the request start time, used for the
// logged duration.
func (rn *Renderer) Respond(w http.ResponseWriter, r *http.Request, ge *errors.GatewayError, v routes.Verdict, started time.Time) {
	ectx := ErrorContext{
		CorrID:   NewCorrID(),
		Kind:     ge.Kind,
		Detail:   ge.Message,
		IsAPI:    v.IsAPI,
		PageType: v.PageType,
	}

	w.Header().Set("X-Correlation-ID", ectx.CorrID)
	if ectx.Kind.Transient() {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	if ectx.IsAPI {
		rn.writeJSON(w, ectx)
	} else {
		rn.writeHTML(w, ectx)
	}

	rn.sink.Notify(Entry{
		Timestamp:      time.Now().UTC(),
		CorrID:         ectx.CorrID,
		Type:           ectx.Kind.LogType(),
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		IsAPI:          ectx.IsAPI,
		Status:         ectx.Kind.Status(),
		UpstreamStatus: ge.UpstreamStatus,
		Detail:         ectx.Detail,
		DurationMs:     time.Since(started).Milliseconds(),
	})
}

func (rn *Renderer) writeJSON(w http.ResponseWriter, ectx ErrorContext) {
	env := errors.Envelope{
		Code:    ectx.Kind,
		Message: ectx.Detail,
		CorrID:  ectx.CorrID,
	}
	if ectx.Kind == errors.KindInvalidRoute {
		env.Valid = rn.table.SampleActions(actionSampleSize)
	}
	env.WriteJSON(w)
}

func (rn *Renderer) writeHTML(w http.ResponseWriter, ectx ErrorContext) {
	key, data := rn.pageFor(ectx)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(ectx.Kind.Status())
	rn.pages[key].Execute(w, data)
}

// pageFor selects the theme and copy for a failure. Display and poster
// surfaces run unattended, so transient failures there reload themselves.
func (rn *Renderer) pageFor(ectx ErrorContext) (string, pageData) {
	data := pageData{
		CorrID:    ectx.CorrID,
		Retryable: ectx.Kind.Transient(),
	}

	switch ectx.Kind {
	case errors.KindInvalidRoute:
		data.Title = "Page not found"
		data.Heading = "We couldn't find that page"
		data.Message = "The address may be mistyped or the page may have moved."
		data.Routes = rn.table.TopLevelRoutes()
		return keyNotFound, data
	case errors.KindTimeout:
		data.Title = "Taking longer than usual"
		data.Heading = "This is taking longer than usual"
		data.Message = "The event service is slow to respond right now."
	case errors.KindBadInput:
		data.Title = "Bad request"
		data.Heading = "We couldn't read that request"
		data.Message = ectx.Detail
	default:
		data.Title = "Temporary issue"
		data.Heading = "There's a temporary issue"
		data.Message = "The event service had a hiccup. It usually recovers in a moment."
	}

	if ectx.Kind.Transient() && (ectx.PageType == routes.PageDisplay || ectx.PageType == routes.PagePoster) {
		data.RefreshSeconds = kioskRefreshSeconds
		return keyKiosk, data
	}
	return keyStandard, data
}
