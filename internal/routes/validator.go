package routes

import (
	"net/url"
	"strings"
)

// APIPrefix is the reserved path namespace for structured API calls.
const APIPrefix = "/api"

// Query parameter names recognized by the validator.
const (
	ParamAction = "action"
	ParamPage   = "page"
	ParamShort  = "p"
	ParamBrand  = "brand"
	ParamAPI    = "api"
	ParamFormat = "format"
)

// Verdict is the classification of an incoming URL. It is created once per
// request and never mutated afterwards.
type Verdict struct {
	Valid  bool
	Reason string
	IsAPI  bool
	// Page is the resolved logical page for valid page requests.
	Page string
	// PageType selects the error-page theme; meaningful even for invalid
	// verdicts when the page could be derived.
	PageType PageType
}

// Validate classifies u against the route whitelists. It is a pure function
// of the URL and the table: no side effects, idempotent.
func Validate(u *url.URL, t *Table) Verdict {
	q := u.Query()

	isAPI := underAPIPrefix(u.Path) ||
		q.Get(ParamAPI) != "" ||
		q.Get(ParamFormat) == "json"

	if action := q.Get(ParamAction); action != "" {
		if !t.IsAction(action) {
			return Verdict{Valid: false, Reason: "unknown action", IsAPI: true, PageType: PagePublic}
		}
		return Verdict{Valid: true, IsAPI: true, PageType: PagePublic}
	}

	if page := q.Get(ParamPage); page != "" {
		if _, ok := t.Page(page); !ok {
			return Verdict{Valid: false, Reason: "unknown page", IsAPI: isAPI, PageType: PagePublic}
		}
		return Verdict{Valid: true, IsAPI: isAPI, Page: page, PageType: PageTypeOf(page)}
	}

	if alias := q.Get(ParamShort); alias != "" {
		page, ok := t.ShortRoute(alias)
		if !ok {
			return Verdict{Valid: false, Reason: "unknown short route", IsAPI: isAPI, PageType: PagePublic}
		}
		return Verdict{Valid: true, IsAPI: isAPI, Page: page, PageType: PageTypeOf(page)}
	}

	// Path-based classification.
	segs := splitPath(u.Path)
	if len(segs) == 0 {
		// Empty path defaults to the public events page.
		return Verdict{Valid: true, IsAPI: isAPI, Page: DefaultPage, PageType: PagePublic}
	}

	if underAPIPrefix(u.Path) {
		// Action whitelisting for structured API calls happens at body
		// canonicalization, where the action name is known.
		return Verdict{Valid: true, IsAPI: true, PageType: PagePublic}
	}

	first := segs[0]
	target, known := t.Segment(first)
	if !known && !t.IsBrand(first) {
		return Verdict{Valid: false, Reason: "unknown path segment", IsAPI: isAPI, PageType: PagePublic}
	}

	// A brand-scoped path needs its second segment to resolve to a page.
	if t.IsBrand(first) || (known && t.IsBrand(target)) {
		if len(segs) == 1 {
			return Verdict{Valid: true, IsAPI: isAPI, Page: DefaultPage, PageType: PagePublic}
		}
		sub, ok := t.Segment(segs[1])
		if !ok || t.IsBrand(sub) {
			return Verdict{Valid: false, Reason: "unknown page under brand", IsAPI: isAPI, PageType: PagePublic}
		}
		return Verdict{Valid: true, IsAPI: isAPI, Page: sub, PageType: PageTypeOf(sub)}
	}

	return Verdict{Valid: true, IsAPI: isAPI, Page: target, PageType: PageTypeOf(target)}
}

func underAPIPrefix(path string) bool {
	return path == APIPrefix || strings.HasPrefix(path, APIPrefix+"/")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
