package routes

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"
)

// PageType selects the visual theme used when rendering branded error pages.
type PageType string

const (
	PageAdmin   PageType = "admin"
	PageDisplay PageType = "display"
	PagePoster  PageType = "poster"
	PageReport  PageType = "report"
	PagePublic  PageType = "public"
)

// DefaultPage is the logical page served for an empty path.
const DefaultPage = "events"

// TableConfig is the YAML shape of a route-table file. All four maps are
// optional; unset maps fall back to the built-in defaults.
type TableConfig struct {
	Pages        map[string]string `yaml:"pages"`
	ShortRoutes  map[string]string `yaml:"short_routes"`
	APIActions   []string          `yaml:"api_actions"`
	PathSegments map[string]string `yaml:"path_segments"`
	Brands       []string          `yaml:"brands"`
}

// Table holds the frozen route whitelists. It is built once at startup and
// never mutated afterwards; table changes require a new deployment.
type Table struct {
	pages        map[string]string
	shortRoutes  map[string]string
	apiActions   map[string]struct{}
	pathSegments map[string]string
	brands       map[string]struct{}

	sortedActions []string
	topLevel      []string
}

func defaultTableConfig() TableConfig {
	return TableConfig{
		Pages: map[string]string{
			"events":   "events",
			"admin":    "admin",
			"display":  "display",
			"poster":   "poster",
			"report":   "report",
			"sponsors": "sponsors",
		},
		ShortRoutes: map[string]string{
			"a":     "admin",
			"tv":    "display",
			"stats": "report",
			"s":     "sponsors",
		},
		APIActions: []string{
			"list", "get", "create", "update", "delete",
			"listSponsors", "saveSponsor", "reportSummary", "health",
		},
		PathSegments: map[string]string{
			"events":   "events",
			"admin":    "admin",
			"display":  "display",
			"tv":       "display",
			"poster":   "poster",
			"report":   "report",
			"sponsors": "sponsors",
		},
		Brands: []string{"root"},
	}
}

// NewTable builds a Table from cfg, filling unset maps from the defaults and
// checking the cross-reference invariant: every short-route and path-segment
// value must resolve to a canonical page, and brands must not shadow pages.
func NewTable(cfg TableConfig) (*Table, error) {
	def := defaultTableConfig()
	if cfg.Pages == nil {
		cfg.Pages = def.Pages
	}
	if cfg.ShortRoutes == nil {
		cfg.ShortRoutes = def.ShortRoutes
	}
	if cfg.APIActions == nil {
		cfg.APIActions = def.APIActions
	}
	if cfg.PathSegments == nil {
		cfg.PathSegments = def.PathSegments
	}
	if cfg.Brands == nil {
		cfg.Brands = def.Brands
	}

	t := &Table{
		pages:        make(map[string]string, len(cfg.Pages)),
		shortRoutes:  make(map[string]string, len(cfg.ShortRoutes)),
		apiActions:   make(map[string]struct{}, len(cfg.APIActions)),
		pathSegments: make(map[string]string, len(cfg.PathSegments)),
		brands:       make(map[string]struct{}, len(cfg.Brands)),
	}
	for k, v := range cfg.Pages {
		t.pages[k] = v
	}
	for _, b := range cfg.Brands {
		t.brands[b] = struct{}{}
	}
	for k, v := range cfg.ShortRoutes {
		if _, ok := t.pages[v]; !ok {
			return nil, fmt.Errorf("short route %q maps to unknown page %q", k, v)
		}
		t.shortRoutes[k] = v
	}
	for k, v := range cfg.PathSegments {
		if _, isPage := t.pages[v]; !isPage {
			if _, isBrand := t.brands[v]; !isBrand {
				return nil, fmt.Errorf("path segment %q maps to %q which is neither a page nor a brand", k, v)
			}
		}
		t.pathSegments[k] = v
	}
	for _, a := range cfg.APIActions {
		t.apiActions[a] = struct{}{}
	}
	if _, ok := t.pages[DefaultPage]; !ok {
		return nil, fmt.Errorf("pages must include the default page %q", DefaultPage)
	}

	t.sortedActions = append(t.sortedActions, cfg.APIActions...)
	sort.Strings(t.sortedActions)
	for seg := range t.pathSegments {
		t.topLevel = append(t.topLevel, seg)
	}
	sort.Strings(t.topLevel)

	return t, nil
}

// DefaultTable builds a Table from the built-in whitelists.
func DefaultTable() *Table {
	t, err := NewTable(TableConfig{})
	if err != nil {
		panic(err) // defaults are self-consistent
	}
	return t
}

// LoadTable reads a route-table YAML file and builds a Table from it.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	var cfg TableConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}
	return NewTable(cfg)
}

// Page resolves a logical page name to its canonical identifier.
func (t *Table) Page(name string) (string, bool) {
	v, ok := t.pages[name]
	return v, ok
}

// ShortRoute resolves a short alias to its logical page.
func (t *Table) ShortRoute(alias string) (string, bool) {
	v, ok := t.shortRoutes[alias]
	return v, ok
}

// IsAction reports whether an action identifier is whitelisted.
func (t *Table) IsAction(name string) bool {
	_, ok := t.apiActions[name]
	return ok
}

// Segment resolves a URL path segment to a logical page or brand identifier.
func (t *Table) Segment(seg string) (string, bool) {
	v, ok := t.pathSegments[seg]
	return v, ok
}

// IsBrand reports whether an identifier is a recognized brand.
func (t *Table) IsBrand(id string) bool {
	_, ok := t.brands[id]
	return ok
}

// SampleActions returns up to n whitelisted actions, sorted, for inclusion in
// not-found error payloads.
func (t *Table) SampleActions(n int) []string {
	if n > len(t.sortedActions) {
		n = len(t.sortedActions)
	}
	return t.sortedActions[:n]
}

// Actions returns all whitelisted actions, sorted.
func (t *Table) Actions() []string {
	return t.sortedActions
}

// TopLevelRoutes returns the sorted path segments, for the branded 404 page.
func (t *Table) TopLevelRoutes() []string {
	return t.topLevel
}

// PageTypeOf derives the theme for a logical page. Unknown pages get the
// public theme.
func PageTypeOf(page string) PageType {
	switch page {
	case "admin":
		return PageAdmin
	case "display":
		return PageDisplay
	case "poster":
		return PagePoster
	case "report":
		return PageReport
	}
	return PagePublic
}
