// Package catalog holds the static set of target commute routes and resolves
// station or area names to the route they belong to.
package catalog

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-finder/internal/model"
)

// Catalog is an immutable, validated set of routes. Safe for concurrent use.
type Catalog struct {
	routes []model.Route
	// index maps a normalized area name to the positions of every route that
	// lists it, in declaration order.
	index map[string][]int
}

// New validates routes and builds a Catalog. Route names must be unique across
// the catalog and area names unique within a route, both compared after
// normalization. Every route needs a valid tier and at least one area.
func New(routes []model.Route) (*Catalog, error) {
	c := &Catalog{
		routes: make([]model.Route, 0, len(routes)),
		index:  make(map[string][]int),
	}

	seenRoutes := make(map[string]bool, len(routes))
	for i, r := range routes {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, eris.Errorf("catalog: route %d has no name", i)
		}
		key := Normalize(name)
		if seenRoutes[key] {
			return nil, eris.Errorf("catalog: duplicate route %q", name)
		}
		seenRoutes[key] = true

		if !r.Tier.Valid() {
			return nil, eris.Errorf("catalog: route %q has invalid tier", name)
		}
		if len(r.Areas) == 0 {
			return nil, eris.Errorf("catalog: route %q has no areas", name)
		}

		areas := make([]string, 0, len(r.Areas))
		seenAreas := make(map[string]bool, len(r.Areas))
		for _, a := range r.Areas {
			ak := Normalize(a)
			if ak == "" {
				return nil, eris.Errorf("catalog: route %q has an empty area name", name)
			}
			if seenAreas[ak] {
				return nil, eris.Errorf("catalog: route %q lists area %q twice", name, a)
			}
			seenAreas[ak] = true
			areas = append(areas, strings.TrimSpace(a))
			c.index[ak] = append(c.index[ak], len(c.routes))
		}

		c.routes = append(c.routes, model.Route{Name: name, Tier: r.Tier, Areas: areas})
	}

	return c, nil
}

// Lookup resolves a station or area name. When the name belongs to several
// routes the highest tier wins, and among equal tiers the route declared first.
// The returned route is shared and must not be modified.
func (c *Catalog) Lookup(name string) (*model.Route, bool) {
	key := Normalize(name)
	if key == "" {
		return nil, false
	}
	positions, ok := c.index[key]
	if !ok {
		return nil, false
	}

	best := positions[0]
	for _, p := range positions[1:] {
		if c.routes[p].Tier > c.routes[best].Tier {
			best = p
		}
	}
	return &c.routes[best], true
}

// Routes returns a copy of the routes in declaration order.
func (c *Catalog) Routes() []model.Route {
	out := make([]model.Route, len(c.routes))
	for i, r := range c.routes {
		out[i] = model.Route{Name: r.Name, Tier: r.Tier, Areas: append([]string(nil), r.Areas...)}
	}
	return out
}

// Len returns the number of routes.
func (c *Catalog) Len() int { return len(c.routes) }

// Normalize folds width and case so that "ＥＢＩＳＵ", "Ebisu" and " ebisu "
// compare equal. Full-width katakana is left as is; half-width katakana is widened.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so build one per call.
	return cases.Fold().String(width.Fold.String(s))
}

type routeFile struct {
	Routes []model.Route `yaml:"routes"`
}

// LoadFile reads a YAML route file of the form
//
//	routes:
//	  - name: Pink
//	    tier: PREMIUM
//	    areas: [目黒, 恵比寿]
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	return New(f.Routes)
}
