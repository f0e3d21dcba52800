package catalog

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
)

// Route sources reported by Resolve.
const (
	SourceConfig  = "config"
	SourceFile    = "file"
	SourceDefault = "default"
)

// FromConfig builds a Catalog from inline route declarations.
func FromConfig(routes []config.RouteConfig) (*Catalog, error) {
	out := make([]model.Route, 0, len(routes))
	for i, r := range routes {
		tier, err := model.ParseTier(r.Tier)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: routes[%d] %q", i, r.Name)
		}
		out = append(out, model.Route{Name: r.Name, Tier: tier, Areas: r.Areas})
	}
	return New(out)
}

// Resolve picks the route catalog for cfg: inline routes first, then
// routes_file, then the built-in Tokyo catalog. It also reports which
// source was used.
func Resolve(cfg *config.Config) (*Catalog, string, error) {
	switch {
	case len(cfg.Routes) > 0:
		c, err := FromConfig(cfg.Routes)
		return c, SourceConfig, err
	case cfg.RoutesFile != "":
		c, err := LoadFile(cfg.RoutesFile)
		return c, SourceFile, err
	default:
		return Default(), SourceDefault, nil
	}
}
