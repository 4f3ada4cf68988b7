// Package catalog reads Gradle version catalogs (gradle/libs.versions.toml)
// and answers `libs.` accessor lookups for the property resolver.
package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
)

// DefaultPath is the catalog location relative to the build root.
var DefaultPath = filepath.Join("gradle", "libs.versions.toml")

// Library is one [libraries] entry.
type Library struct {
	Alias   string
	Group   string
	Name    string
	Version string
}

// Coordinate returns group:name[:version].
func (l Library) Coordinate() string {
	if l.Version == "" {
		return l.Group + ":" + l.Name
	}
	return l.Group + ":" + l.Name + ":" + l.Version
}

// Plugin is one [plugins] entry.
type Plugin struct {
	Alias   string
	ID      string
	Version string
}

// Catalog is a parsed version catalog. Keys are accessor paths with `-`
// and `_` folded to `.`, as Gradle generates them.
type Catalog struct {
	Name      string
	versions  map[string]string
	libraries map[string]Library
	plugins   map[string]Plugin
	bundles   map[string][]string
}

var _ dsl.CatalogLookup = (*Catalog)(nil)

type document struct {
	Versions  map[string]any      `toml:"versions"`
	Libraries map[string]any      `toml:"libraries"`
	Plugins   map[string]any      `toml:"plugins"`
	Bundles   map[string][]string `toml:"bundles"`
}

// Load reads root/gradle/libs.versions.toml from fs.
func Load(fs afero.Fs, root string) (*Catalog, error) {
	path := filepath.Join(root, DefaultPath)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog TOML. Entries with an unrecognized shape are
// skipped.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		Name:      "libs",
		versions:  make(map[string]string),
		libraries: make(map[string]Library),
		plugins:   make(map[string]Plugin),
		bundles:   make(map[string][]string),
	}

	for alias, raw := range doc.Versions {
		if v, ok := richVersion(raw); ok {
			c.versions[accessor(alias)] = v
		} else {
			slog.Debug("catalog.skip", "section", "versions", "alias", alias)
		}
	}
	for alias, raw := range doc.Libraries {
		lib, ok := c.library(alias, raw)
		if !ok {
			slog.Debug("catalog.skip", "section", "libraries", "alias", alias)
			continue
		}
		c.libraries[accessor(alias)] = lib
	}
	for alias, raw := range doc.Plugins {
		p, ok := c.plugin(alias, raw)
		if !ok {
			slog.Debug("catalog.skip", "section", "plugins", "alias", alias)
			continue
		}
		c.plugins[accessor(alias)] = p
	}
	for alias, libs := range doc.Bundles {
		c.bundles[accessor(alias)] = libs
	}
	return c, nil
}

// accessor folds alias separators the way generated accessors do.
func accessor(alias string) string {
	return strings.NewReplacer("-", ".", "_", ".").Replace(alias)
}

// richVersion accepts "1.0" or {strictly|require|prefer = "1.0"}.
func richVersion(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case map[string]any:
		for _, key := range []string{"require", "strictly", "prefer"} {
			if s, ok := v[key].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// version resolves a library or plugin version field, including
// `version.ref`.
func (c *Catalog) version(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		if ref, ok := m["ref"].(string); ok {
			return c.versions[accessor(ref)]
		}
	}
	v, _ := richVersion(raw)
	return v
}

func (c *Catalog) library(alias string, raw any) (Library, bool) {
	lib := Library{Alias: alias}
	switch v := raw.(type) {
	case string:
		parts := strings.Split(v, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return lib, false
		}
		lib.Group, lib.Name = parts[0], parts[1]
		if len(parts) == 3 {
			lib.Version = parts[2]
		}
	case map[string]any:
		if module, ok := v["module"].(string); ok {
			g, n, found := strings.Cut(module, ":")
			if !found {
				return lib, false
			}
			lib.Group, lib.Name = g, n
		} else {
			lib.Group, _ = v["group"].(string)
			lib.Name, _ = v["name"].(string)
			if lib.Group == "" || lib.Name == "" {
				return lib, false
			}
		}
		if ver, ok := v["version"]; ok {
			lib.Version = c.version(ver)
		}
	default:
		return lib, false
	}
	return lib, true
}

func (c *Catalog) plugin(alias string, raw any) (Plugin, bool) {
	p := Plugin{Alias: alias}
	switch v := raw.(type) {
	case string:
		p.ID, p.Version, _ = strings.Cut(v, ":")
	case map[string]any:
		p.ID, _ = v["id"].(string)
		if ver, ok := v["version"]; ok {
			p.Version = c.version(ver)
		}
	}
	return p, p.ID != ""
}

// Lookup resolves a full accessor reference such as
// "libs.versions.kotlin", "libs.plugins.kotlin.android" or "libs.guava".
// Libraries resolve to their coordinate, plugins to their id.
func (c *Catalog) Lookup(ref string) (dsl.Value, bool) {
	rest, ok := strings.CutPrefix(ref, c.Name+".")
	if !ok {
		return dsl.Value{}, false
	}
	section, key, _ := strings.Cut(rest, ".")
	switch section {
	case "versions":
		if v, ok := c.versions[key]; ok {
			return dsl.StringValue(v), true
		}
		return dsl.Value{}, false
	case "plugins":
		if p, ok := c.plugins[key]; ok {
			return dsl.StringValue(p.ID), true
		}
		return dsl.Value{}, false
	case "bundles":
		if b, ok := c.bundles[key]; ok {
			coords := make([]string, 0, len(b))
			for _, alias := range b {
				if lib, ok := c.libraries[accessor(alias)]; ok {
					coords = append(coords, lib.Coordinate())
				}
			}
			return dsl.StringValue(strings.Join(coords, ", ")), true
		}
		return dsl.Value{}, false
	}
	if lib, ok := c.libraries[rest]; ok {
		return dsl.StringValue(lib.Coordinate()), true
	}
	return dsl.Value{}, false
}

// Library returns the library behind a `libs.` reference.
func (c *Catalog) Library(ref string) (Library, bool) {
	rest, ok := strings.CutPrefix(ref, c.Name+".")
	if !ok {
		return Library{}, false
	}
	lib, ok := c.libraries[rest]
	return lib, ok
}

// Plugin returns the plugin behind a `libs.plugins.` reference.
func (c *Catalog) Plugin(ref string) (Plugin, bool) {
	rest, ok := strings.CutPrefix(ref, c.Name+".plugins.")
	if !ok {
		return Plugin{}, false
	}
	p, ok := c.plugins[rest]
	return p, ok
}

// Libraries returns all libraries sorted by alias.
func (c *Catalog) Libraries() []Library {
	out := make([]Library, 0, len(c.libraries))
	for _, lib := range c.libraries {
		out = append(out, lib)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Plugins returns all plugins sorted by alias.
func (c *Catalog) Plugins() []Plugin {
	out := make([]Plugin, 0, len(c.plugins))
	for _, p := range c.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
