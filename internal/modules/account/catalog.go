// README: Known service regions; drivers may only pick regions from the catalog.
package account

import "routedesk/internal/types"

type Catalog struct {
	byKey map[string]string
	names []string
}

// NewCatalog indexes region names by folded key. An empty catalog accepts
// any region name.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{byKey: make(map[string]string, len(names))}
	for _, n := range names {
		k := types.RegionKey(n)
		if k == "" {
			continue
		}
		if _, ok := c.byKey[k]; ok {
			continue
		}
		c.byKey[k] = n
		c.names = append(c.names, n)
	}
	return c
}

func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Canonical returns the catalog spelling of name, or false when unknown.
func (c *Catalog) Canonical(name string) (string, bool) {
	if c == nil || len(c.byKey) == 0 {
		return name, types.RegionKey(name) != ""
	}
	n, ok := c.byKey[types.RegionKey(name)]
	return n, ok
}
