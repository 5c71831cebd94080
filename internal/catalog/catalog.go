package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cooolfix/airgate/internal/config"
)

// Catalog holds the provider's service tiers. The data is static
// configuration; it feeds the storefront API and the assistant's briefing.
type Catalog struct {
	packages []config.Package
	byID     map[string]config.Package
}

func New(cfg config.CatalogConfig) *Catalog {
	c := &Catalog{
		packages: append([]config.Package(nil), cfg.Packages...),
		byID:     make(map[string]config.Package, len(cfg.Packages)),
	}
	for _, p := range c.packages {
		c.byID[p.ID] = p
	}
	return c
}

// Packages returns all tiers, fiber first, each group ordered by price.
func (c *Catalog) Packages() []config.Package {
	out := append([]config.Package(nil), c.packages...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == "fiber"
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// Lookup returns the package with the given ID.
func (c *Catalog) Lookup(id string) (config.Package, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Kind filters packages by kind (fiber or hotspot).
func (c *Catalog) Kind(kind string) []config.Package {
	var out []config.Package
	for _, p := range c.Packages() {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Briefing renders the catalog as a prompt section for the chat backend.
func (c *Catalog) Briefing() string {
	var b strings.Builder
	b.WriteString("SERVICE PORTFOLIO KNOWLEDGE:\n")
	b.WriteString("1. FIBER:")
	for i, p := range c.Kind("fiber") {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s (%s, KES %d)", p.Name, p.Speed, p.Price)
	}
	b.WriteString("\n2. HOTSPOT TIERS (Direct Node Provisioning):\n")
	for _, p := range c.Kind("hotspot") {
		devices := "Device"
		if p.Devices != 1 {
			devices = "Devices"
		}
		fmt.Fprintf(&b, "   - %s: %s (KES %d) - %d %s\n", p.Name, p.Duration, p.Price, p.Devices, devices)
	}
	return b.String()
}
