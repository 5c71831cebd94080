package catalog

import (
	"strings"
	"testing"

	"github.com/cooolfix/airgate/internal/config"
)

func TestLookup(t *testing.T) {
	c := New(config.Default().Catalog)
	p, ok := c.Lookup("silver-20m")
	if !ok {
		t.Fatal("expected silver tier to exist")
	}
	if p.Speed != "20Mbps" || !p.Popular {
		t.Fatalf("unexpected silver tier: %+v", p)
	}
	if _, ok := c.Lookup("no-such-tier"); ok {
		t.Fatal("expected missing tier lookup to fail")
	}
}

func TestPackagesOrdering(t *testing.T) {
	c := New(config.Default().Catalog)
	pkgs := c.Packages()
	sawHotspot := false
	lastPrice := 0
	for _, p := range pkgs {
		if p.Kind == "hotspot" {
			if !sawHotspot {
				sawHotspot = true
				lastPrice = 0
			}
		} else if sawHotspot {
			t.Fatal("fiber package after hotspot group")
		}
		if p.Price < lastPrice {
			t.Fatalf("prices not ascending within group at %s", p.ID)
		}
		lastPrice = p.Price
	}
}

func TestBriefingMentionsTiers(t *testing.T) {
	c := New(config.Default().Catalog)
	brief := c.Briefing()
	for _, want := range []string{"FIBER", "HOTSPOT", "Silver", "Weekly Trio", "KES 2299"} {
		if !strings.Contains(brief, want) {
			t.Fatalf("briefing missing %q:\n%s", want, brief)
		}
	}
}
