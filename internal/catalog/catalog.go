package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/dshills/agriguard/internal/advisory"
)

//go:embed pests.yaml
var embeddedPests []byte

// ErrUnknownPest is returned when a label matches no catalog entry.
var ErrUnknownPest = errors.New("pest not in catalog")

// FetcherName is the Source of records produced by the catalog.
const FetcherName = "catalog"

// maxFuzzyDistance bounds how far a fuzzy match may be from the label.
const maxFuzzyDistance = 4

type file struct {
	Groups []group `yaml:"groups"`
}

type group struct {
	Name        string   `yaml:"name"`
	Severity    string   `yaml:"severity"`
	Crops       []string `yaml:"crops"`
	Organic     string   `yaml:"organic"`
	Description string   `yaml:"description"`
	ActionPlan  string   `yaml:"actionPlan"`
	Pests       []pest   `yaml:"pests"`
}

type pest struct {
	Name      string   `yaml:"name"`
	Treatment string   `yaml:"treatment"`
	Crops     []string `yaml:"crops"`
}

// Entry is one pest in the catalog.
type Entry struct {
	Name      string            `json:"name"`
	Group     string            `json:"group"`
	Treatment string            `json:"treatment"`
	Organic   string            `json:"organic,omitempty"`
	Severity  advisory.Severity `json:"severity"`
	Crops     []string          `json:"crops"`

	description string
	actionPlan  string
}

// Record converts e into an advisory record.
func (e Entry) Record() advisory.Record {
	return advisory.Record{
		PrimaryTreatment:   e.Treatment,
		OrganicAlternative: e.Organic,
		Description:        fmt.Sprintf("%s (%s). %s", e.Name, e.Group, e.description),
		ActionPlan:         e.actionPlan,
		Severity:           e.Severity,
		AffectedTargets:    slices.Clone(e.Crops),
		Source:             FetcherName,
	}
}

// Catalog is an offline pest dictionary. It implements advisory.Fetcher.
type Catalog struct {
	entries []Entry
	byName  map[string]int
	byFold  map[string]int
	names   []string
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(embeddedPests)
	if err != nil {
		panic(fmt.Sprintf("embedded pest catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. When a pest name repeats, the later
// entry wins.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]int), byFold: make(map[string]int)}
	for _, g := range f.Groups {
		sev, ok := advisory.ParseSeverity(g.Severity)
		if !ok {
			return nil, fmt.Errorf("catalog group %q: invalid severity %q", g.Name, g.Severity)
		}
		if strings.TrimSpace(g.Description) == "" || strings.TrimSpace(g.ActionPlan) == "" {
			return nil, fmt.Errorf("catalog group %q: description and actionPlan are required", g.Name)
		}
		for _, p := range g.Pests {
			if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Treatment) == "" {
				return nil, fmt.Errorf("catalog group %q: pest needs a name and a treatment", g.Name)
			}
			crops := p.Crops
			if len(crops) == 0 {
				crops = g.Crops
			}
			e := Entry{
				Name:        p.Name,
				Group:       g.Name,
				Treatment:   p.Treatment,
				Organic:     g.Organic,
				Severity:    sev,
				Crops:       slices.Clone(crops),
				description: g.Description,
				actionPlan:  g.ActionPlan,
			}
			if e.Crops == nil {
				e.Crops = []string{}
			}
			if i, dup := c.byName[p.Name]; dup {
				c.entries[i] = e
				continue
			}
			c.byName[p.Name] = len(c.entries)
			c.entries = append(c.entries, e)
		}
	}

	c.names = make([]string, len(c.entries))
	for i, e := range c.entries {
		c.names[i] = e.Name
		if _, ok := c.byFold[strings.ToLower(e.Name)]; !ok {
			c.byFold[strings.ToLower(e.Name)] = i
		}
	}
	return c, nil
}

// Len returns the number of pests in the catalog.
func (c *Catalog) Len() int { return len(c.entries) }

// List returns every entry sorted by name, case-insensitively.
func (c *Catalog) List() []Entry {
	out := slices.Clone(c.entries)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Search returns entries whose name fuzzily contains term, closest first.
func (c *Catalog) Search(term string) []Entry {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(term, c.names)
	sort.Sort(ranks)
	out := make([]Entry, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, c.entries[r.OriginalIndex])
	}
	return out
}

// Match resolves a detector label to a catalog entry. It tries the exact
// name, then a case-insensitive match, then the closest fuzzy match.
func (c *Catalog) Match(label string) (Entry, bool) {
	if i, ok := c.byName[label]; ok {
		return c.entries[i], true
	}
	folded := strings.ToLower(strings.TrimSpace(label))
	if folded == "" {
		return Entry{}, false
	}
	if i, ok := c.byFold[folded]; ok {
		return c.entries[i], true
	}

	best, bestDist := -1, maxFuzzyDistance+1
	for i, name := range c.names {
		lname := strings.ToLower(name)
		if !fuzzy.MatchNormalizedFold(folded, lname) && !fuzzy.MatchNormalizedFold(lname, folded) {
			continue
		}
		if d := fuzzy.LevenshteinDistance(folded, lname); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Entry{}, false
	}
	return c.entries[best], true
}

// Name implements advisory.Fetcher.
func (c *Catalog) Name() string { return FetcherName }

// FetchAdvisory implements advisory.Fetcher.
func (c *Catalog) FetchAdvisory(ctx context.Context, label string) (advisory.Record, error) {
	if err := ctx.Err(); err != nil {
		return advisory.Record{}, err
	}
	e, ok := c.Match(label)
	if !ok {
		return advisory.Record{}, fmt.Errorf("%w: %q", ErrUnknownPest, label)
	}
	return e.Record(), nil
}
