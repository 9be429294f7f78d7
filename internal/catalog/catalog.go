// Package catalog loads the static game catalog and builds the views the
// catalog client renders from it.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"g4m3ify-proxy/internal/validation"
)

// AllCategories is the pseudo-category that matches every entry.
const AllCategories = "all"

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("game not found")

//go:embed games.yaml
var defaultCatalog []byte

// Entry is one listed game.
type Entry struct {
	ID        string `yaml:"id" json:"id" validate:"required"`
	Title     string `yaml:"title" json:"title" validate:"required"`
	Thumbnail string `yaml:"thumbnail,omitempty" json:"thumbnail"`
	URL       string `yaml:"url" json:"url" validate:"required,http_url"`
	Category  string `yaml:"category" json:"category" validate:"required"`
	// Proxy routes the frame through the forwarding proxy.
	Proxy bool `yaml:"proxy" json:"proxy"`
}

type catalogFile struct {
	Games []Entry `yaml:"games"`
}

// Catalog is an immutable, validated list of entries.
type Catalog struct {
	entries    []Entry
	byID       map[string]int
	categories []string
}

// Default returns the catalog built into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return New(f.Games)
}

// New validates entries and builds a Catalog. Category labels are lower-cased.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries:    make([]Entry, 0, len(entries)),
		byID:       make(map[string]int, len(entries)),
		categories: []string{AllCategories},
	}
	seenCategory := map[string]bool{AllCategories: true}

	for i, e := range entries {
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		if err := validation.Struct(e); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %s", i, e.ID, validation.Message(err))
		}
		if e.Category == AllCategories {
			return nil, fmt.Errorf("entry %d (%q): category %q is reserved", i, e.ID, AllCategories)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, e.ID)
		}

		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
		if !seenCategory[e.Category] {
			seenCategory[e.Category] = true
			c.categories = append(c.categories, e.Category)
		}
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Categories returns "all" followed by each distinct category in order of
// first appearance.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Get returns the entry with the given id.
func (c *Catalog) Get(id string) (Entry, error) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.entries[i], nil
}

// Filter returns the entries whose title contains search (case-insensitive)
// and whose category matches. An empty category or "all" matches every
// entry. Catalog order is kept.
func (c *Catalog) Filter(search, category string) []Entry {
	search = strings.ToLower(strings.TrimSpace(search))
	category = strings.ToLower(strings.TrimSpace(category))
	anyCategory := category == "" || category == AllCategories

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !anyCategory && e.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Encode writes entries as a catalog YAML document.
func Encode(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Games: entries}); err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}
	return enc.Close()
}
