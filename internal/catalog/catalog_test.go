package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestDefault(t *testing.T) {
	c := Default()

	require.Equal(t, 12, c.Len())
	assert.Equal(t,
		[]string{"all", "action", "puzzle", "arcade", "idle", "sports", "shooter", "runner", "io", "word"},
		c.Categories(),
	)

	e, err := c.Get("9")
	require.NoError(t, err)
	assert.Equal(t, "Subway Surfers", e.Title)
	assert.Equal(t, "https://poki.com/en/g/subway-surfers", e.URL)
}

func TestFilter(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		search   string
		category string
		want     []string
	}{
		{"everything", "", "", titles(c.Entries())},
		{"all category", "", "all", titles(c.Entries())},
		{"category only", "", "arcade", []string{"Slope", "Flappy Bird"}},
		{"category case-insensitive", "", "Shooter", []string{"Shell Shockers", "Krunker.io"}},
		{"search case-insensitive", "IO", "", []string{"Krunker.io", "Paper.io", "Agar.io"}},
		{"search and category", "io", "shooter", []string{"Krunker.io"}},
		{"search in all", "bird", "all", []string{"Flappy Bird"}},
		{"no match", "tetris", "", []string{}},
		{"unknown category", "", "racing", []string{}},
		{"search mismatched category", "2048", "arcade", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(c.Filter(tt.search, tt.category)))
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := Default().Get("404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", "games:\n  - {id: a, title: A, category: x}\n"},
		{"relative url", "games:\n  - {id: a, title: A, url: /game, category: x}\n"},
		{"ftp url", "games:\n  - {id: a, title: A, url: 'ftp://x.example/', category: x}\n"},
		{"missing id", "games:\n  - {title: A, url: 'https://a.example/', category: x}\n"},
		{"missing category", "games:\n  - {id: a, title: A, url: 'https://a.example/'}\n"},
		{"reserved category", "games:\n  - {id: a, title: A, url: 'https://a.example/', category: All}\n"},
		{"duplicate id", "games:\n  - {id: a, title: A, url: 'https://a.example/', category: x}\n  - {id: a, title: B, url: 'https://b.example/', category: x}\n"},
		{"unknown field", "games:\n  - {id: a, title: A, url: 'https://a.example/', category: x, embed: true}\n"},
		{"not yaml", "games: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidEntryMessage(t *testing.T) {
	_, err := Parse([]byte("games:\n  - {id: a, title: A, url: /game, category: x}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'url' must be an absolute http or https URL")
}

func TestParse_NormalisesCategory(t *testing.T) {
	c, err := Parse([]byte("games:\n  - {id: a, title: A, url: 'https://a.example/', category: ' Puzzle '}\n  - {id: b, title: B, url: 'https://b.example/', category: puzzle}\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"all", "puzzle"}, c.Categories())
	e, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "puzzle", e.Category)
}

func TestParse_Empty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []string{"all"}, c.Categories())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games.yaml")
	require.NoError(t, os.WriteFile(path, []byte("games:\n  - {id: x, title: X, url: 'https://x.example/', category: demo, proxy: true}\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	e, err := c.Get("x")
	require.NoError(t, err)
	assert.True(t, e.Proxy)

	def, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, def.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	c := Default()
	entries := c.Entries()
	entries[0].Title = "changed"

	e, err := c.Get(entries[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", e.Title)
}

func TestEncode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Default().Entries()))

	c, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Default().Entries(), c.Entries())
}
