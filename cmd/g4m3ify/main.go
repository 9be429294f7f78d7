// Command g4m3ify browses the game catalog from a terminal and reports
// whether the forwarding proxy is reachable.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"g4m3ify-proxy/internal/catalog"
	"g4m3ify-proxy/internal/probe"
)

// Set by goreleaser ldflags.
var version = "dev"

type cli struct {
	Catalog  string           `help:"Path to catalog YAML (default: built-in)." env:"CATALOG_PATH" type:"path"`
	ProxyURL string           `name:"proxy-url" help:"Base URL of the forwarding proxy." env:"PROXY_URL"`
	Timeout  time.Duration    `help:"Timeout for proxy probes and page fetches." default:"5s"`
	NoColor  bool             `help:"Disable coloured output. A non-empty NO_COLOR does the same."`
	Verbose  bool             `short:"v" help:"Log debug output to stderr."`
	Version  kong.VersionFlag `help:"Print version and exit."`

	List       listCmd       `cmd:"" default:"withargs" help:"List games."`
	Categories categoriesCmd `cmd:"" help:"List categories."`
	Show       showCmd       `cmd:"" help:"Show one game."`
	Status     statusCmd     `cmd:"" help:"Probe the forwarding proxy."`
	Enrich     enrichCmd     `cmd:"" help:"Fill missing thumbnails from each game's page and write the catalog."`
}

// app is shared by every command.
type app struct {
	ctx      context.Context
	session  *catalog.Session
	proxyURL string
	client   *http.Client
	out      *output
	logger   *slog.Logger
}

type listCmd struct {
	Search   string `short:"s" help:"Case-insensitive title filter."`
	Category string `short:"c" help:"Category filter." default:"all"`
}

func (c *listCmd) Run(a *app) error {
	a.probe()
	a.out.banner(a.session, a.proxyURL)
	return a.out.tiles(a.session.View(c.Search, c.Category))
}

type categoriesCmd struct{}

func (categoriesCmd) Run(a *app) error {
	a.out.lines(a.session.Catalog().Categories())
	return nil
}

type showCmd struct {
	ID string `arg:"" help:"Game id."`
}

func (c *showCmd) Run(a *app) error {
	a.probe()
	t, err := a.session.Tile(c.ID)
	if err != nil {
		return err
	}
	a.out.tile(t)
	return nil
}

type statusCmd struct{}

func (statusCmd) Run(a *app) error {
	if a.proxyURL == "" {
		return fmt.Errorf("no proxy configured; set --proxy-url or PROXY_URL")
	}
	a.probe()
	a.out.banner(a.session, a.proxyURL)
	if a.session.Status() != catalog.StatusOnline {
		return fmt.Errorf("proxy %s is offline", a.proxyURL)
	}
	return nil
}

type enrichCmd struct {
	Out string `short:"o" help:"Write the enriched catalog here instead of stdout." type:"path"`
}

func (c *enrichCmd) Run(a *app) error {
	en := catalog.NewEnricher(a.client, "g4m3ify/"+version, a.logger)
	entries, updated, err := en.Enrich(a.ctx, a.session.Catalog().Entries())
	if err != nil {
		return err
	}
	a.logger.Info("enrichment finished", "updated", updated, "games", len(entries))

	if c.Out == "" {
		return catalog.Encode(os.Stdout, entries)
	}
	return writeCatalog(c.Out, entries)
}

// writeCatalog encodes entries to path and reports a failed close.
func writeCatalog(path string, entries []catalog.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	err = catalog.Encode(f, entries)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("enrich: close %s: %w", path, cerr)
	}
	return err
}

// probe checks the proxy once per command. Without a proxy URL the status
// stays unknown.
func (a *app) probe() {
	if a.proxyURL == "" {
		return
	}
	a.session.Probe(a.ctx)
}

func newParser(c *cli) (*kong.Kong, error) {
	return kong.New(c,
		kong.Name("g4m3ify"),
		kong.Description("Browse the g4m3ify game catalog."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var c cli
	parser, err := newParser(&c)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cat, err := catalog.Load(c.Catalog)
	kctx.FatalIfErrorf(err)

	httpClient := &http.Client{Timeout: 4 * c.Timeout}
	var checker catalog.Checker
	if c.ProxyURL != "" {
		checker = probe.New(c.ProxyURL, httpClient, c.Timeout, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = kctx.Run(&app{
		ctx:      ctx,
		session:  catalog.NewSession(cat, c.ProxyURL, checker),
		proxyURL: c.ProxyURL,
		client:   httpClient,
		out:      newOutput(os.Stdout, c.NoColor),
		logger:   logger,
	})
	kctx.FatalIfErrorf(err)
}
