package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"g4m3ify-proxy/internal/catalog"
)

var (
	colorOnline  = color.New(color.FgGreen).SprintFunc()
	colorOffline = color.New(color.FgYellow, color.Bold).SprintFunc()
	colorFaint   = color.New(color.Faint).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

// output renders command results. Colour is on only for terminals.
type output struct {
	w io.Writer
}

func newOutput(w io.Writer, noColor bool) *output {
	if f, ok := w.(*os.File); !ok || noColor ||
		(!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		color.NoColor = true
	}
	return &output{w: w}
}

// banner prints the proxy state line shown above every listing. Offline is
// the only state that changes what the user can do, so it is highlighted.
func (o *output) banner(s *catalog.Session, proxyURL string) {
	switch s.Status() {
	case catalog.StatusOnline:
		fmt.Fprintf(o.w, "%s proxy %s\n", colorOnline("online"), proxyURL)
	case catalog.StatusOffline:
		fmt.Fprintf(o.w, "%s proxy %s is unreachable; proxied games open in a new tab instead\n",
			colorOffline("OFFLINE"), proxyURL)
	default:
		fmt.Fprintf(o.w, "%s\n", colorFaint("proxy not configured; proxied games use relative /proxy paths"))
	}
}

func (o *output) tiles(tiles []catalog.Tile) error {
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, colorBold("ID")+"\t"+colorBold("TITLE")+"\t"+colorBold("CATEGORY")+"\t"+colorBold("OPEN"))
	for _, t := range tiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Category, tileTarget(t))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(tiles) == 0 {
		fmt.Fprintln(o.w, colorFaint("no games match"))
	}
	return nil
}

func (o *output) tile(t catalog.Tile) {
	fmt.Fprintf(o.w, "%s  %s\n", colorBold("id:"), t.ID)
	fmt.Fprintf(o.w, "%s  %s\n", colorBold("title:"), t.Title)
	fmt.Fprintf(o.w, "%s  %s\n", colorBold("category:"), t.Category)
	fmt.Fprintf(o.w, "%s  %t\n", colorBold("proxied:"), t.Proxy)
	if t.Thumbnail != "" {
		fmt.Fprintf(o.w, "%s  %s\n", colorBold("thumbnail:"), t.Thumbnail)
	}
	if t.Degraded {
		fmt.Fprintf(o.w, "%s  %s\n", colorBold("frame:"), colorOffline("unavailable"))
	} else {
		fmt.Fprintf(o.w, "%s  %s\n", colorBold("frame:"), t.FrameSrc)
	}
	fmt.Fprintf(o.w, "%s  %s\n", colorBold("direct:"), t.FallbackURL)
}

func (o *output) lines(items []string) {
	for _, s := range items {
		fmt.Fprintln(o.w, s)
	}
}

// tileTarget is the URL a user should open: the frame source, or the direct
// URL for a degraded tile.
func tileTarget(t catalog.Tile) string {
	if t.Degraded {
		return t.FallbackURL + " " + colorFaint("(new tab)")
	}
	return t.FrameSrc
}
