package catalog

import (
	"net/url"
	"strings"
)

// ProxyPath is the forwarding proxy's relay route.
const ProxyPath = "/proxy"

// FrameSource returns the iframe src for e. Entries without the proxy flag
// are framed directly. Flagged entries are routed through the proxy at
// proxyBase, or through a relative /proxy path when proxyBase is empty.
func FrameSource(e Entry, proxyBase string) string {
	if !e.Proxy {
		return e.URL
	}
	return ProxyURL(proxyBase, e.URL)
}

// ProxyURL builds the proxy relay URL for target.
func ProxyURL(proxyBase, target string) string {
	return strings.TrimRight(proxyBase, "/") + ProxyPath + "?url=" + url.QueryEscape(target)
}
