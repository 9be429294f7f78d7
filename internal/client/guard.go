package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrBlockedAddress is returned when a target resolves to an address the
// proxy refuses to connect to.
var ErrBlockedAddress = errors.New("target address is not public")

var blockedNets = mustParseCIDRs(
	"0.0.0.0/8",      // this network
	"10.0.0.0/8",     // RFC1918
	"100.64.0.0/10",  // CGNAT
	"127.0.0.0/8",    // loopback
	"169.254.0.0/16", // link-local
	"172.16.0.0/12",  // RFC1918
	"192.0.0.0/24",   // IETF protocol assignments
	"192.168.0.0/16", // RFC1918
	"198.18.0.0/15",  // benchmarking
	"224.0.0.0/4",    // multicast
	"240.0.0.0/4",    // reserved
	"::/128",
	"::1/128",
	"64:ff9b::/96", // NAT64 can reach IPv4 private space
	"fc00::/7",     // unique local
	"fe80::/10",    // link-local
	"ff00::/8",     // multicast
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("client: bad CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// IsPublicIP reports whether ip is a global unicast address outside every
// private, loopback, link-local and reserved range.
func IsPublicIP(ip net.IP) bool {
	if ip == nil || !ip.IsGlobalUnicast() {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

type resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// guardedDial resolves the host itself and connects to a verified address,
// so a second lookup cannot swap in a private one. A host with any
// non-public address is refused outright. The dialer timeout covers the
// lookup and every connection attempt together.
func guardedDial(d *net.Dialer, r resolver) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if d.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.Timeout)
			defer cancel()
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		if ip := net.ParseIP(host); ip != nil {
			if !IsPublicIP(ip) {
				return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
			}
			return d.DialContext(ctx, network, addr)
		}

		addrs, err := r.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
		}
		for _, a := range addrs {
			if !IsPublicIP(a.IP) {
				return nil, fmt.Errorf("%w: %s resolves to %s", ErrBlockedAddress, host, a.IP)
			}
		}

		var lastErr error
		for _, a := range addrs {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(a.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
