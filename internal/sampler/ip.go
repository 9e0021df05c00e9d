package sampler

import (
	"context"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

var skippedInterfacePrefixes = []string{"lo", "docker", "br-"}

// resolveIP returns the host's primary IPv4 address: the first usable address
// on a physical-looking interface, else whatever the hostname resolves to.
// It returns "" when neither yields an address.
func (c *Collector) resolveIP(ctx context.Context, hostname string) string {
	ifaces, err := c.stats.Interfaces(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("listing network interfaces")
	}
	if ip := selectIPv4(ifaces); ip != "" {
		return ip
	}

	ips, err := c.stats.LookupIP(ctx, hostname)
	if err != nil {
		c.logger.WithError(err).Warnf("resolving own hostname %q", hostname)
		return ""
	}
	return preferNonLoopback(ips)
}

// selectIPv4 walks interfaces in enumeration order, skipping loopback,
// docker and bridge interfaces, and returns the first IPv4 address that is
// neither loopback (127.0.0.0/8) nor link-local (169.254.0.0/16).
func selectIPv4(ifaces []psnet.InterfaceStat) string {
	for _, iface := range ifaces {
		if skipInterface(iface) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseAddr(addr.Addr).To4()
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.String()
		}
	}
	return ""
}

func skipInterface(iface psnet.InterfaceStat) bool {
	for _, prefix := range skippedInterfacePrefixes {
		if strings.HasPrefix(iface.Name, prefix) {
			return true
		}
	}
	for _, flag := range iface.Flags {
		if flag == "loopback" {
			return true
		}
	}
	return false
}

// parseAddr accepts both CIDR ("10.0.0.2/24") and bare addresses.
func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}

// preferNonLoopback returns the first routable IPv4 address, falling back to
// the first loopback or link-local one.
func preferNonLoopback(ips []net.IP) string {
	var fallback string
	for _, ip := range ips {
		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}
		if !ip4.IsLoopback() && !ip4.IsLinkLocalUnicast() {
			return ip4.String()
		}
		if fallback == "" {
			fallback = ip4.String()
		}
	}
	return fallback
}
