// Package privacy masks client identifiers before they reach logs.
package privacy

import "net/netip"

const (
	ipv4MaskBits = 24
	ipv6MaskBits = 48
)

// MaskIP keeps the network part of an address: /24 for IPv4 and /48 for IPv6.
// IPv4-mapped IPv6 addresses are treated as IPv4. Empty input yields "unknown"
// and unparseable input yields "invalid".
func MaskIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")
	bits := ipv6MaskBits
	if addr.Is4() {
		bits = ipv4MaskBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
