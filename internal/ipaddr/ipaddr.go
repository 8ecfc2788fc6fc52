// Package ipaddr recognises bare IP address literals.
//
// MediaWiki names anonymous editors by their IP address, so a user name that
// is an IP literal marks an unauthenticated session.
package ipaddr

import "net/netip"

// IsIP reports whether s is exactly an IPv4 or IPv6 address literal.
// Prefixes ("10.0.0.0/8"), zones ("fe80::1%eth0"), surrounding whitespace
// and octets with leading zeros are rejected.
func IsIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Zone() == ""
}
