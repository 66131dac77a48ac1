package utils

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var ErrNotIPv4 = errors.New("not an IPv4 prefix")

// AnyPrefix is the default for an absent address field.
var AnyPrefix = netip.MustParsePrefix("0.0.0.0/0")

// ParsePrefix accepts "a.b.c.d/len" or a bare "a.b.c.d" (treated as /32).
func ParsePrefix(s string) (netip.Prefix, error) {
	var (
		p   netip.Prefix
		err error
	)
	if strings.Contains(s, "/") {
		p, err = netip.ParsePrefix(s)
	} else {
		var addr netip.Addr
		addr, err = netip.ParseAddr(s)
		if err == nil {
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
	}
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: %s", ErrNotIPv4, s)
	}
	return p.Masked(), nil
}

// PrefixBits returns the first p.Bits() bits of the address as a '0'/'1' string.
func PrefixBits(p netip.Prefix) string {
	a := p.Addr().As4()
	var sb strings.Builder
	sb.Grow(p.Bits())
	for i := 0; i < p.Bits(); i++ {
		if a[i/8]&(0x80>>(i%8)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

