// Package addrutil provides textual address validation and binary packing
// for IPv4 and IPv6 addresses, shared by the resolver, the SOCKS5 dialer,
// and the HTTP client's pool-key logic.
package addrutil

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when a textual address cannot be parsed
// or packed into its binary form.
var ErrInvalidAddress = errors.New("addrutil: invalid address")

// IsIPv4 reports whether s is a textual IPv4 address (dotted quad only;
// no brackets, no zone ID).
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.To4() != nil && !strings.Contains(s, ":")
}

// IsIPv6 reports whether s is a textual IPv6 address. When bracketed is
// true, s may be wrapped in "[...]"; brackets are stripped before
// validation. An input with no colon is never IPv6.
func IsIPv6(s string, bracketed bool) bool {
	if !strings.Contains(s, ":") {
		return false
	}
	if bracketed && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	// zone IDs (fe80::1%eth0) aren't accepted by net.ParseIP directly.
	if idx := strings.IndexByte(s, '%'); idx >= 0 {
		s = s[:idx]
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.To4() == nil || strings.Contains(s, ":")
}

// StripBrackets removes a surrounding "[...]" if present, returning the
// unbracketed form. It does not validate that the result is a valid
// address.
func StripBrackets(s string) string {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}

// BE16 returns the two-byte big-endian encoding of n. n must be in
// [0, 65535]; ErrInvalidAddress is returned otherwise.
func BE16(n int) ([2]byte, error) {
	if n < 0 || n > 65535 {
		return [2]byte{}, ErrInvalidAddress
	}
	return [2]byte{byte(n >> 8), byte(n & 0xff)}, nil
}

// PackIPv4 packs a textual IPv4 address into its 4-byte network-order
// binary form.
func PackIPv4(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, ErrInvalidAddress
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, ErrInvalidAddress
	}
	out := make([]byte, 4)
	copy(out, v4)
	return out, nil
}

// PackIPv6 packs a textual IPv6 address (optionally bracketed, optionally
// carrying a zone ID) into its 16-byte network-order binary form. Zone
// IDs are not representable in the wire form and are discarded.
func PackIPv6(s string) ([]byte, error) {
	s = StripBrackets(s)
	if idx := strings.IndexByte(s, '%'); idx >= 0 {
		s = s[:idx]
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil {
		return nil, ErrInvalidAddress
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, ErrInvalidAddress
	}
	out := make([]byte, 16)
	copy(out, v6)
	return out, nil
}

// UnpackIPv4ToText converts a packed 4-byte IPv4 address back to its
// dotted-quad textual form. Used by tests to round-trip PackIPv4.
func UnpackIPv4ToText(b []byte) (string, error) {
	if len(b) != 4 {
		return "", ErrInvalidAddress
	}
	return net.IP(b).String(), nil
}

// FormatPort renders a port number as a decimal string, validating range.
func FormatPort(n int) (string, error) {
	if n < 1 || n > 65535 {
		return "", ErrInvalidAddress
	}
	return strconv.Itoa(n), nil
}
