// SPDX-License-Identifier: MIT

package booking

import "strings"

var schemes = []string{"sips:", "sip:", "h323:", "spark:", "tel:"}

// NormalizeAddress returns the canonical form used for every comparison
// between a call's remote address and a booking target: surrounding space
// trimmed, one leading scheme removed, URI parameters dropped, lowercased.
func NormalizeAddress(addr string) string {
	s := strings.TrimSpace(addr)
	lower := strings.ToLower(s)
	for _, scheme := range schemes {
		if strings.HasPrefix(lower, scheme) {
			s = s[len(scheme):]
			break
		}
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// SameAddress compares two addresses after normalization. Empty addresses
// never match.
func SameAddress(a, b string) bool {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	return na != "" && na == nb
}
