package wallet

import "strings"

// IsValidAddress reports whether s looks like a chain address: 0x followed by
// 40 hex characters. Checksum and signature verification live with the chain
// collaborator, not here.
func IsValidAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
