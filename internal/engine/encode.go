package engine

import "strings"

const upperHex = "0123456789ABCDEF"

// QuotePath percent-encodes a slash-separated relative path for use in a
// download URL. Unreserved characters and '/' are kept; every other byte of
// the UTF-8 encoding becomes %XX.
func QuotePath(rel string) string {
	var b strings.Builder
	b.Grow(len(rel))
	for i := 0; i < len(rel); i++ {
		c := rel[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}
