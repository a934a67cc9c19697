// Package inspect holds the per-packet inspectors: hex rendering, keyword
// highlighting and the minimal fixed-frame protocol summarizer. Inspectors
// are pure functions over a flushed packet; a failure in one never
// suppresses another's output.
package inspect

import "strings"

const hexDigits = "0123456789ABCDEF"

// HexString renders bytes as two-digit uppercase hex, space separated.
func HexString(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(p) * 3)
	for i, c := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}
