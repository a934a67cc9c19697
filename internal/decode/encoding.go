// Package decode provides the character encodings supported by the monitor
// and an incremental decoder used by the framer to turn assembled packets
// into display text.
package decode

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is used when no encoding is configured or when a
// configured name is not supported.
const DefaultEncoding = "UTF-8"

// ErrInvalidSequence reports bytes that cannot be decoded under the active
// encoding. Callers fall back to hex rendering instead of surfacing it.
var ErrInvalidSequence = errors.New("decode: invalid byte sequence")

const asciiName = "ASCII"

// names lists the supported encodings in presentation order.
var names = []string{
	"UTF-8",
	"GB2312",
	"GBK",
	"ASCII",
	"Latin-1",
	"UTF-16",
	"UTF-16BE",
	"UTF-16LE",
	"ISO-8859-1",
}

// GB2312 is decoded with GB18030, a strict superset. ASCII has no x/text
// encoding and is validated byte-wise in Decode.
var encodings = map[string]encoding.Encoding{
	"UTF-8":      unicode.UTF8,
	"GB2312":     simplifiedchinese.GB18030,
	"GBK":        simplifiedchinese.GBK,
	"LATIN-1":    charmap.ISO8859_1,
	"UTF-16":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"UTF-16BE":   unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"UTF-16LE":   unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"ISO-8859-1": charmap.ISO8859_1,
}

// Names returns the supported encoding names in presentation order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Supported reports whether name refers to a supported encoding.
// Matching is case-insensitive.
func Supported(name string) bool {
	key := strings.ToUpper(name)
	if key == asciiName {
		return true
	}
	_, ok := encodings[key]
	return ok
}

// Canonical returns the presentation spelling for a supported name.
func Canonical(name string) string {
	key := strings.ToUpper(name)
	for _, n := range names {
		if strings.ToUpper(n) == key {
			return n
		}
	}
	return name
}

// Decoder converts packet bytes into text for one encoding. It wraps the
// x/text transform decoder so partially-consumed multi-byte state can be
// discarded with Reset between packets.
type Decoder struct {
	name  string
	ascii bool
	dec   *encoding.Decoder
}

// NewDecoder returns a decoder for the named encoding, or an error when the
// name is not in the supported list.
func NewDecoder(name string) (*Decoder, error) {
	key := strings.ToUpper(name)
	if key == asciiName {
		return &Decoder{name: asciiName, ascii: true}, nil
	}
	enc, ok := encodings[key]
	if !ok {
		return nil, fmt.Errorf("decode: unsupported encoding %q", name)
	}
	return &Decoder{name: Canonical(name), dec: enc.NewDecoder()}, nil
}

// Name returns the canonical encoding name.
func (d *Decoder) Name() string {
	return d.name
}

// Decode converts a full packet into text. Bytes that do not form a valid
// sequence under the encoding yield ErrInvalidSequence; the caller renders
// the packet as hex instead.
func (d *Decoder) Decode(p []byte) (string, error) {
	if d.ascii {
		for _, b := range p {
			if b > 0x7F {
				return "", ErrInvalidSequence
			}
		}
		return string(p), nil
	}
	out, err := d.dec.Bytes(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSequence, err)
	}
	// The transform decoders substitute U+FFFD rather than failing; treat
	// any substitution as an invalid sequence so the data is shown as hex.
	if strings.ContainsRune(string(out), utf8.RuneError) {
		return "", ErrInvalidSequence
	}
	return string(out), nil
}

// Reset drops any partially-consumed multi-byte state. Called by the framer
// after every flush so decoder state never leaks across packet boundaries.
func (d *Decoder) Reset() {
	if d.dec != nil {
		d.dec.Reset()
	}
}
