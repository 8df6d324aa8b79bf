package isa

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names the text encoding a file was decoded with.
type Encoding string

const (
	UTF8      Encoding = "utf-8"
	ISO8859_1 Encoding = "ISO-8859-1"
)

// decodeText decodes b as UTF-8, falling back to ISO-8859-1 when the bytes
// are not valid UTF-8. Every byte sequence is valid ISO-8859-1, so the
// fallback cannot fail.
func decodeText(b []byte) (string, Encoding, error) {
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), "\ufeff"), UTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", ISO8859_1, err
	}
	return string(out), ISO8859_1, nil
}
