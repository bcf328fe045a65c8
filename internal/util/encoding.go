package util

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// RecoverUTF8Bytes decodes non-UTF-8 console output using common legacy
// encodings and returns a UTF-8 string. Already-valid UTF-8 passes through
// untouched. If no candidate decodes cleanly, the raw bytes are returned
// as a string.
func RecoverUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	// Older IOS images and terminal servers hand back Latin-1/CP1252 banners;
	// some vendor gear echoes GB18030.
	encs := []encoding.Encoding{
		charmap.Windows1252,
		charmap.ISO8859_1,
		simplifiedchinese.GB18030,
	}
	for _, enc := range encs {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return string(b)
}

// RecoverUTF8 converts a possibly mojibake string to UTF-8 by decoding its
// bytes with common legacy encodings when needed.
func RecoverUTF8(s string) string {
	return RecoverUTF8Bytes([]byte(s))
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}
