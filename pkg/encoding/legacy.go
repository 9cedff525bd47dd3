// Package encoding converts the 8-bit legacy strings stored in model files.
package encoding

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeLegacy converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the bytes as-is if conversion fails.
func DecodeLegacy(data []byte) string {
	if isASCII(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// EncodeLegacy converts a UTF-8 string to Windows-1252 bytes.
// Returns the UTF-8 bytes if the string has no Windows-1252 form.
func EncodeLegacy(s string) []byte {
	if isASCII([]byte(s)) {
		return []byte(s)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// TrimNull cuts a string at its first NUL byte.
func TrimNull(s string) string {
	if i := bytes.IndexByte([]byte(s), 0); i >= 0 {
		return s[:i]
	}
	return s
}

// SplitNull splits NUL-separated data into strings, dropping empty entries.
func SplitNull(data []byte) []string {
	var out []string
	for _, part := range bytes.Split(data, []byte{0}) {
		if len(part) == 0 {
			continue
		}
		out = append(out, DecodeLegacy(part))
	}
	return out
}

// JoinNull joins strings into NUL-terminated legacy data.
func JoinNull(parts []string) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(EncodeLegacy(p))
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
