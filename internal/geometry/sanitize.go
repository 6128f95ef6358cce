package geometry

import (
	"bytes"
)

var nonFiniteTokens = [][]byte{
	[]byte("-Infinity"),
	[]byte("Infinity"),
	[]byte("NaN"),
}

// SanitizeNonFinite quotes bare NaN, Infinity and -Infinity tokens that some
// encoders emit outside JSON strings, so the document parses and the values
// reach coordinate validation. Input without such tokens is returned as is.
func SanitizeNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data) + 8)

	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if tok := matchToken(data[i:]); tok != nil && (i == 0 || !isIdentByte(data[i-1])) {
			out.WriteByte('"')
			out.Write(tok)
			out.WriteByte('"')
			i += len(tok) - 1
			continue
		}

		out.WriteByte(c)
	}

	return out.Bytes()
}

func matchToken(rest []byte) []byte {
	for _, tok := range nonFiniteTokens {
		if bytes.HasPrefix(rest, tok) && (len(rest) == len(tok) || !isIdentByte(rest[len(tok)])) {
			return tok
		}
	}
	return nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
