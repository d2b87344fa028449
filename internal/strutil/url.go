package strutil

import "strings"

// URLDecode decodes an urlencoded string and tells whether the string was properly formed.
// Decoded control characters are treated as malformed input.
func URLDecode(str string) (string, bool) {
	percent := strings.IndexByte(str, '%')
	if percent == -1 {
		return str, !hasControlChars(str)
	}

	var b strings.Builder
	b.Grow(len(str))
	s := str

	for len(s) > 0 {
		percent = strings.IndexByte(s, '%')
		if percent == -1 {
			break
		}

		b.WriteString(s[:percent])
		s = s[percent+1:]
		if len(s) < 2 {
			return "", false
		}

		x, y := Unhex(s[0]), Unhex(s[1])
		if x|y == 0xFF {
			return "", false
		}

		b.WriteByte((x << 4) | y)
		s = s[2:]
	}

	b.WriteString(s)
	decoded := b.String()

	return decoded, !hasControlChars(decoded)
}

// Unhex returns the value of a hexadecimal digit, or 0xFF if the char isn't one.
func Unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0xFF
	}
}

func hasControlChars(str string) bool {
	for i := 0; i < len(str); i++ {
		if str[i] < 0x20 || str[i] == 0x7f {
			return true
		}
	}

	return false
}
