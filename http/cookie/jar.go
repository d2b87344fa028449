package cookie

import (
	"errors"
	"strings"
)

// Jar is a key-value storage for cookies received from a user-agent. Key-value pairs
// consist of strings, not cookie.Cookie, as request cookies carry no attributes.
type Jar map[string]string

func NewJar() Jar {
	return make(Jar)
}

var ErrBadCookie = errors.New("cookie has a malformed syntax")

// Parse parses cookies, received from a user-agent. These are basically key-value pairs,
// so the function isn't applicable for Set-Cookie values
func Parse(jar Jar, data string) (err error) {
	for len(data) > 0 {
		eq := strings.IndexByte(data, '=')
		if eq == -1 {
			break
		}

		key := data[:eq]
		data = data[eq+1:]

		if len(key) == 0 {
			return ErrBadCookie
		}

		var value string

		if cs := strings.IndexByte(data, ';'); cs != -1 {
			value, data = data[:cs], stripSpace(data[cs+1:])
		} else {
			value, data = data, ""
		}

		// empty value is fine
		jar[key] = value
	}

	if len(data) != 0 {
		return ErrBadCookie
	}

	return nil
}

func stripSpace(str string) string {
	if len(str) > 0 && str[0] == ' ' {
		return str[1:]
	}

	return str
}
