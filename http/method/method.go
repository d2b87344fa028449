package method

import (
	"fmt"
	"strings"
)

// Method is a closed set of request methods the server knows how to serve. Anything
// else is parsed as Unknown and is never allowed by any location.
type Method uint8

const (
	Unknown Method = iota
	GET
	POST
	PUT
	DELETE

	// Count is the last one enum, so contains the greatest integer value of all the
	// methods
	Count = iota - 1
)

// List contains all the supported methods sorted by their integer value. Unknown
// method is not included.
var List = []Method{GET, POST, PUT, DELETE}

func Parse(str string) Method {
	switch len(str) {
	case 3:
		if str == "GET" {
			return GET
		} else if str == "PUT" {
			return PUT
		}
	case 4:
		if str == "POST" {
			return POST
		}
	case 6:
		if str == "DELETE" {
			return DELETE
		}
	}

	return Unknown
}

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func (m Method) MarshalText() ([]byte, error) {
	if m == Unknown {
		return nil, fmt.Errorf("cannot marshal unknown method")
	}

	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	if *m = Parse(string(text)); *m == Unknown {
		return fmt.Errorf("unsupported method: %q", text)
	}

	return nil
}

// Join renders methods as a comma-separated list, as used by the Allow header.
func Join(methods []Method) string {
	var b strings.Builder
	for i, m := range methods {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(m.String())
	}

	return b.String()
}
