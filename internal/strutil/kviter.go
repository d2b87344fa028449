package strutil

import (
	"iter"
	"strings"
)

// WalkKV iterates over `key=value` parameters separated by semicolons, as they
// appear in Content-Disposition and Content-Type headers. Quoted values are
// unquoted, keys are lowercased. A parameter without a value yields an empty one.
func WalkKV(data string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for len(data) > 0 {
			var param string
			if semicolon := indexUnquoted(data, ';'); semicolon != -1 {
				param, data = data[:semicolon], data[semicolon+1:]
			} else {
				param, data = data, ""
			}

			param = StripWS(param)
			if len(param) == 0 {
				continue
			}

			key, value, _ := strings.Cut(param, "=")
			if !yield(strings.ToLower(StripWS(key)), Unquote(StripWS(value))) {
				return
			}
		}
	}
}

func indexUnquoted(str string, char byte) int {
	quoted := false

	for i := 0; i < len(str); i++ {
		switch str[i] {
		case '"':
			quoted = !quoted
		case char:
			if !quoted {
				return i
			}
		}
	}

	return -1
}
