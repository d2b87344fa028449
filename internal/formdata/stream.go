package formdata

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

type stream struct {
	data string
}

func newStream(data string) stream {
	return stream{data}
}

func (s *stream) FindSubstr(str string) int {
	return strings.Index(s.data, str)
}

func (s *stream) Consume(str string) bool {
	if strings.HasPrefix(s.data, str) {
		s.Advance(len(str))
		return true
	}

	return false
}

func (s *stream) ConsumeFold(str string) bool {
	if len(s.data) >= len(str) && strcomp.EqualFold(s.data[:len(str)], str) {
		s.Advance(len(str))
		return true
	}

	return false
}

// ConsumeLineBreak consumes either CRLF or a bare LF.
func (s *stream) ConsumeLineBreak() bool {
	return s.Consume("\r\n") || s.Consume("\n")
}

func (s *stream) Advance(n int) (leftBehind string) {
	leftBehind, s.data = s.data[:n], s.data[n:]
	return leftBehind
}

func (s *stream) AdvanceLine() (leftBehind string, ok bool) {
	newline := strings.IndexByte(s.data, '\n')
	if newline == -1 {
		return "", false
	}

	leftBehind = s.Advance(newline + 1)
	leftBehind = leftBehind[:len(leftBehind)-1]
	if len(leftBehind) > 0 && leftBehind[len(leftBehind)-1] == '\r' {
		return leftBehind[:len(leftBehind)-1], true
	}

	return leftBehind, true
}

func (s *stream) SkipWhitespaces() {
	for i := 0; i < len(s.data); i++ {
		switch s.data[i] {
		case ' ', '\t':
		default:
			s.Advance(i)
			return
		}
	}

	s.Advance(len(s.data))
}

func (s *stream) Empty() bool {
	return len(s.data) == 0
}
