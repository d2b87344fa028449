package vhost

import "fmt"

type token struct {
	text string
	line int
}

// tokenize splits the configuration into words. Braces and semicolons are tokens on
// their own, `#` starts a comment lasting until the end of the line.
func tokenize(data string) (tokens []token) {
	line := 1
	start := -1

	flush := func(end int) {
		if start != -1 {
			tokens = append(tokens, token{data[start:end], line})
			start = -1
		}
	}

	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case '{', '}', ';':
			flush(i)
			tokens = append(tokens, token{data[i : i+1], line})
		case '#':
			flush(i)
			for i < len(data) && data[i] != '\n' {
				i++
			}

			line++
		case '\n':
			flush(i)
			line++
		case ' ', '\t', '\r', '\v', '\f':
			flush(i)
		default:
			if start == -1 {
				start = i
			}
		}
	}

	flush(len(data))

	return tokens
}

type lexer struct {
	tokens []token
	pos    int
}

func (l *lexer) end() bool {
	return l.pos >= len(l.tokens)
}

func (l *lexer) peek() string {
	if l.end() {
		return ""
	}

	return l.tokens[l.pos].text
}

func (l *lexer) line() int {
	if l.end() {
		if len(l.tokens) == 0 {
			return 1
		}

		return l.tokens[len(l.tokens)-1].line
	}

	return l.tokens[l.pos].line
}

func (l *lexer) next() (string, error) {
	if l.end() {
		return "", l.errorf("unexpected end of configuration")
	}

	l.pos++

	return l.tokens[l.pos-1].text, nil
}

// word returns the next token, failing if it is a brace or semicolon.
func (l *lexer) word() (string, error) {
	line := l.line()
	tok, err := l.next()
	if err != nil {
		return "", err
	}

	switch tok {
	case "{", "}", ";":
		return "", fmt.Errorf("line %d: unexpected %q", line, tok)
	}

	return tok, nil
}

func (l *lexer) expect(expected string) error {
	line := l.line()
	tok, err := l.next()
	if err != nil {
		return err
	}

	if tok != expected {
		return fmt.Errorf("line %d: expected %q, got %q", line, expected, tok)
	}

	return nil
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{l.line()}, args...)...)
}
