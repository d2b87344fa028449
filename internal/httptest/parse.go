package httptest

import (
	"fmt"
	"strconv"
	"strings"
)

// Response is a parsed representation of a serialized response, used to verify
// what the server actually put on the wire.
type Response struct {
	Proto  string
	Code   int
	Status string
	// Headers are keyed by lowercased names, so repeated headers are kept in order.
	Headers map[string][]string
	Body    string
}

// Header returns the first value of the header.
func (r Response) Header(key string) string {
	values := r.Headers[strings.ToLower(key)]
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// Parse parses a single response from the stream. Bytes after the response are returned,
// so pipelined responses can be parsed one by one.
func Parse(raw string) (response Response, rest string, err error) {
	var found bool
	response.Headers = make(map[string][]string)

	response.Proto, raw, found = strings.Cut(raw, " ")
	if !found || len(raw) == 0 {
		return response, "", fmt.Errorf("bad status line: lacking code and status")
	}

	var code string
	code, raw, found = strings.Cut(raw, " ")
	response.Code, err = strconv.Atoi(code)
	if err != nil {
		return response, "", err
	}

	if !found || len(raw) == 0 {
		return response, "", fmt.Errorf("bad status line: lacking status text")
	}

	response.Status, raw, found = strings.Cut(raw, "\r\n")
	if !found {
		return response, "", fmt.Errorf("bad response: only status line is presented")
	}

	for {
		var headerLine string
		headerLine, raw, found = strings.Cut(raw, "\r\n")
		if !found {
			return response, "", fmt.Errorf("bad header line %q: no breaking CRLF", headerLine)
		}

		if len(headerLine) == 0 {
			break
		}

		key, value, found := strings.Cut(headerLine, ": ")
		if !found {
			return response, "", fmt.Errorf("bad header %q: no value", headerLine)
		}

		key = strings.ToLower(key)
		response.Headers[key] = append(response.Headers[key], value)
	}

	if response.Code < 200 || response.Code == 204 || response.Code == 304 {
		return response, raw, nil
	}

	contentLength := response.Header("content-length")
	if len(contentLength) == 0 {
		response.Body = raw
		return response, "", nil
	}

	length, err := strconv.Atoi(contentLength)
	if err != nil {
		return response, "", err
	}

	if len(raw) < length {
		return response, "", fmt.Errorf("body is incomplete: want %d bytes, got %d", length, len(raw))
	}

	response.Body = raw[:length]

	return response, raw[length:], nil
}

// ParseAll parses every response in the stream.
func ParseAll(raw string) (responses []Response, err error) {
	for len(raw) > 0 {
		var response Response
		response, raw, err = Parse(raw)
		if err != nil {
			return responses, err
		}

		responses = append(responses, response)
	}

	return responses, nil
}
