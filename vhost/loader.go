package vhost

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
)

// Load reads the configuration file. Files with .json extension are decoded as JSON,
// everything else is treated as the nginx-like text format.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}

	return Parse(string(data))
}

// Parse parses the text configuration format:
//
//	server {
//	    listen 127.0.0.1:8080;
//	    server_name example.com;
//	    root ./www;
//	    location /images { autoindex on; }
//	}
func Parse(data string) (*Set, error) {
	l := &lexer{tokens: tokenize(data)}
	var servers []Server

	for !l.end() {
		if tok := l.peek(); tok != "server" {
			return nil, l.errorf("unexpected token: %q", tok)
		}

		l.pos++
		if err := l.expect("{"); err != nil {
			return nil, err
		}

		srv, err := parseServer(l)
		if err != nil {
			return nil, err
		}

		servers = append(servers, srv)
	}

	return NewSet(servers)
}

func parseServer(l *lexer) (srv Server, err error) {
	srv.Host = "0.0.0.0"
	srv.Port = 80

	for {
		if l.end() {
			return srv, l.errorf("unclosed server block")
		}

		switch l.peek() {
		case "}":
			l.pos++
			return srv, nil
		case "location":
			l.pos++
			loc, err := parseLocation(l)
			if err != nil {
				return srv, err
			}

			srv.Locations = append(srv.Locations, loc)
		default:
			if err = parseServerDirective(l, &srv); err != nil {
				return srv, err
			}
		}
	}
}

func parseServerDirective(l *lexer, srv *Server) error {
	line := l.line()
	directive, err := l.word()
	if err != nil {
		return err
	}

	switch directive {
	case "listen":
		return single(l, func(value string) (err error) {
			srv.Host, srv.Port, err = parseListen(value)
			return err
		})
	case "server_name":
		return single(l, func(value string) error {
			srv.ServerName = value
			return nil
		})
	case "root":
		return single(l, func(value string) error {
			srv.Root = value
			return nil
		})
	case "max_body_size":
		return single(l, func(value string) (err error) {
			srv.MaxBodySize, err = parseSize(value)
			return err
		})
	case "autoindex":
		return single(l, func(value string) (err error) {
			srv.Autoindex, err = parseSwitch(value)
			return err
		})
	case "error_page":
		code, page, err := pair(l)
		if err != nil {
			return err
		}

		statusCode, err := parseStatusCode(code)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		if srv.ErrorPages == nil {
			srv.ErrorPages = make(map[status.Code]string)
		}

		srv.ErrorPages[statusCode] = page

		return nil
	case "methods":
		srv.Methods, err = parseMethods(l)
		return err
	default:
		return fmt.Errorf("line %d: unknown server directive: %q", line, directive)
	}
}

func parseLocation(l *lexer) (loc Location, err error) {
	if loc.Path, err = l.word(); err != nil {
		return loc, err
	}

	if loc.Path == "~" {
		loc.Regex = true
		if loc.Path, err = l.word(); err != nil {
			return loc, err
		}
	}

	if err = l.expect("{"); err != nil {
		return loc, err
	}

	for {
		if l.end() {
			return loc, l.errorf("unclosed location block")
		}

		if l.peek() == "}" {
			l.pos++
			return loc, nil
		}

		if err = parseLocationDirective(l, &loc); err != nil {
			return loc, err
		}
	}
}

func parseLocationDirective(l *lexer, loc *Location) error {
	line := l.line()
	directive, err := l.word()
	if err != nil {
		return err
	}

	assign := func(dst *string) error {
		return single(l, func(value string) error {
			*dst = value
			return nil
		})
	}

	switch directive {
	case "root":
		return assign(&loc.Root)
	case "index":
		return assign(&loc.Index)
	case "cgi_pass":
		return assign(&loc.CGIPass)
	case "cgi_extension":
		return assign(&loc.CGIExtension)
	case "upload_store":
		return assign(&loc.UploadStore)
	case "autoindex":
		return single(l, func(value string) (err error) {
			loc.Autoindex, err = parseSwitch(value)
			return err
		})
	case "max_body_size":
		return single(l, func(value string) (err error) {
			loc.MaxBodySize, err = parseSize(value)
			return err
		})
	case "methods":
		loc.Methods, err = parseMethods(l)
		return err
	case "return":
		code, target, err := pair(l)
		if err != nil {
			return err
		}

		statusCode, err := parseStatusCode(code)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		loc.Redirect = &Redirect{Code: statusCode, Target: target}

		return nil
	default:
		return fmt.Errorf("line %d: unknown location directive: %q", line, directive)
	}
}

// single reads exactly one argument followed by a semicolon.
func single(l *lexer, apply func(value string) error) error {
	line := l.line()
	value, err := l.word()
	if err != nil {
		return err
	}

	if err = l.expect(";"); err != nil {
		return err
	}

	if err = apply(value); err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}

	return nil
}

func pair(l *lexer) (first, second string, err error) {
	if first, err = l.word(); err != nil {
		return "", "", err
	}

	if second, err = l.word(); err != nil {
		return "", "", err
	}

	return first, second, l.expect(";")
}

func parseMethods(l *lexer) (methods []method.Method, err error) {
	for !l.end() && l.peek() != ";" {
		line := l.line()
		name, err := l.word()
		if err != nil {
			return nil, err
		}

		m := method.Parse(name)
		if m == method.Unknown {
			return nil, fmt.Errorf("line %d: unsupported method: %q", line, name)
		}

		methods = append(methods, m)
	}

	return methods, l.expect(";")
}

func parseListen(value string) (host string, port uint16, err error) {
	host = "0.0.0.0"
	portStr := value

	if colon := strings.LastIndexByte(value, ':'); colon != -1 {
		host, portStr = value[:colon], value[colon+1:]
		if len(host) == 0 {
			host = "0.0.0.0"
		}
	}

	num, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || num == 0 {
		return "", 0, fmt.Errorf("invalid listen port: %q", value)
	}

	return host, uint16(num), nil
}

// parseSize parses a size with optional k or m suffixes, standing for kibi- and
// mebibytes respectively.
func parseSize(value string) (uint64, error) {
	multiplier := uint64(1)

	if len(value) > 0 {
		switch value[len(value)-1] {
		case 'k', 'K':
			multiplier = 1024
		case 'm', 'M':
			multiplier = 1024 * 1024
		case 'g', 'G':
			multiplier = 1024 * 1024 * 1024
		}

		if multiplier != 1 {
			value = value[:len(value)-1]
		}
	}

	num, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %q", value)
	}

	if num > math.MaxUint64/multiplier {
		return 0, fmt.Errorf("size value overflows: %q", value)
	}

	return num * multiplier, nil
}

func parseSwitch(value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", value)
	}
}

func parseStatusCode(value string) (status.Code, error) {
	code, ok := status.ParseCode(value)
	if !ok || !status.Valid(code) {
		return 0, fmt.Errorf("invalid status code: %q", value)
	}

	return code, nil
}
