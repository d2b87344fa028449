package vhost

import (
	"fmt"
	"iter"
	"net"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/internal/strutil"
)

// ID is a stable handle of a virtual host within a Set.
type ID uint32

type Redirect struct {
	Code   status.Code `json:"code"`
	Target string      `json:"target"`
}

func (r Redirect) String() string {
	return strconv.Itoa(int(r.Code)) + " " + r.Target
}

// Location is a path-prefix or CGI-extension scoped override of serving behaviour.
// Zero values mean "not set", so the virtual host level applies.
type Location struct {
	Path string `json:"path"`
	// Regex reflects the `~` modifier. It is kept for compatibility only, the path is
	// always matched as a literal prefix.
	Regex        bool            `json:"regex,omitempty"`
	Root         string          `json:"root,omitempty"`
	Methods      []method.Method `json:"methods,omitempty"`
	Autoindex    bool            `json:"autoindex,omitempty"`
	Index        string          `json:"index,omitempty"`
	CGIPass      string          `json:"cgi_pass,omitempty"`
	CGIExtension string          `json:"cgi_extension,omitempty"`
	UploadStore  string          `json:"upload_store,omitempty"`
	MaxBodySize  uint64          `json:"max_body_size,omitempty"`
	Redirect     *Redirect       `json:"return,omitempty"`
}

// Server is a single virtual host.
type Server struct {
	Host        string                 `json:"host"`
	Port        uint16                 `json:"port"`
	ServerName  string                 `json:"server_name,omitempty"`
	Root        string                 `json:"root,omitempty"`
	MaxBodySize uint64                 `json:"max_body_size,omitempty"`
	Autoindex   bool                   `json:"autoindex,omitempty"`
	ErrorPages  map[status.Code]string `json:"error_page,omitempty"`
	Methods     []method.Method        `json:"methods,omitempty"`
	Locations   []Location             `json:"locations,omitempty"`
}

// Addr returns the listening address in host:port form.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Group is a set of virtual hosts sharing the same listening address. The first
// one is the default server of the group.
type Group struct {
	Host    string
	Port    uint16
	Servers []ID
}

func (g Group) Addr() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(int(g.Port)))
}

// Set is an immutable arena of virtual hosts. Connections refer to its elements by ID,
// which stay valid for the whole process lifetime.
type Set struct {
	servers []Server
	groups  []Group
}

// NewSet validates the servers and groups them by listening address, preserving the
// declaration order.
func NewSet(servers []Server) (*Set, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers defined")
	}

	set := &Set{servers: servers}
	groupIndex := make(map[string]int)
	seen := make(map[string]struct{})

	for i := range servers {
		srv := &servers[i]
		if err := validate(srv); err != nil {
			return nil, fmt.Errorf("server %s (%q): %w", srv.Addr(), srv.ServerName, err)
		}

		key := srv.Addr() + ":" + strings.ToLower(srv.ServerName)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate listen: %s:%s", srv.Addr(), srv.ServerName)
		}

		seen[key] = struct{}{}

		addr := srv.Addr()
		idx, found := groupIndex[addr]
		if !found {
			idx = len(set.groups)
			groupIndex[addr] = idx
			set.groups = append(set.groups, Group{Host: srv.Host, Port: srv.Port})
		}

		set.groups[idx].Servers = append(set.groups[idx].Servers, ID(i))
	}

	return set, nil
}

func validate(srv *Server) error {
	if srv.Port == 0 {
		return fmt.Errorf("port is not specified")
	}

	if len(srv.Host) == 0 {
		srv.Host = "0.0.0.0"
	}

	for code := range srv.ErrorPages {
		if !status.Valid(code) {
			return fmt.Errorf("invalid error_page status code: %d", code)
		}
	}

	for _, m := range srv.Methods {
		if m == method.Unknown {
			return fmt.Errorf("unknown method in methods")
		}
	}

	for _, loc := range srv.Locations {
		if len(loc.Path) == 0 {
			return fmt.Errorf("location with empty path")
		}

		if loc.Redirect != nil && !status.Valid(loc.Redirect.Code) {
			return fmt.Errorf("location %s: invalid return status code: %d", loc.Path, loc.Redirect.Code)
		}

		if len(loc.CGIExtension) > 0 && len(loc.CGIPass) == 0 {
			return fmt.Errorf("location %s: cgi_extension without cgi_pass", loc.Path)
		}

		for _, m := range loc.Methods {
			if m == method.Unknown {
				return fmt.Errorf("location %s: unknown method in methods", loc.Path)
			}
		}
	}

	return nil
}

// Server returns the virtual host by its handle.
func (s *Set) Server(id ID) *Server {
	return &s.servers[id]
}

func (s *Set) Len() int {
	return len(s.servers)
}

func (s *Set) Groups() []Group {
	return s.groups
}

// All iterates over every virtual host in declaration order.
func (s *Set) All() iter.Seq2[ID, *Server] {
	return func(yield func(ID, *Server) bool) {
		for i := range s.servers {
			if !yield(ID(i), &s.servers[i]) {
				return
			}
		}
	}
}

// Select picks the virtual host of the group matching the Host header value. The port
// is ignored and names are compared case-insensitively. When nothing matches, the
// first server of the group is returned.
func (s *Set) Select(group Group, host string) ID {
	host = strutil.TrimPort(strutil.StripWS(host))

	if len(host) > 0 {
		for _, id := range group.Servers {
			// host names are case-insensitive, so an exact match ignores the case
			if strcomp.EqualFold(s.servers[id].ServerName, host) {
				return id
			}
		}
	}

	return group.Servers[0]
}
