package vhost

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
	"github.com/stretchr/testify/require"
)

const sample = `
# two virtual hosts sharing a port
server {
    listen 127.0.0.1:8080;
    server_name example.com;
    root ./www/site1/;
    max_body_size 2m;
    error_page 404 /errors/404.html;
    methods GET POST;

    location / {
        index index.html;
    }

    location /images {
        autoindex on;
        methods GET;
    }

    location ~ .php {
        cgi_pass /usr/bin/php-cgi;
        cgi_extension .php;
    }

    location /old {
        return 301 /new;
    }

    location /upload {
        upload_store ./uploads;
        max_body_size 10k;
        methods POST DELETE;
    }
}

server {
    listen 127.0.0.1:8080;
    server_name other.org;
    root /srv/other;
}

server {
    listen 9090;
    root /srv/default;
    autoindex on;
}
`

func TestParse(t *testing.T) {
	set, err := Parse(sample)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	srv := set.Server(0)
	require.Equal(t, "127.0.0.1", srv.Host)
	require.Equal(t, uint16(8080), srv.Port)
	require.Equal(t, "example.com", srv.ServerName)
	require.Equal(t, uint64(2*1024*1024), srv.MaxBodySize)
	require.Equal(t, "/errors/404.html", srv.ErrorPages[status.NotFound])
	require.Equal(t, []method.Method{method.GET, method.POST}, srv.Methods)
	require.Len(t, srv.Locations, 5)

	images := srv.Locations[1]
	require.True(t, images.Autoindex)
	require.Equal(t, []method.Method{method.GET}, images.Methods)

	php := srv.Locations[2]
	require.True(t, php.Regex)
	require.Equal(t, ".php", php.Path)
	require.Equal(t, ".php", php.CGIExtension)

	require.Equal(t, &Redirect{Code: status.MovedPermanently, Target: "/new"}, srv.Locations[3].Redirect)
	require.Equal(t, uint64(10*1024), srv.Locations[4].MaxBodySize)

	def := set.Server(2)
	require.Equal(t, "0.0.0.0", def.Host)
	require.Equal(t, uint16(9090), def.Port)
	require.True(t, def.Autoindex)

	groups := set.Groups()
	require.Len(t, groups, 2)
	require.Equal(t, []ID{0, 1}, groups[0].Servers)
	require.Equal(t, "127.0.0.1:8080", groups[0].Addr())
	require.Equal(t, []ID{2}, groups[1].Servers)
}

func TestSelect(t *testing.T) {
	set, err := Parse(sample)
	require.NoError(t, err)
	group := set.Groups()[0]

	require.Equal(t, ID(0), set.Select(group, "example.com"))
	require.Equal(t, ID(1), set.Select(group, "other.org:8080"))
	require.Equal(t, ID(1), set.Select(group, "OTHER.org"))
	require.Equal(t, ID(0), set.Select(group, "unknown.net"), "falls back to the first server")
	require.Equal(t, ID(0), set.Select(group, ""))
	require.Equal(t, ID(0), set.Select(group, "sub.example.com"), "no wildcard matching")
}

func TestParseErrors(t *testing.T) {
	tcs := map[string]string{
		"unknown server directive": "server { listen 80; foo bar; }",
		"unknown location directive": "server { listen 80; location / { foo bar; } }",
		"bad size":                 "server { listen 80; max_body_size 10x; }",
		"bad status code":          "server { listen 80; error_page 999 /x.html; }",
		"bad return code":          "server { listen 80; location / { return 42 /x; } }",
		"bad port":                 "server { listen 0.0.0.0:http; }",
		"bad autoindex":            "server { listen 80; autoindex yes; }",
		"unsupported method":       "server { listen 80; methods GET PATCH; }",
		"missing semicolon":        "server { listen 80 }",
		"unclosed block":           "server { listen 80;",
		"garbage on top level":     "listen 80;",
		"duplicate listen":         "server { listen 80; server_name a; } server { listen 80; server_name a; }",
		"no servers":               "# nothing here\n",
		"cgi without interpreter":  "server { listen 80; location /cgi { cgi_extension .py; } }",
	}

	for name, config := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(config)
			require.Error(t, err)
		})
	}
}

func TestJSON(t *testing.T) {
	set, err := Parse(sample)
	require.NoError(t, err)

	var buff bytes.Buffer
	require.NoError(t, set.Dump(&buff))

	restored, err := ParseJSON(buff.Bytes())
	require.NoError(t, err)
	require.Equal(t, set.Len(), restored.Len())

	for id, srv := range set.All() {
		require.Equal(t, *srv, *restored.Server(id))
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	conf := filepath.Join(dir, "default.conf")
	require.NoError(t, os.WriteFile(conf, []byte(sample), 0o644))
	set, err := Load(conf)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	jsonConf := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonConf, []byte(
		`{"servers": [{"host": "127.0.0.1", "port": 8081, "root": "/srv", "methods": ["GET"],
		"locations": [{"path": "/old", "return": {"code": 302, "target": "/new"}}]}]}`,
	), 0o644))
	set, err = Load(jsonConf)
	require.NoError(t, err)
	require.Equal(t, []method.Method{method.GET}, set.Server(0).Methods)
	require.Equal(t, status.Found, set.Server(0).Locations[0].Redirect.Code)

	_, err = Load(filepath.Join(dir, "missing.conf"))
	require.Error(t, err)
}

func TestShippedConfig(t *testing.T) {
	set, err := Load(filepath.Join("..", "config", "default.conf"))
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.Len(t, set.Groups(), 1)

	group := set.Groups()[0]
	require.Equal(t, ID(1), set.Select(group, "static.localhost:8080"))
	require.Equal(t, ID(0), set.Select(group, "127.0.0.1"))
}
