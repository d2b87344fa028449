package router

import (
	"testing"

	"github.com/indigo-web/webserv/http/method"
	"github.com/indigo-web/webserv/http/status"
	"github.com/indigo-web/webserv/vhost"
	"github.com/stretchr/testify/require"
)

func TestSelectLocation(t *testing.T) {
	t.Run("longest prefix", func(t *testing.T) {
		vh := &vhost.Server{
			Locations: []vhost.Location{
				{Path: "/"},
				{Path: "/images"},
				{Path: "/images/thumb"},
			},
		}

		require.Equal(t, "/images/thumb", SelectLocation(vh, method.GET, "/images/thumb/x.png").Path)
		require.Equal(t, "/images", SelectLocation(vh, method.GET, "/images/x.png").Path)
		require.Equal(t, "/", SelectLocation(vh, method.GET, "/other").Path)
	})

	t.Run("ties go to the first declared", func(t *testing.T) {
		vh := &vhost.Server{
			Locations: []vhost.Location{
				{Path: "/a", Index: "first"},
				{Path: "/a", Index: "second"},
			},
		}

		require.Equal(t, "first", SelectLocation(vh, method.GET, "/a/b").Index)
	})

	t.Run("no match", func(t *testing.T) {
		vh := &vhost.Server{Locations: []vhost.Location{{Path: "/images"}}}
		require.Nil(t, SelectLocation(vh, method.GET, "/other"))
	})

	t.Run("cgi extension priority", func(t *testing.T) {
		vh := &vhost.Server{
			Locations: []vhost.Location{
				{Path: "/cgi-bin"},
				{Path: ".php", Regex: true, CGIPass: "/usr/bin/php-cgi", CGIExtension: ".php"},
			},
		}

		require.Equal(t, ".php", SelectLocation(vh, method.GET, "/cgi-bin/test.php").Path)
		require.Equal(t, "/cgi-bin", SelectLocation(vh, method.GET, "/cgi-bin/test.py").Path)
	})

	t.Run("cgi extension not permitting the method", func(t *testing.T) {
		vh := &vhost.Server{
			Locations: []vhost.Location{
				{Path: "/cgi-bin"},
				{Path: ".py", CGIPass: "python3", CGIExtension: ".py", Methods: []method.Method{method.GET}},
			},
		}

		require.Equal(t, ".py", SelectLocation(vh, method.GET, "/cgi-bin/test.py").Path)
		require.Equal(t, "/cgi-bin", SelectLocation(vh, method.DELETE, "/cgi-bin/test.py").Path)
	})
}

func TestMethodAllowed(t *testing.T) {
	vh := &vhost.Server{Methods: []method.Method{method.GET, method.POST}}
	loc := &vhost.Location{Methods: []method.Method{method.DELETE}}

	allowed, allow := MethodAllowed(method.DELETE, vh, loc)
	require.True(t, allowed)
	require.Equal(t, "DELETE", allow)

	allowed, allow = MethodAllowed(method.GET, vh, loc)
	require.False(t, allowed)
	require.Equal(t, "DELETE", allow)

	allowed, allow = MethodAllowed(method.PUT, vh, &vhost.Location{})
	require.False(t, allowed)
	require.Equal(t, "GET, POST", allow)

	allowed, _ = MethodAllowed(method.PUT, &vhost.Server{}, nil)
	require.True(t, allowed, "every method is allowed by default")

	allowed, allow = MethodAllowed(method.Unknown, &vhost.Server{}, nil)
	require.False(t, allowed)
	require.Equal(t, "GET, POST, PUT, DELETE", allow)
}

func TestRedirect(t *testing.T) {
	_, _, ok := Redirect(nil)
	require.False(t, ok)

	code, target, ok := Redirect(&vhost.Location{Redirect: &vhost.Redirect{Code: status.MovedPermanently, Target: "/new"}})
	require.True(t, ok)
	require.Equal(t, status.MovedPermanently, code)
	require.Equal(t, "/new", target)
}

func TestResolvePath(t *testing.T) {
	tcs := []struct {
		Root, LocRoot, LocPath, Path, Want string
	}{
		{"/www", "", "", "/index.html", "/www/index.html"},
		{"/www/", "", "", "/index.html", "/www/index.html"},
		{"/www//", "", "", "/", "/www"},
		{"/www", "", "/", "/", "/www"},
		{"/", "", "", "/index.html", "/index.html"},
		{"/", "", "", "/", "/"},
		{"/www", "/data/images/", "/images", "/images/cat.png", "/data/images/cat.png"},
		{"/www", "/data/images", "/images", "/images", "/data/images"},
		{"/www", "/data/images", "/images", "/images/", "/data/images"},
		{"/www", "", "/images", "/images//a/b.png", "/www/a/b.png"},
		{"./www", "", ".php", "/cgi-bin/test.php", "./www/cgi-bin/test.php"},
	}

	for _, tc := range tcs {
		vh := &vhost.Server{Root: tc.Root}
		var loc *vhost.Location
		if len(tc.LocPath) > 0 {
			loc = &vhost.Location{Path: tc.LocPath, Root: tc.LocRoot}
		}

		require.Equal(t, tc.Want, ResolvePath(vh, loc, tc.Path), "%+v", tc)
	}
}

func TestMaxBodySize(t *testing.T) {
	vh := &vhost.Server{MaxBodySize: 100}
	require.Equal(t, uint64(10), MaxBodySize(vh, &vhost.Location{MaxBodySize: 10}, 1))
	require.Equal(t, uint64(100), MaxBodySize(vh, &vhost.Location{}, 1))
	require.Equal(t, uint64(100), MaxBodySize(vh, nil, 1))
	require.Equal(t, uint64(1), MaxBodySize(&vhost.Server{}, nil, 1))
}

func TestAutoindex(t *testing.T) {
	require.True(t, Autoindex(&vhost.Server{Autoindex: true}, nil))
	require.True(t, Autoindex(&vhost.Server{}, &vhost.Location{Autoindex: true}))
	require.False(t, Autoindex(&vhost.Server{}, &vhost.Location{}))
}
