// Package autoindex renders directory listings.
package autoindex

import (
	"html"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04"

type Entry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// List reads the directory entries sorted by name. Entries which can't be stat'ed
// are skipped.
func List(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))

	for _, dirent := range dirents {
		// follow symlinks, as the file server does
		info, err := os.Stat(filepath.Join(dir, dirent.Name()))
		if err != nil {
			continue
		}

		entry := Entry{
			Name:    dirent.Name(),
			Dir:     info.IsDir(),
			ModTime: info.ModTime(),
		}

		if !entry.Dir {
			entry.Size = info.Size()
		}

		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}

// Render produces the HTML page listing the entries. reqPath is the path the client
// requested, it's used as a base of every link.
func Render(reqPath string, entries []Entry) []byte {
	title := html.EscapeString(reqPath)
	base := reqPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\"/>\n")
	b.WriteString("  <title>Index of " + title + "</title>\n")
	b.WriteString("  <style>\n")
	b.WriteString("    body { font-family: sans-serif; }\n")
	b.WriteString("    table { border-collapse: collapse; }\n")
	b.WriteString("    th, td { border: 1px solid #ccc; padding: 4px 8px; }\n")
	b.WriteString("  </style>\n</head>\n<body>\n")
	b.WriteString("  <h1>Index of " + title + "</h1>\n")
	b.WriteString("  <table>\n")
	b.WriteString("    <tr><th>Name</th><th>Size</th><th>Last Modified</th></tr>\n")

	if reqPath != "/" {
		b.WriteString("    <tr><td><a href=\"../\">../</a></td><td>-</td><td></td></tr>\n")
	}

	for _, entry := range entries {
		href := base + url.PathEscape(entry.Name)
		icon, size, name := "[FILE]", strconv.FormatInt(entry.Size, 10), entry.Name
		if entry.Dir {
			href += "/"
			icon, size, name = "[DIR]", "-", name+"/"
		}

		b.WriteString("    <tr><td>" + icon + " <a href=\"" + html.EscapeString(href) + "\">")
		b.WriteString(html.EscapeString(name))
		b.WriteString("</a></td><td>" + size + "</td><td>")
		b.WriteString(entry.ModTime.Local().Format(timeLayout))
		b.WriteString("</td></tr>\n")
	}

	b.WriteString("  </table>\n</body>\n</html>\n")

	return []byte(b.String())
}

// Page lists the directory and renders it.
func Page(dir, reqPath string) ([]byte, error) {
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}

	return Render(reqPath, entries), nil
}
