package autoindex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a <script>.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "a <script>.txt", entries[0].Name)
	require.Equal(t, "b.txt", entries[1].Name)
	require.Equal(t, int64(5), entries[1].Size)
	require.True(t, entries[2].Dir)

	page, err := Page(dir, "/files")
	require.NoError(t, err)
	body := string(page)

	require.Contains(t, body, "<title>Index of /files</title>")
	require.Contains(t, body, `[FILE] <a href="/files/b.txt">b.txt</a></td><td>5</td>`)
	require.Contains(t, body, `[DIR] <a href="/files/sub/">sub/</a></td><td>-</td>`)
	require.Contains(t, body, "a &lt;script&gt;.txt")
	require.NotContains(t, body, "<script>")
	require.Less(t, strings.Index(body, "b.txt"), strings.Index(body, "sub/"))

	_, err = Page(filepath.Join(dir, "missing"), "/missing")
	require.Error(t, err)
}
