package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestFileSinkLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	s, err := OpenFiles(dir)
	require.NoError(t, err)

	require.NoError(t, s.WriteDocument(ctx, Document{
		ID:     1,
		URL:    "http://example.org/a",
		Title:  "Saint Peter",
		Header: Header{{Name: "Content-Type", Value: "text/html"}},
		Text:   "First paragraph. Second paragraph. ",
	}))
	require.NoError(t, s.WriteDocument(ctx, Document{ID: 2, URL: "http://example.org/b"}))
	require.NoError(t, s.WriteRawHTML(ctx, RawPage{URL: "http://example.org/a", HTML: "<p>x & y</p>"}))
	require.NoError(t, s.WriteOutLinks(ctx, LinkSet{URL: "http://example.org/a", Links: []string{"http://example.org/b"}}))
	require.NoError(t, s.WriteOutLinks(ctx, LinkSet{URL: "http://example.org/b"}))
	require.NoError(t, s.WriteCrawled(ctx, []string{"http://example.org/a", "http://example.org/b"}))
	require.NoError(t, s.WriteInLinks(ctx, []LinkSet{{URL: "http://example.org/b", Links: []string{"http://example.org/a"}}}))
	require.NoError(t, s.WriteDiscovered(ctx, []string{"http://example.org/a", "http://example.org/b", "http://example.org/c"}))
	require.NoError(t, s.Close())

	assert.Equal(t, "<DOC>\n"+
		"<DOCNO>http://example.org/a</DOCNO>\n"+
		"<HEAD>Saint Peter</HEAD>\n"+
		`<HEADER>{"Content-Type":"text/html"}</HEADER>`+"\n"+
		"<TEXT>\nFirst paragraph. Second paragraph. \n</TEXT>\n"+
		"</DOC>\n", readFile(t, filepath.Join(dir, "docs", "document_1.txt")))

	assert.NotContains(t, readFile(t, filepath.Join(dir, "docs", "document_2.txt")), "<HEAD>")

	assert.Equal(t, `{"http://example.org/a":"<p>x & y</p>"}`+"\n", readFile(t, filepath.Join(dir, "raw_html.json")))
	assert.Equal(t,
		`{"http://example.org/a":["http://example.org/b"]}`+"\n"+`{"http://example.org/b":[]}`+"\n",
		readFile(t, filepath.Join(dir, "out_links.json")))
	assert.Equal(t, `{"http://example.org/b":["http://example.org/a"]}`+"\n", readFile(t, filepath.Join(dir, "in_links.json")))
	assert.Equal(t, "http://example.org/a\nhttp://example.org/b\n", readFile(t, filepath.Join(dir, "crawled_links.txt")))
	assert.Equal(t, "http://example.org/a\nhttp://example.org/b\nhttp://example.org/c\n", readFile(t, filepath.Join(dir, "all_links.txt")))
}

func TestFileSinkTruncatesPreviousRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	first, err := OpenFiles(dir)
	require.NoError(t, err)
	require.NoError(t, first.WriteCrawled(ctx, []string{"http://old.example/"}))
	require.NoError(t, first.WriteRawHTML(ctx, RawPage{URL: "http://old.example/", HTML: "old"}))
	for id := 1; id <= 2; id++ {
		require.NoError(t, first.WriteDocument(ctx, Document{ID: id, URL: "http://old.example/", Text: "old"}))
	}
	require.NoError(t, first.Close())

	second, err := OpenFiles(dir)
	require.NoError(t, err)
	require.NoError(t, second.WriteDocument(ctx, Document{ID: 1, URL: "http://new.example/", Text: "new"}))
	require.NoError(t, second.Close())

	entries, err := os.ReadDir(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "document_1.txt", entries[0].Name())
	assert.Contains(t, readFile(t, filepath.Join(dir, "docs", "document_1.txt")), "new")

	assert.Empty(t, readFile(t, filepath.Join(dir, "raw_html.json")))
	_, err = os.Stat(filepath.Join(dir, "crawled_links.txt"))
	assert.True(t, os.IsNotExist(err))
}
